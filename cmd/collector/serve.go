package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmate/collector-service/internal/api"
	"jobmate/collector-service/internal/db"
	"jobmate/collector-service/internal/health"
	"jobmate/collector-service/internal/scheduler"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the gRPC health service and the scheduler",
	Long: `Start the collector service: the REST API on COLLECTOR_PORT, the gRPC health
service on COLLECTOR_GRPC_PORT and, when COLLECT_SCHEDULE is set, periodic
collection for every profile.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Apply the database schema on start")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(a *app) error {
		log := a.logger.Named("serve")

		if serveMigrate {
			applied, err := db.EnsureSchema(ctx, a.pool)
			if err != nil {
				return fmt.Errorf("schema: %w", err)
			}
			log.Info("schema ready", zap.Strings("migrations", applied))
		}

		// ── HTTP server ──────────────────────────────────────────────────────
		handler := api.NewHandler(a.profiles, a.jobs, a.runner, a.cache, version, a.logger)
		srv := &http.Server{
			Addr:        ":" + a.cfg.Port,
			Handler:     handler.Routes(),
			ReadTimeout: 10 * time.Second,
			// collect requests page through the API and can take minutes
			WriteTimeout: 30 * time.Minute,
		}

		// ── gRPC health ──────────────────────────────────────────────────────
		hs := health.NewServer(map[string]health.Check{
			"postgres": a.pool.Ping,
			"redis": func(ctx context.Context) error {
				return a.rdb.Ping(ctx).Err()
			},
		}, healthInterval, a.logger)

		lis, err := net.Listen("tcp", ":"+a.cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)

		// ── Scheduler ────────────────────────────────────────────────────────
		// Runs on gctx so a failing server also aborts an in-flight cycle.
		sched := scheduler.New(a.profiles, a.runner, a.cfg.Collect.Schedule, a.logger)
		if err := sched.Start(gctx); err != nil {
			lis.Close()
			return err
		}

		g.Go(func() error {
			log.Info("HTTP listening", zap.String("version", version), zap.String("port", a.cfg.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if err := hs.Serve(lis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			hs.Watch(gctx)
			return nil
		})

		// ── Graceful shutdown ────────────────────────────────────────────────
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			sched.Stop()
			hs.Stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			return nil
		})

		err = g.Wait()
		log.Info("stopped")
		return err
	})
}
