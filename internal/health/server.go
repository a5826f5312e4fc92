// Package health exposes the standard gRPC health service. A watcher probes
// the service dependencies and flips their serving status.
package health

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Overall is the service name reporting the combined status of all checks.
const Overall = ""

const probeTimeout = 5 * time.Second

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

// Server serves grpc.health.v1.Health.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	last map[string]bool
}

// NewServer registers the health service on a new gRPC server. Each check is
// reported under its own name and folded into Overall.
func NewServer(checks map[string]Check, interval time.Duration, logger *zap.Logger) *Server {
	logger = logger.Named("health")
	if interval <= 0 {
		interval = 15 * time.Second
	}

	hs := health.NewServer()
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	healthpb.RegisterHealthServer(gs, hs)

	hs.SetServingStatus(Overall, healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return &Server{
		grpc:     gs,
		health:   hs,
		checks:   checks,
		interval: interval,
		logger:   logger,
		last:     make(map[string]bool),
	}
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Watch probes immediately, then every interval until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	s.Probe(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Probe runs every check once and updates the serving status. It reports
// whether all checks passed.
func (s *Server) Probe(ctx context.Context) bool {
	allOK := true
	for name, check := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := check(cctx)
		cancel()

		ok := err == nil
		allOK = allOK && ok
		s.setStatus(name, ok, err)
	}
	s.setStatus(Overall, allOK, nil)
	return allOK
}

func (s *Server) setStatus(name string, ok bool, err error) {
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(name, status)

	s.mu.Lock()
	prev, seen := s.last[name]
	s.last[name] = ok
	s.mu.Unlock()

	if seen && prev == ok {
		return
	}
	if ok {
		s.logger.Info("dependency healthy", zap.String("check", name))
	} else {
		s.logger.Warn("dependency unhealthy", zap.String("check", name), zap.Error(err))
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return resp, err
	}
}
