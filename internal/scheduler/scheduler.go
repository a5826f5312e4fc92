// Package scheduler wires up the cron job that periodically runs a collection
// for every stored profile.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/scraper"
)

// ProfileLister lists the names of the profiles to collect for.
type ProfileLister interface {
	Names(ctx context.Context) ([]string, error)
}

// ProfileRunner runs one collection for a profile.
type ProfileRunner interface {
	RunProfile(ctx context.Context, name string) (*scraper.CollectResult, error)
}

// Scheduler wraps robfig/cron and manages the collection loop.
type Scheduler struct {
	cron     *cron.Cron
	profiles ProfileLister
	runner   ProfileRunner
	spec     string // cron spec, e.g. "@every 6h"
	logger   *zap.Logger
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// New creates a Scheduler firing on spec. An empty spec disables it.
func New(profiles ProfileLister, runner ProfileRunner, spec string, logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		profiles: profiles,
		runner:   runner,
		spec:     spec,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler. It also runs one cycle
// immediately so jobs are collected without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.spec == "" {
		s.logger.Info("no COLLECT_SCHEDULE set, scheduled collection disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		cancel()
		return fmt.Errorf("cron.AddFunc(%q): %w", s.spec, err)
	}
	s.cancel = cancel

	s.cron.Start()
	s.logger.Info("cron started", zap.String("spec", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()

	return nil
}

// Stop cancels a running cycle, stops the scheduler and waits for the cycle
// to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cron stopped")
}

// RunOnce collects for every profile in turn. A failing profile is logged
// and does not stop the cycle.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("collection cycle started")

	names, err := s.profiles.Names(ctx)
	if err != nil {
		s.logger.Error("list profiles failed", zap.Error(err))
		return
	}
	if len(names) == 0 {
		s.logger.Info("no profiles, nothing to collect")
		return
	}

	s.logger.Info("running collection", zap.Int("profiles", len(names)))
	for _, name := range names {
		if ctx.Err() != nil {
			s.logger.Warn("collection cycle cancelled", zap.Error(ctx.Err()))
			return
		}
		res, err := s.runner.RunProfile(ctx, name)
		if err != nil {
			s.logger.Error("profile run failed", zap.String("profile", name), zap.Error(err))
			continue
		}
		s.logger.Info("profile run done",
			zap.String("profile", name),
			zap.Int("kept", len(res.JobIDs)),
			zap.Int("inserted", res.Upsert.Inserted),
			zap.String("stop_reason", string(res.StopReason)))
	}

	s.logger.Info("collection cycle complete")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
