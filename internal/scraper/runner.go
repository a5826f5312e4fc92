package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/model"
	"jobmate/collector-service/internal/ratelimit"
)

// ProfileLoader loads a stored profile by name.
type ProfileLoader interface {
	Load(ctx context.Context, name string) (*model.Profile, error)
}

// Runner runs a collection for a stored profile. At most one run per profile
// is in flight at a time.
type Runner struct {
	profiles  ProfileLoader
	collector *Collector
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// NewRunner constructs a Runner.
func NewRunner(profiles ProfileLoader, collector *Collector, logger *zap.Logger) *Runner {
	return &Runner{
		profiles:  profiles,
		collector: collector,
		logger:    logger.Named("runner"),
		running:   make(map[string]struct{}),
	}
}

// RunProfile collects jobs with the filters and location of profile name.
// API quota is accounted to the profile.
func (r *Runner) RunProfile(ctx context.Context, name string) (*CollectResult, error) {
	if err := model.ValidateProfileName(name); err != nil {
		return nil, apperr.InvalidInput(err.Error(), nil)
	}
	if !r.acquire(name) {
		return nil, apperr.Conflict(fmt.Sprintf("a collection for profile %q is already running", name), nil)
	}
	defer r.release(name)

	profile, err := r.profiles.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	filters := profile.Filters
	filters.Normalize()
	if err := filters.Validate(); err != nil {
		return nil, apperr.InvalidInput(err.Error(), err)
	}

	req := CollectRequest{
		RunID:   uuid.NewString(),
		Filters: filters,
		MaxJobs: filters.MaxJobs,
		MyLat:   profile.Latitude,
		MyLon:   profile.Longitude,
	}
	r.logger.Info("run started", zap.String("profile", name), zap.String("run_id", req.RunID))

	return r.collector.Collect(ratelimit.WithCaller(ctx, name), req)
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[name]; busy {
		return false
	}
	r.running[name] = struct{}{}
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}
