package scraper

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/model"
)

// StopReason explains why a collection run left its paging loop.
type StopReason string

const (
	StopMaxJobs          StopReason = "max_jobs"
	StopExhausted        StopReason = "exhausted"
	StopRetriesExhausted StopReason = "retries_exhausted"
	StopBadPage          StopReason = "bad_page"
	StopCancelled        StopReason = "cancelled"
)

// PageSearcher fetches one page of search results.
type PageSearcher interface {
	Search(ctx context.Context, p SearchParams) ([]model.JobRecord, error)
}

// JobStore persists a batch of kept postings.
type JobStore interface {
	UpsertBatch(ctx context.Context, jobs []model.JobRecord) (model.UpsertStats, error)
}

// CollectorOptions configures paging and the retry budget.
type CollectorOptions struct {
	NumPages     int
	MaxAttempts  int
	RetryBackoff time.Duration
	PageDelay    time.Duration
}

// CollectRequest describes one collection run.
type CollectRequest struct {
	RunID   string
	Filters model.FilterConfig
	MaxJobs int
	MyLat   *float64
	MyLon   *float64
}

// CollectResult reports the outcome of a run. JobIDs holds the kept postings
// in API order; it is returned even when persisting them failed.
type CollectResult struct {
	RunID        string            `json:"runId"`
	JobIDs       []string          `json:"jobIds"`
	Pages        int               `json:"pages"`
	Seen         int               `json:"seen"`
	Duplicates   int               `json:"duplicates"`
	Filtered     int               `json:"filtered"`
	Attempts     int               `json:"failedAttempts"`
	StopReason   StopReason        `json:"stopReason"`
	Upsert       model.UpsertStats `json:"upsert"`
	PersistError string            `json:"persistError,omitempty"`
	Elapsed      time.Duration     `json:"elapsedNs"`
}

// Collector pages through search results, filters and deduplicates them, and
// hands the kept postings to the store.
type Collector struct {
	searcher PageSearcher
	store    JobStore
	opts     CollectorOptions
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewCollector constructs a Collector.
func NewCollector(searcher PageSearcher, store JobStore, opts CollectorOptions, logger *zap.Logger) *Collector {
	if opts.NumPages < 1 {
		opts.NumPages = 10
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Collector{
		searcher: searcher,
		store:    store,
		opts:     opts,
		logger:   logger.Named("collector"),
		sleep:    sleepCtx,
	}
}

// Collect runs the paging loop until maxJobs postings are kept, the results
// run out, the retry budget is spent or ctx is done. Only an invalid request
// returns an error; runtime failures end the run with whatever was kept.
func (c *Collector) Collect(ctx context.Context, req CollectRequest) (*CollectResult, error) {
	if req.MaxJobs < 1 {
		return nil, apperr.InvalidInput("max_jobs must be at least 1", nil)
	}
	if strings.TrimSpace(req.Filters.Keywords) == "" {
		return nil, apperr.InvalidInput("keywords are required", nil)
	}

	start := time.Now()
	log := c.logger.With(zap.String("run_id", req.RunID))
	log.Info("collection started",
		zap.String("keywords", req.Filters.Keywords),
		zap.String("location", req.Filters.Location),
		zap.Int("max_jobs", req.MaxJobs))

	res := &CollectResult{RunID: req.RunID, JobIDs: []string{}}
	seen := make(map[string]struct{})
	kept := make([]model.JobRecord, 0, req.MaxJobs)
	page := 1

	for {
		params := searchParams(req.Filters, page, c.opts.NumPages)
		records, err := c.searcher.Search(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				res.StopReason = StopCancelled
				break
			}
			if !apperr.Retryable(err) {
				log.Error("page rejected, not retrying", zap.Int("page", page), zap.Error(err))
				res.StopReason = StopBadPage
				break
			}
			res.Attempts++
			log.Warn("search failed",
				zap.Int("page", page),
				zap.Int("attempt", res.Attempts),
				zap.Int("max_attempts", c.opts.MaxAttempts),
				zap.Error(err))
			if res.Attempts >= c.opts.MaxAttempts {
				res.StopReason = StopRetriesExhausted
				break
			}
			if err := c.sleep(ctx, c.opts.RetryBackoff); err != nil {
				res.StopReason = StopCancelled
				break
			}
			continue
		}

		res.Pages++
		if len(records) == 0 {
			res.StopReason = StopExhausted
			break
		}

		for i := range records {
			job := &records[i]
			if job.JobID == "" {
				continue
			}
			if _, dup := seen[job.JobID]; dup {
				res.Duplicates++
				continue
			}
			seen[job.JobID] = struct{}{}
			res.Seen++

			if !IsCandidate(job, req.Filters.DistanceRadius, req.MyLat, req.MyLon) {
				res.Filtered++
				continue
			}
			kept = append(kept, *job)
			if len(kept) >= req.MaxJobs {
				break
			}
		}

		log.Debug("page processed",
			zap.Int("page", page),
			zap.Int("records", len(records)),
			zap.Int("kept", len(kept)))

		if len(kept) >= req.MaxJobs {
			res.StopReason = StopMaxJobs
			break
		}

		page += c.opts.NumPages
		if err := c.sleep(ctx, c.opts.PageDelay); err != nil {
			res.StopReason = StopCancelled
			break
		}
	}

	for _, job := range kept {
		res.JobIDs = append(res.JobIDs, job.JobID)
	}

	if len(kept) > 0 {
		stats, err := c.store.UpsertBatch(ctx, kept)
		res.Upsert = stats
		if err != nil {
			log.Error("persist failed", zap.Int("jobs", len(kept)), zap.Error(err))
			res.PersistError = apperr.Message(err)
		}
	}

	res.Elapsed = time.Since(start)
	log.Info("collection finished",
		zap.String("stop_reason", string(res.StopReason)),
		zap.Int("kept", len(res.JobIDs)),
		zap.Int("pages", res.Pages),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("filtered", res.Filtered),
		zap.Int("inserted", res.Upsert.Inserted),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func searchParams(f model.FilterConfig, page, numPages int) SearchParams {
	return SearchParams{
		Keywords:             f.Keywords,
		Location:             f.Location,
		Country:              f.Country,
		Language:             f.Language,
		DatePosted:           f.DatePosted,
		WorkFromHome:         f.WorkFromHome,
		EmploymentTypes:      strings.Join(f.EmploymentTypes, ","),
		JobRequirements:      strings.Join(f.JobRequirements, ","),
		ExcludeJobPublishers: strings.Join(f.ExcludeJobPublishers, ","),
		Page:                 page,
		NumPages:             numPages,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
