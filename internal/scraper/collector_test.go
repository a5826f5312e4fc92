package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/model"
)

// scriptedSearcher answers Search calls from a fixed script, in order.
type scriptedSearcher struct {
	steps []step
	calls []SearchParams
}

type step struct {
	jobs []model.JobRecord
	err  error
}

func (s *scriptedSearcher) Search(_ context.Context, p SearchParams) ([]model.JobRecord, error) {
	s.calls = append(s.calls, p)
	if len(s.calls) > len(s.steps) {
		return nil, nil
	}
	st := s.steps[len(s.calls)-1]
	return st.jobs, st.err
}

func (s *scriptedSearcher) pages() []int {
	out := make([]int, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Page)
	}
	return out
}

type recordingStore struct {
	batches [][]model.JobRecord
	err     error
}

func (s *recordingStore) UpsertBatch(_ context.Context, jobs []model.JobRecord) (model.UpsertStats, error) {
	s.batches = append(s.batches, jobs)
	if s.err != nil {
		return model.UpsertStats{Failed: len(jobs)}, s.err
	}
	return model.UpsertStats{Inserted: len(jobs)}, nil
}

func newTestCollector(searcher PageSearcher, store JobStore, opts CollectorOptions) (*Collector, *[]time.Duration) {
	c := NewCollector(searcher, store, opts, zap.NewNop())
	var sleeps []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return c, &sleeps
}

func jobs(ids ...string) []model.JobRecord {
	out := make([]model.JobRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.JobRecord{JobID: id, Title: "title " + id, EmployerName: "Acme"})
	}
	return out
}

func request(maxJobs int) CollectRequest {
	f := model.DefaultFilterConfig()
	f.DistanceRadius = nil
	return CollectRequest{RunID: "run-1", Filters: f, MaxJobs: maxJobs}
}

func TestCollect_EndToEndFiltersByDistance(t *testing.T) {
	page1 := []model.JobRecord{
		{JobID: "J1", EmployerName: "Acme", Latitude: ptr(40.7130), Longitude: ptr(-74.0050)},
		{JobID: "J2", EmployerName: "Globex", Latitude: ptr(41.4363), Longitude: ptr(-74.0060)},
		{JobID: "J3", EmployerName: "Acme"},
	}
	searcher := &scriptedSearcher{steps: []step{{jobs: page1}, {jobs: nil}}}
	store := &recordingStore{}
	c, sleeps := newTestCollector(searcher, store, CollectorOptions{PageDelay: 3 * time.Second})

	req := request(100)
	req.Filters.DistanceRadius = ptr(30)
	req.MyLat, req.MyLon = ptr(40.7128), ptr(-74.0060)

	res, err := c.Collect(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"J1", "J3"}, res.JobIDs)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, StopExhausted, res.StopReason)
	assert.Equal(t, []int{1, 11}, searcher.pages())
	assert.Equal(t, []time.Duration{3 * time.Second}, *sleeps)

	require.Len(t, store.batches, 1)
	assert.Equal(t, "J1", store.batches[0][0].JobID)
	assert.Equal(t, "J3", store.batches[0][1].JobID)
	assert.Equal(t, 2, res.Upsert.Inserted)
}

func TestCollect_DeduplicatesAcrossPages(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{
		{jobs: jobs("A", "B", "A")},
		{jobs: jobs("B", "C")},
		{jobs: []model.JobRecord{}},
	}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{NumPages: 5})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, res.JobIDs)
	assert.Equal(t, 2, res.Duplicates)
	assert.Equal(t, 3, res.Seen)
	assert.Equal(t, []int{1, 6, 11}, searcher.pages())
}

func TestCollect_IgnoresRecordsWithoutID(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{{jobs: jobs("A", "", "B")}}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, res.JobIDs)
}

func TestCollect_TruncatesExactlyAtMaxJobs(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{{jobs: jobs("A", "B", "C", "D", "E")}}}
	store := &recordingStore{}
	c, sleeps := newTestCollector(searcher, store, CollectorOptions{})

	res, err := c.Collect(context.Background(), request(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, res.JobIDs)
	assert.Equal(t, StopMaxJobs, res.StopReason)
	assert.Len(t, searcher.calls, 1)
	assert.Empty(t, *sleeps)
	require.Len(t, store.batches, 1)
	assert.Len(t, store.batches[0], 3)
}

func TestCollect_EmptyFirstPageSkipsPersist(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{{jobs: []model.JobRecord{}}}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{})

	res, err := c.Collect(context.Background(), request(10))
	require.NoError(t, err)
	assert.Empty(t, res.JobIDs)
	assert.NotNil(t, res.JobIDs)
	assert.Empty(t, store.batches)
}

func TestCollect_DefaultBudgetStopsAtFirstFailure(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{
		{jobs: jobs("A", "B")},
		{err: apperr.Transport("http GET", errors.New("connection reset"))},
		{jobs: jobs("C")},
	}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, res.JobIDs)
	assert.Equal(t, StopRetriesExhausted, res.StopReason)
	assert.Equal(t, 1, res.Attempts)
	assert.Len(t, searcher.calls, 2)
	require.Len(t, store.batches, 1)
}

func TestCollect_RetriesSamePageWithinBudget(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{
		{err: apperr.Transport("http GET", errors.New("timeout"))},
		{err: apperr.UpstreamLogical("job_search failed", nil)},
		{jobs: jobs("A")},
		{jobs: nil},
	}}
	store := &recordingStore{}
	c, sleeps := newTestCollector(searcher, store, CollectorOptions{
		MaxAttempts:  3,
		RetryBackoff: 3 * time.Second,
		PageDelay:    time.Second,
	})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, res.JobIDs)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []int{1, 1, 1, 11}, searcher.pages())
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, time.Second}, *sleeps)
	assert.Equal(t, StopExhausted, res.StopReason)
}

func TestCollect_RateLimitUsesRetryBudget(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{
		{err: apperr.RateLimit("quota", nil)},
		{err: apperr.RateLimit("quota", nil)},
	}}
	c, _ := newTestCollector(searcher, &recordingStore{}, CollectorOptions{MaxAttempts: 2})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)
	assert.Equal(t, StopRetriesExhausted, res.StopReason)
	assert.Equal(t, 2, res.Attempts)
}

func TestCollect_DataErrorIsNotRetried(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{
		{jobs: jobs("A")},
		{err: apperr.Data("json unmarshal", errors.New("unexpected EOF"))},
	}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{MaxAttempts: 5})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)
	assert.Equal(t, StopBadPage, res.StopReason)
	assert.Zero(t, res.Attempts)
	assert.Len(t, searcher.calls, 2)
	assert.Equal(t, []string{"A"}, res.JobIDs)
}

func TestCollect_PersistFailureIsReported(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{{jobs: jobs("A")}}}
	store := &recordingStore{err: apperr.Persistence("begin tx", errors.New("connection refused"))}
	c, _ := newTestCollector(searcher, store, CollectorOptions{})

	res, err := c.Collect(context.Background(), request(100))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.JobIDs)
	assert.Contains(t, res.PersistError, "begin tx")
	assert.Equal(t, 1, res.Upsert.Failed)
}

func TestCollect_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	searcher := &scriptedSearcher{steps: []step{{jobs: jobs("A", "B")}, {jobs: jobs("C")}}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{})
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	res, err := c.Collect(ctx, request(100))
	require.NoError(t, err)
	assert.Equal(t, StopCancelled, res.StopReason)
	assert.Equal(t, []string{"A", "B"}, res.JobIDs)
	assert.Len(t, searcher.calls, 1)
}

func TestCollect_InvalidRequest(t *testing.T) {
	c, _ := newTestCollector(&scriptedSearcher{}, &recordingStore{}, CollectorOptions{})

	_, err := c.Collect(context.Background(), request(0))
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	req := request(10)
	req.Filters.Keywords = "  "
	_, err = c.Collect(context.Background(), req)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
}

func TestCollect_PassesFiltersToSearch(t *testing.T) {
	searcher := &scriptedSearcher{}
	c, _ := newTestCollector(searcher, &recordingStore{}, CollectorOptions{NumPages: 3})

	req := request(10)
	req.Filters.EmploymentTypes = []string{"FULLTIME", "INTERN"}
	req.Filters.JobRequirements = []string{"no_degree"}
	req.Filters.WorkFromHome = true

	_, err := c.Collect(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, searcher.calls, 1)

	got := searcher.calls[0]
	assert.Equal(t, "FULLTIME,INTERN", got.EmploymentTypes)
	assert.Equal(t, "no_degree", got.JobRequirements)
	assert.True(t, got.WorkFromHome)
	assert.Equal(t, 3, got.NumPages)
	assert.Equal(t, fmt.Sprintf("%s in %s", req.Filters.Keywords, req.Filters.Location), got.Query())
}
