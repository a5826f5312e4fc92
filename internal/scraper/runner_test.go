package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/model"
	"jobmate/collector-service/internal/ratelimit"
)

type stubProfiles map[string]*model.Profile

func (s stubProfiles) Load(_ context.Context, name string) (*model.Profile, error) {
	p, ok := s[name]
	if !ok {
		return nil, apperr.NotFound("profile "+name+" not found", nil)
	}
	return p, nil
}

// blockingSearcher parks every call until release is closed.
type blockingSearcher struct {
	entered chan string
	release chan struct{}
}

func (b *blockingSearcher) Search(ctx context.Context, _ SearchParams) ([]model.JobRecord, error) {
	b.entered <- ratelimit.CallerFrom(ctx)
	<-b.release
	return nil, nil
}

func testProfile(name string) *model.Profile {
	lat, lon := 37.3387, -121.8853
	return &model.Profile{Name: name, Filters: model.DefaultFilterConfig(), Latitude: &lat, Longitude: &lon}
}

func TestRunProfile_UsesProfileFiltersAndLocation(t *testing.T) {
	searcher := &scriptedSearcher{steps: []step{{jobs: []model.JobRecord{
		{JobID: "near", Latitude: ptr(37.34), Longitude: ptr(-121.89)},
		{JobID: "far", Latitude: ptr(40.7128), Longitude: ptr(-74.0060)},
	}}}}
	store := &recordingStore{}
	c, _ := newTestCollector(searcher, store, CollectorOptions{})
	r := NewRunner(stubProfiles{"alice": testProfile("alice")}, c, zap.NewNop())

	res, err := r.RunProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, res.JobIDs)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "software engineer in California", searcher.calls[0].Query())
}

func TestRunProfile_ErrorsFromProfile(t *testing.T) {
	c, _ := newTestCollector(&scriptedSearcher{}, &recordingStore{}, CollectorOptions{})
	bad := testProfile("bad")
	bad.Filters.Country = "zz"
	r := NewRunner(stubProfiles{"bad": bad}, c, zap.NewNop())

	_, err := r.RunProfile(context.Background(), "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	_, err = r.RunProfile(context.Background(), "bad")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	_, err = r.RunProfile(context.Background(), "no spaces allowed")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
}

func TestRunProfile_RefusesConcurrentRunForSameProfile(t *testing.T) {
	searcher := &blockingSearcher{entered: make(chan string, 2), release: make(chan struct{})}
	c := NewCollector(searcher, &recordingStore{}, CollectorOptions{}, zap.NewNop())
	r := NewRunner(stubProfiles{"alice": testProfile("alice"), "bob": testProfile("bob")}, c, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := r.RunProfile(context.Background(), "alice")
		done <- err
	}()
	assert.Equal(t, "alice", <-searcher.entered)

	_, err := r.RunProfile(context.Background(), "alice")
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	go func() {
		_, _ = r.RunProfile(context.Background(), "bob")
	}()
	assert.Equal(t, "bob", <-searcher.entered)

	close(searcher.release)
	require.NoError(t, <-done)

	// the lock is released once the run finishes
	_, err = r.RunProfile(context.Background(), "alice")
	assert.NoError(t, err)
}
