package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/cache"
	"jobmate/collector-service/internal/ratelimit"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) (*Geocoder, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	g := NewGeocoder(GeocoderOptions{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, cache.NewMemoryCache(), ratelimit.Unlimited{}, zap.NewNop())
	return g, &hits
}

func TestGeocode_SuccessIsCached(t *testing.T) {
	g, hits := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "San Jose", r.URL.Query().Get("q"))
		assert.Equal(t, "city_distance_app", r.Header.Get("User-Agent"))
		w.Write([]byte(`[{"lat": "37.3361663", "lon": "-121.890591", "display_name": "San Jose"}]`))
	})

	pt, err := g.Geocode(context.Background(), "San Jose")
	require.NoError(t, err)
	assert.InDelta(t, 37.3361663, pt.Lat, 1e-9)
	assert.InDelta(t, -121.890591, pt.Lon, 1e-9)

	again, err := g.Geocode(context.Background(), "  san jose ")
	require.NoError(t, err)
	assert.Equal(t, pt, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGeocode_NoMatchIsNotRetried(t *testing.T) {
	g, hits := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := g.Geocode(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Contains(t, err.Error(), "No match found for 'Atlantis'")
	assert.Equal(t, int32(1), hits.Load())
}

func TestGeocode_UnavailableRetriesThenFails(t *testing.T) {
	g, hits := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := g.Geocode(context.Background(), "Berlin")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), hits.Load())
}

func TestGeocode_RecoversOnSecondAttempt(t *testing.T) {
	var calls atomic.Int32
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[{"lat": "52.52", "lon": "13.405"}]`))
	})

	pt, err := g.Geocode(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.Equal(t, Point{Lat: 52.52, Lon: 13.405}, pt)
}

func TestGeocode_EmptyPlace(t *testing.T) {
	g, hits := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := g.Geocode(context.Background(), "   ")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
	assert.Equal(t, int32(0), hits.Load())
}

func TestDistanceBetweenPlaces(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("q") {
		case "New York":
			w.Write([]byte(`[{"lat": "40.7128", "lon": "-74.0060"}]`))
		default:
			w.Write([]byte(`[{"lat": "34.0522", "lon": "-118.2437"}]`))
		}
	})

	d, err := g.DistanceBetweenPlaces(context.Background(), "New York", "Los Angeles", Miles)
	require.NoError(t, err)
	assert.InDelta(t, 2445, d, 10)
}
