package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/cache"
	"jobmate/collector-service/internal/ratelimit"
)

const (
	nominatimAPI     = "nominatim"
	geocodeOperation = "nominatim:get_coordinates"
	geocodeTimeout   = 10 * time.Second
)

// GeocoderOptions configures a Geocoder. Zero values fall back to defaults.
type GeocoderOptions struct {
	BaseURL    string
	UserAgent  string
	CacheTTL   time.Duration
	MaxRetries int           // total attempts for retryable failures
	RetryDelay time.Duration // first backoff interval, doubled per attempt
}

// Geocoder resolves place names through the Nominatim search API.
type Geocoder struct {
	opts    GeocoderOptions
	client  *http.Client
	cache   cache.Cache
	limiter ratelimit.Limiter
	logger  *zap.Logger
}

// NewGeocoder builds a Geocoder. c and limiter are required; pass
// ratelimit.Unlimited{} to disable limiting.
func NewGeocoder(opts GeocoderOptions, c cache.Cache, limiter ratelimit.Limiter, logger *zap.Logger) *Geocoder {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "city_distance_app"
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	return &Geocoder{
		opts:    opts,
		client:  &http.Client{Timeout: geocodeTimeout},
		cache:   c,
		limiter: limiter,
		logger:  logger.Named("geocoder"),
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the coordinates of place. Timeouts and 5xx answers are
// retried with exponential backoff up to MaxRetries attempts; "no match" is
// an apperr NotFound and is never retried.
func (g *Geocoder) Geocode(ctx context.Context, place string) (Point, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return Point{}, apperr.InvalidInput("place name is empty", nil)
	}

	key, err := cache.Key(geocodeOperation, strings.ToLower(place))
	if err != nil {
		return Point{}, apperr.Internal("build cache key", err)
	}
	if pt, err := cache.GetJSON[Point](ctx, g.cache, key); err == nil {
		g.logger.Debug("cache hit", zap.String("place", place))
		return pt, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		g.logger.Warn("cache read failed", zap.String("place", place), zap.Error(err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.RetryDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.opts.MaxRetries-1)), ctx)

	attempt := 0
	pt, err := backoff.RetryWithData(func() (Point, error) {
		attempt++
		pt, err := g.lookup(ctx, place)
		if err != nil && !apperr.Retryable(err) {
			return Point{}, backoff.Permanent(err)
		}
		if err != nil {
			g.logger.Warn("geocode attempt failed",
				zap.String("place", place), zap.Int("attempt", attempt), zap.Error(err))
		}
		return pt, err
	}, policy)
	if err != nil {
		if apperr.Retryable(err) {
			return Point{}, apperr.Transport(
				fmt.Sprintf("geocoding failed after %d attempts", attempt), err)
		}
		return Point{}, err
	}

	if err := cache.SetJSON(ctx, g.cache, key, pt, g.opts.CacheTTL); err != nil {
		g.logger.Warn("cache write failed", zap.String("place", place), zap.Error(err))
	}
	return pt, nil
}

func (g *Geocoder) lookup(ctx context.Context, place string) (Point, error) {
	ok, err := g.limiter.Allow(ctx, nominatimAPI, ratelimit.CallerFrom(ctx))
	if err != nil {
		g.logger.Warn("rate limiter unavailable, proceeding", zap.Error(err))
	} else if !ok {
		return Point{}, apperr.RateLimit("nominatim quota exhausted", nil)
	}

	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.opts.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return Point{}, apperr.Internal("build request", err)
	}
	req.Header.Set("User-Agent", g.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return Point{}, apperr.Transport("nominatim timed out", err)
		}
		return Point{}, apperr.Transport("nominatim unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Point{}, apperr.Transport("read body", err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return Point{}, apperr.Transport(fmt.Sprintf("nominatim returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return Point{}, apperr.Data(fmt.Sprintf("nominatim returned %d: %s", resp.StatusCode, string(body)), nil)
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return Point{}, apperr.Data("decode nominatim response", err)
	}
	if len(places) == 0 {
		return Point{}, apperr.NotFound(fmt.Sprintf("No match found for '%s'", place), nil)
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Point{}, apperr.Data("parse latitude", err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Point{}, apperr.Data("parse longitude", err)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// DistanceBetweenPlaces geocodes both places and returns their distance.
func (g *Geocoder) DistanceBetweenPlaces(ctx context.Context, from, to string, unit Unit) (float64, error) {
	a, err := g.Geocode(ctx, from)
	if err != nil {
		return 0, err
	}
	b, err := g.Geocode(ctx, to)
	if err != nil {
		return 0, err
	}
	d, err := Distance(a, b, unit)
	if err != nil {
		return 0, apperr.InvalidInput("distance", err)
	}
	return d, nil
}
