// Package scraper implements job posting fetching, filtering and collection.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/cache"
	"jobmate/collector-service/internal/model"
	"jobmate/collector-service/internal/ratelimit"
)

const (
	jsearchAPI       = "jsearch"
	jsearchHost      = "jsearch.p.rapidapi.com"
	searchOperation  = "jsearch:job_search"
	statusOK         = "OK"
	maxErrorBodySize = 512
)

// SearchParams is the argument set of one JSearch /search call. Every field
// takes part in the memoization key.
type SearchParams struct {
	Keywords             string   `json:"keywords"`
	Location             string   `json:"location,omitempty"`
	Country              string   `json:"country"`
	Language             string   `json:"language"`
	DatePosted           string   `json:"date_posted"`
	WorkFromHome         bool     `json:"work_from_home"`
	EmploymentTypes      string   `json:"employment_types,omitempty"`
	JobRequirements      string   `json:"job_requirements,omitempty"`
	Radius               *float64 `json:"radius,omitempty"`
	ExcludeJobPublishers string   `json:"exclude_job_publishers,omitempty"`
	Fields               string   `json:"fields,omitempty"`
	Page                 int      `json:"page"`
	NumPages             int      `json:"num_pages"`
}

// Query builds the free-form query string: keywords, plus "in <location>".
func (p SearchParams) Query() string {
	q := p.Keywords
	if p.Location != "" {
		q += " in " + p.Location
	}
	return strings.TrimSpace(q)
}

// Values maps the params onto URL query parameters. Empty optional filters
// are omitted so the server-side defaults apply.
func (p SearchParams) Values() url.Values {
	v := url.Values{}
	v.Set("query", p.Query())
	v.Set("country", p.Country)
	v.Set("language", p.Language)
	v.Set("date_posted", p.DatePosted)
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("num_pages", strconv.Itoa(p.NumPages))

	if p.WorkFromHome {
		v.Set("work_from_home", "true")
	}
	if p.EmploymentTypes != "" {
		v.Set("employment_types", p.EmploymentTypes)
	}
	if p.JobRequirements != "" {
		v.Set("job_requirements", p.JobRequirements)
	}
	if p.Radius != nil && *p.Radius > 0 {
		v.Set("radius", strconv.FormatFloat(*p.Radius, 'f', -1, 64))
	}
	if p.ExcludeJobPublishers != "" {
		v.Set("exclude_job_publishers", p.ExcludeJobPublishers)
	}
	if p.Fields != "" {
		v.Set("fields", p.Fields)
	}
	return v
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// Fetcher queries the JSearch API (RapidAPI). Identical argument sets are
// served from the cache for CacheTTL to bound API cost.
type Fetcher struct {
	baseURL  string
	apiKey   string
	cacheTTL time.Duration
	client   *http.Client
	cache    cache.Cache
	limiter  ratelimit.Limiter
	logger   *zap.Logger
}

// NewFetcher constructs a fetcher with a shared HTTP client.
func NewFetcher(opts FetcherOptions, c cache.Cache, limiter ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://" + jsearchHost
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 90 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Hour
	}
	logger = logger.Named("fetcher")
	if opts.APIKey == "" {
		logger.Warn("RAPID_API_KEY not set, JSearch requests will be unauthenticated")
	}
	return &Fetcher{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		apiKey:   opts.APIKey,
		cacheTTL: opts.CacheTTL,
		client:   &http.Client{Timeout: opts.Timeout},
		cache:    c,
		limiter:  limiter,
		logger:   logger,
	}
}

// searchResponse mirrors the top-level JSearch JSON response.
type searchResponse struct {
	Status *string         `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Search returns one page of postings. An empty slice signals the end of
// pagination. Errors are *apperr.Error values: Transport (network, non-2xx),
// RateLimit (local quota), UpstreamLogical (status != "OK") or Data
// (malformed payload).
func (f *Fetcher) Search(ctx context.Context, p SearchParams) ([]model.JobRecord, error) {
	key, err := cache.Key(searchOperation, p)
	if err != nil {
		return nil, apperr.Internal("build cache key", err)
	}

	cached, err := cache.GetJSON[[]model.JobRecord](ctx, f.cache, key)
	if err == nil {
		f.logger.Debug("cache hit", zap.Int("page", p.Page), zap.Int("jobs", len(cached)))
		return cached, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		f.logger.Warn("cache read failed", zap.Error(err))
	}

	caller := ratelimit.CallerFrom(ctx)
	allowed, err := f.limiter.Allow(ctx, jsearchAPI, caller)
	if err != nil {
		f.logger.Warn("rate limiter unavailable, proceeding", zap.Error(err))
	} else if !allowed {
		return nil, apperr.RateLimit(fmt.Sprintf("jsearch quota exhausted for %s", caller), nil)
	}

	records, err := f.fetchPage(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, f.cache, key, records, f.cacheTTL); err != nil {
		f.logger.Warn("cache write failed", zap.Error(err))
	}
	return records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, p SearchParams) ([]model.JobRecord, error) {
	values := p.Values()
	reqURL := f.baseURL + "/search?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Internal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-rapidapi-host", jsearchHost)
	if f.apiKey != "" {
		req.Header.Set("x-rapidapi-key", f.apiKey)
	}

	f.logger.Debug("query used",
		zap.String("query", values.Get("query")),
		zap.Int("page", p.Page),
		zap.Int("num_pages", p.NumPages))

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperr.Transport("http GET", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport("read body", err)
	}
	f.logger.Debug("query finished",
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Transport(
			fmt.Sprintf("jsearch returned %d: %s", resp.StatusCode, truncate(string(body), maxErrorBodySize)), nil)
	}

	var apiResp searchResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, apperr.Data("json unmarshal", err)
	}

	if apiResp.Status != nil && *apiResp.Status != statusOK {
		return nil, apperr.UpstreamLogical("job_search failed", nil)
	}

	records := make([]model.JobRecord, 0)
	if len(apiResp.Data) == 0 || string(apiResp.Data) == "null" {
		return records, nil
	}
	if err := json.Unmarshal(apiResp.Data, &records); err != nil {
		return nil, apperr.Data("decode data list", err)
	}
	return records, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
