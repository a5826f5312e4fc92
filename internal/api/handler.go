// Package api implements the HTTP handlers for the collector service.
//
// Routes:
//
//	GET    /health                             → liveness
//	GET    /profiles                           → list profiles
//	GET    /profiles/{name}                    → one profile
//	PUT    /profiles/{name}                    → create or update filters / location
//	PUT    /profiles/{name}/location           → geocode and store a location
//	PUT    /profiles/{name}/resume             → store a resume (raw body, X-Filename)
//	DELETE /profiles/{name}/resume             → drop the resume
//	POST   /profiles/{name}/collect            → run a collection now
//	GET    /jobs?id=...                        → stored jobs by external id
//	DELETE /cache                              → clear the API response cache
//	POST   /maintenance/clear-summaries        → reset job summaries
//	POST   /maintenance/clear-embeddings       → drop job embeddings
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"jobmate/collector-service/internal/apperr"
	"jobmate/collector-service/internal/cache"
	"jobmate/collector-service/internal/model"
	"jobmate/collector-service/internal/scraper"
)

const (
	service       = "collector-service"
	maxResumeSize = 10 << 20
	maxBodySize   = 1 << 20
)

// Profiles is the profile storage used by the handlers.
type Profiles interface {
	List(ctx context.Context) ([]model.Profile, error)
	Load(ctx context.Context, name string) (*model.Profile, error)
	Save(ctx context.Context, name string, upd model.ProfileUpdate) (*model.Profile, error)
	ClearResume(ctx context.Context, name string) error
	SetLocation(ctx context.Context, name, place string) (*model.Profile, error)
}

// Jobs is the job storage used by the handlers.
type Jobs interface {
	JobsByIDs(ctx context.Context, ids []string) ([]model.PersistedJob, error)
	CountJobs(ctx context.Context) (int64, error)
	ClearSummaries(ctx context.Context) (int64, error)
	ClearEmbeddings(ctx context.Context) (int64, error)
}

// Runner starts a collection for a profile.
type Runner interface {
	RunProfile(ctx context.Context, name string) (*scraper.CollectResult, error)
}

// Handler holds shared dependencies.
type Handler struct {
	profiles Profiles
	jobs     Jobs
	runner   Runner
	cache    cache.Cache
	version  string
	logger   *zap.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(profiles Profiles, jobs Jobs, runner Runner, c cache.Cache, version string, logger *zap.Logger) *Handler {
	return &Handler{
		profiles: profiles,
		jobs:     jobs,
		runner:   runner,
		cache:    c,
		version:  version,
		logger:   logger.Named("api"),
	}
}

// Routes returns the service mux wrapped in the request logger.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h.logRequests(mux)
}

// RegisterRoutes mounts all collector-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)

	mux.HandleFunc("GET /profiles", h.listProfiles)
	mux.HandleFunc("GET /profiles/{name}", h.getProfile)
	mux.HandleFunc("PUT /profiles/{name}", h.saveProfile)
	mux.HandleFunc("PUT /profiles/{name}/location", h.setLocation)
	mux.HandleFunc("PUT /profiles/{name}/resume", h.uploadResume)
	mux.HandleFunc("DELETE /profiles/{name}/resume", h.clearResume)
	mux.HandleFunc("POST /profiles/{name}/collect", h.collect)

	mux.HandleFunc("GET /jobs", h.getJobs)

	mux.HandleFunc("DELETE /cache", h.clearCache)
	mux.HandleFunc("POST /maintenance/clear-summaries", h.clearSummaries)
	mux.HandleFunc("POST /maintenance/clear-embeddings", h.clearEmbeddings)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{
		"status":  "ok",
		"service": service,
		"version": h.version,
	})
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, profiles)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	name, ok := h.profileName(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.Load(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, p)
}

type saveProfileRequest struct {
	Filters    *model.FilterConfig `json:"filters"`
	MyLocation *string             `json:"myLocation"`
	Latitude   *float64            `json:"latitude"`
	Longitude  *float64            `json:"longitude"`
}

func (h *Handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	name, ok := h.profileName(w, r)
	if !ok {
		return
	}

	var body saveProfileRequest
	if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if (body.Latitude == nil) != (body.Longitude == nil) {
		jsonError(w, "latitude and longitude must be given together", http.StatusBadRequest)
		return
	}

	p, err := h.profiles.Save(r.Context(), name, model.ProfileUpdate{
		Filters:    body.Filters,
		MyLocation: body.MyLocation,
		Latitude:   body.Latitude,
		Longitude:  body.Longitude,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) setLocation(w http.ResponseWriter, r *http.Request) {
	name, ok := h.profileName(w, r)
	if !ok {
		return
	}

	var body struct {
		Location string `json:"location"`
	}
	if err := decodeJSON(w, r, &body); err != nil || strings.TrimSpace(body.Location) == "" {
		jsonError(w, "body must contain location", http.StatusBadRequest)
		return
	}

	p, err := h.profiles.SetLocation(r.Context(), name, strings.TrimSpace(body.Location))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) uploadResume(w http.ResponseWriter, r *http.Request) {
	name, ok := h.profileName(w, r)
	if !ok {
		return
	}

	filename := strings.TrimSpace(r.Header.Get("X-Filename"))
	if filename == "" {
		jsonError(w, "missing X-Filename header", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxResumeSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "resume exceeds 10 MiB", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "could not read body", http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		jsonError(w, "empty resume", http.StatusBadRequest)
		return
	}

	p, err := h.profiles.Save(r.Context(), name, model.ProfileUpdate{
		ResumeFilename: &filename,
		Resume:         data,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, p)
}

func (h *Handler) clearResume(w http.ResponseWriter, r *http.Request) {
	name, ok := h.profileName(w, r)
	if !ok {
		return
	}
	if err := h.profiles.ClearResume(r.Context(), name); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) collect(w http.ResponseWriter, r *http.Request) {
	name, ok := h.profileName(w, r)
	if !ok {
		return
	}
	res, err := h.runner.RunProfile(r.Context(), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) getJobs(w http.ResponseWriter, r *http.Request) {
	ids := r.URL.Query()["id"]

	total, err := h.jobs.CountJobs(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jobs, err := h.jobs.JobsByIDs(r.Context(), ids)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, map[string]any{
		"total": total,
		"jobs":  jobs,
	})
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		h.fail(w, r, apperr.Internal("clear cache", err))
		return
	}
	h.logger.Info("cache cleared")
	jsonOK(w, map[string]bool{"cleared": true})
}

func (h *Handler) clearSummaries(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobs.ClearSummaries(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, map[string]int64{"jobs": n})
}

func (h *Handler) clearEmbeddings(w http.ResponseWriter, r *http.Request) {
	n, err := h.jobs.ClearEmbeddings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, map[string]int64{"jobs": n})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (h *Handler) profileName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("name")
	if err := model.ValidateProfileName(name); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return name, true
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimit:
		return http.StatusTooManyRequests
	case apperr.KindTransport, apperr.KindUpstreamLogical:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		if code == http.StatusInternalServerError {
			jsonError(w, "internal error", code)
			return
		}
	}
	jsonError(w, apperr.Message(err), code)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
