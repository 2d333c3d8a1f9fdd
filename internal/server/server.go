// Package server exposes the ingestion pipeline and dashboard reads over
// HTTP. Writes go only through import and restore; every read endpoint is
// side-effect free.
package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/verdantiq/esg-cli/internal/config"
	"github.com/verdantiq/esg-cli/internal/format"
	"github.com/verdantiq/esg-cli/internal/importer"
	"github.com/verdantiq/esg-cli/internal/model"
	"github.com/verdantiq/esg-cli/internal/normalize"
	"github.com/verdantiq/esg-cli/internal/store"
	"github.com/verdantiq/esg-cli/internal/validate"
)

// Server handles the HTTP API.
type Server struct {
	cfg       config.ServerConfig
	importer  *importer.Importer
	store     store.Store
	validator *validate.Runner
	limiter   *rate.Limiter
}

// New creates a Server.
func New(cfg config.ServerConfig, imp *importer.Importer, st store.Store) *Server {
	limit := rate.Limit(cfg.RateLimitPerSec)
	if cfg.RateLimitPerSec <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		cfg:       cfg,
		importer:  imp,
		store:     st,
		validator: validate.NewRunner(st),
		limiter:   rate.NewLimiter(limit, burst),
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Actor"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/entities/{entityID}", func(r chi.Router) {
		r.With(s.rateLimit).Post("/import", s.handleImport)
		r.Get("/record", s.handleActiveRecord)
		r.Get("/versions", s.handleVersions)
		r.Post("/restore", s.handleRestore)
		r.Get("/metrics", s.handleMetricsByCategory)
		r.Get("/timeseries", s.handleTimeSeries)
		r.Post("/validate", s.handleValidate)
	})

	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "import rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	f := format.Format(r.URL.Query().Get("format"))
	if f == "" {
		f = format.FormatCSV
	}

	maxBody := s.cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 16 << 20
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "read request body: "+err.Error())
		return
	}

	res, err := s.importer.Run(r.Context(), importer.Request{
		EntityID:   entityID,
		EntityType: r.URL.Query().Get("entity_type"),
		Format:     f,
		Data:       data,
		FileName:   r.URL.Query().Get("file_name"),
		Source:     "upload",
		Actor:      actorFrom(r),
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleActiveRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetActiveRecord(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListVersions(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VersionID string `json:"version_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VersionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "version_id is required")
		return
	}

	rec, err := s.store.RestoreVersion(r.Context(), chi.URLParam(r, "entityID"), req.VersionID, actorFrom(r))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleMetricsByCategory(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.URL.Query().Get("category"))
	if !category.Known() {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown category")
		return
	}
	metrics, err := s.store.GetMetricsByCategory(r.Context(), chi.URLParam(r, "entityID"), category)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	metricName := r.URL.Query().Get("metric")
	if metricName == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "metric is required")
		return
	}
	points, err := s.store.GetTimeSeries(r.Context(),
		chi.URLParam(r, "entityID"),
		metricName,
		model.Category(r.URL.Query().Get("category")),
	)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetActiveRecord(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		writePipelineError(w, err)
		return
	}
	res, err := s.validator.Run(r.Context(), rec.ID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}

// writePipelineError maps the pipeline error taxonomy onto HTTP statuses.
// The caller always receives one structured error with a machine-readable
// kind and a human message.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, format.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format", errMessage(err))
	case eris.Is(err, format.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "empty_input", errMessage(err))
	case eris.Is(err, normalize.ErrNoMetricsExtracted):
		writeError(w, http.StatusUnprocessableEntity, "no_metrics_extracted", errMessage(err))
	case eris.Is(err, store.ErrTxConflict):
		writeError(w, http.StatusConflict, "conflict", errMessage(err))
	case eris.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", errMessage(err))
	default:
		zap.L().Error("server: internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func errMessage(err error) string {
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"kind": kind, "message": message},
	})
}
