// Package api exposes the analysis service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"healthcare-call-insights/internal/config"
	"healthcare-call-insights/internal/files"
	"healthcare-call-insights/internal/health"
	"healthcare-call-insights/internal/logger"
	"healthcare-call-insights/internal/processor"
	"healthcare-call-insights/internal/search"
	"healthcare-call-insights/internal/store"
	"healthcare-call-insights/internal/token"
	"healthcare-call-insights/internal/types"
)

// Collaborators returns the clients built from the current settings.
type Collaborators interface {
	Health() *health.Checker
	Search() *search.Client
}

// Config holds the router dependencies.
type Config struct {
	Settings      *config.Store
	Processor     *processor.Processor
	Results       *store.Store
	Files         *files.Manager
	Tokens        *token.Manager
	Collaborators Collaborators
	Metrics       http.Handler
	Logger        *logger.Logger
}

type Server struct {
	settings *config.Store
	proc     *processor.Processor
	results  *store.Store
	files    *files.Manager
	tokens   *token.Manager
	collab   Collaborators
	log      *logger.Logger
}

// New creates the chi router with all routes configured.
func New(cfg Config) http.Handler {
	s := &Server{
		settings: cfg.Settings,
		proc:     cfg.Processor,
		results:  cfg.Results,
		files:    cfg.Files,
		tokens:   cfg.Tokens,
		collab:   cfg.Collaborators,
		log:      logger.OrDiscard(cfg.Logger).Component("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.healthSummary)
		r.Get("/health/status", s.healthStatus)
		r.Post("/health/refresh", s.healthRefresh)

		r.Route("/files", func(r chi.Router) {
			r.Get("/browse", s.browse)
			r.Post("/upload", s.upload)
			r.Post("/create-folder", s.createFolder)
			r.Delete("/*", s.deleteFile)
		})

		r.Post("/analyze", s.analyze)
		r.Post("/analyze/batch", s.analyzeBatch)

		r.Get("/results", s.recentResults)
		r.Get("/results/export", s.exportResults)
		r.Get("/result", s.latestResult)
		r.Get("/result/versions", s.resultVersions)
		r.Get("/result/version", s.resultVersion)

		r.Route("/solr", func(r chi.Router) {
			r.Get("/status", s.solrStatus)
			r.Post("/push", s.solrPush)
			r.Get("/query", s.solrQuery)
			r.Get("/facets/{field}", s.solrFacets)
			r.Get("/stats", s.solrStats)
			r.Get("/stats/{field}", s.solrFieldStats)
			r.Get("/categorical-facets/{category}", s.solrCategoricalFacets)
		})

		r.Get("/tokens/status", s.tokenStatus)
		r.Get("/setup-check", s.setupCheck)
		r.Get("/settings", s.getSettings)
		r.Post("/settings", s.updateSettings)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		entry := s.log.WithRequest(r)
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("req_id", id)
		}
		entry.WithField("status", ww.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request completed")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := s.log.WithRequest(r).WithField("status", status).WithField("error", err.Error())
	if status >= 500 {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", types.ErrBadRequest, msg)
}

// statusFor maps the error taxonomy onto HTTP statuses. Failures reported by
// a remote service are upstream errors regardless of their kind.
func statusFor(err error) int {
	var ce *types.CollaboratorError
	switch {
	case errors.Is(err, processor.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &ce) && ce.Status != 0:
		if errors.Is(err, types.ErrTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrBadRequest), errors.Is(err, types.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrAuth), errors.Is(err, types.ErrTransport), errors.Is(err, types.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid " + name + ": " + v)
	}
	return n, nil
}
