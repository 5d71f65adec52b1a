// Package web serves the pending-changes review UI and its JSON API.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/metalagman/pendingreview/internal/autoreview"
	"github.com/metalagman/pendingreview/internal/review"
	"github.com/metalagman/pendingreview/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Reviewer is the review service as the handlers use it.
type Reviewer interface {
	Wikis(ctx context.Context) ([]store.Wiki, error)
	Refresh(ctx context.Context, wikiID int64) ([]review.PagePayload, error)
	Pending(ctx context.Context, wikiID int64) ([]review.PagePayload, error)
	PageRevisions(ctx context.Context, wikiID, pageID int64) (review.PagePayload, error)
	ClearCache(ctx context.Context, wikiID int64) error
	Configuration(ctx context.Context, wikiID int64) (autoreview.WikiConfiguration, error)
	UpdateConfiguration(ctx context.Context, wikiID int64, cfg autoreview.WikiConfiguration) (autoreview.WikiConfiguration, error)
	Autoreview(ctx context.Context, wikiID, pageID int64) (review.AutoreviewResult, error)
	RecentEdits(ctx context.Context, lang string, limit int) ([]review.RecentEdit, error)
}

// Server provides the web UI handlers and state.
type Server struct {
	reviewer Reviewer
	index    *template.Template
	logger   zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. The global logger is used otherwise.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

//go:embed templates/*.html
var templatesFS embed.FS

// NewServer creates a new web server.
func NewServer(reviewer Reviewer, opts ...Option) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	s := &Server{reviewer: reviewer, index: tmpl, logger: log.Logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes returns the router for the web UI and API.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/wikis/{$}", s.handleWikis)
	mux.HandleFunc("POST /api/wikis/{id}/refresh/", s.handleRefresh)
	mux.HandleFunc("GET /api/wikis/{id}/pending/", s.handlePending)
	mux.HandleFunc("GET /api/wikis/{id}/pages/{pageid}/revisions/", s.handlePageRevisions)
	mux.HandleFunc("POST /api/wikis/{id}/clear/", s.handleClear)
	mux.HandleFunc("GET /api/wikis/{id}/configuration/", s.handleConfiguration)
	mux.HandleFunc("PUT /api/wikis/{id}/configuration/", s.handleUpdateConfiguration)
	mux.HandleFunc("POST /api/wikis/{id}/pages/{pageid}/autoreview/", s.handleAutoreview)
	mux.HandleFunc("GET /api/recent-edits/{$}", s.handleRecentEdits)
	mux.Handle("GET /metrics", promhttp.Handler())
	return accessLog(s.logger)(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	wikis, err := s.reviewer.Wikis(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, wikis); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render index")
	}
}

func (s *Server) handleWikis(w http.ResponseWriter, r *http.Request) {
	wikis, err := s.reviewer.Wikis(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wikis": wikis})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pages, err := s.reviewer.Refresh(r.Context(), wikiID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pages, err := s.reviewer.Pending(r.Context(), wikiID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (s *Server) handlePageRevisions(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pageID, ok := pathID(w, r, "pageid")
	if !ok {
		return
	}
	page, err := s.reviewer.PageRevisions(r.Context(), wikiID, pageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.reviewer.ClearCache(r.Context(), wikiID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cfg, err := s.reviewer.Configuration(r.Context(), wikiID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	update, err := decodeConfiguration(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	current, err := s.reviewer.Configuration(r.Context(), wikiID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	saved, err := s.reviewer.UpdateConfiguration(r.Context(), wikiID, update.apply(current))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAutoreview(w http.ResponseWriter, r *http.Request) {
	wikiID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pageID, ok := pathID(w, r, "pageid")
	if !ok {
		return
	}
	res, err := s.reviewer.Autoreview(r.Context(), wikiID, pageID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecentEdits(w http.ResponseWriter, r *http.Request) {
	lang := strings.ToLower(r.URL.Query().Get("lang"))
	if lang == "" {
		lang = review.DefaultLanguage
	}
	if !review.IsSupportedLanguage(lang) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":               "Unsupported language code.",
			"supported_languages": review.Languages(),
		})
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = review.DefaultRecentLimit
	}

	edits, err := s.reviewer.RecentEdits(r.Context(), lang, review.ClampRecentLimit(limit))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"language":            lang,
		"supported_languages": review.Languages(),
		"edits":               edits,
	})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found."})
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case review.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, review.ErrInvalidConfiguration), errors.Is(err, review.ErrUnsupportedLanguage):
		status = http.StatusBadRequest
	case errors.Is(err, review.ErrRefresh):
		status = http.StatusBadGateway
	case errors.Is(err, review.ErrRecentChanges):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

// accessLog attaches logger and a request id to every request and logs
// each completed request.
func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("http request")
		})(next)
		h = hlog.RequestIDHandler("request_id", "X-Request-Id")(h)
		return hlog.NewHandler(logger)(h)
	}
}
