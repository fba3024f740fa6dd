// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jeranaias/fieldref/internal/config"
	"github.com/jeranaias/fieldref/internal/export"
	"github.com/jeranaias/fieldref/internal/model"
	"github.com/jeranaias/fieldref/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize is the maximum size for a JSON request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// HealthTimeout bounds the database ping of the health check.
	HealthTimeout = 2 * time.Second

	// Version is the API version reported by /health.
	Version = "1.0.0"
)

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Repository is the part of the content repository the API serves.
type Repository interface {
	Ping(ctx context.Context) error

	ListChildren(ctx context.Context, parentID *int64) ([]model.Section, error)
	GetSection(ctx context.Context, id int64) (*model.Section, error)
	AddSection(ctx context.Context, in model.NewSection) (*model.Section, error)
	UpdateSection(ctx context.Context, id int64, upd model.SectionUpdate) error
	DeleteSection(ctx context.Context, id int64) error

	ListContent(ctx context.Context, sectionID int64) ([]model.ContentItem, error)
	GetContentWithSection(ctx context.Context, id int64) (*model.ContentItem, *model.Section, error)
	AddContent(ctx context.Context, in model.NewContent) (*model.ContentItem, error)
	UpdateContent(ctx context.Context, id int64, upd model.ContentUpdate) error
	DeleteContent(ctx context.Context, id int64) error

	ToggleFavorite(ctx context.Context, userID, sectionID int64) (model.ToggleResult, error)
	ListFavorites(ctx context.Context, userID int64) ([]model.Section, error)

	RecordActivity(ctx context.Context, userID int64, sectionViewed, contentViewed bool) (bool, error)
	SummaryStats(ctx context.Context) (*model.SummaryStats, error)
	AdminStats(ctx context.Context) (*model.AdminStats, error)

	Search(ctx context.Context, query string) ([]model.Section, error)
}

// Exporter runs and tracks offline exports.
type Exporter interface {
	Export(ctx context.Context, requesterID int64, d export.Deliverer) (*export.Result, error)
	Cancel(requesterID int64) bool
	Job(id string) (export.JobStatus, bool)
	Subscribe(id string) (<-chan export.JobStatus, func(), bool)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the HTTP API server.
type Server struct {
	cfg      config.ServerConfig
	repo     Repository
	exports  Exporter
	log      zerolog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates a server. Nothing listens until ListenAndServe.
func New(cfg config.ServerConfig, repo Repository, exports Exporter, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		repo:    repo,
		exports: exports,
		log:     logger.With().Str("component", "server").Logger(),
		router:  mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()
	return s
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	admin := AdminMiddleware(s.cfg.AdminToken, s.log)
	adminFunc := func(h http.HandlerFunc) http.Handler { return admin(h) }

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Sections
	api.HandleFunc("/sections", s.handleListSections).Methods(http.MethodGet)
	api.Handle("/sections", adminFunc(s.handleAddSection)).Methods(http.MethodPost)
	api.HandleFunc("/sections/{id:[0-9]+}", s.handleGetSection).Methods(http.MethodGet)
	api.Handle("/sections/{id:[0-9]+}", adminFunc(s.handleUpdateSection)).Methods(http.MethodPatch)
	api.Handle("/sections/{id:[0-9]+}", adminFunc(s.handleDeleteSection)).Methods(http.MethodDelete)

	// Content
	api.HandleFunc("/sections/{id:[0-9]+}/content", s.handleListContent).Methods(http.MethodGet)
	api.Handle("/sections/{id:[0-9]+}/content", adminFunc(s.handleAddContent)).Methods(http.MethodPost)
	api.HandleFunc("/content/{id:[0-9]+}", s.handleGetContent).Methods(http.MethodGet)
	api.Handle("/content/{id:[0-9]+}", adminFunc(s.handleUpdateContent)).Methods(http.MethodPatch)
	api.Handle("/content/{id:[0-9]+}", adminFunc(s.handleDeleteContent)).Methods(http.MethodDelete)

	// Users
	api.HandleFunc("/users/{uid:-?[0-9]+}/favorites/{sid:[0-9]+}", s.handleToggleFavorite).Methods(http.MethodPost)
	api.HandleFunc("/users/{uid:-?[0-9]+}/favorites", s.handleListFavorites).Methods(http.MethodGet)
	api.HandleFunc("/users/{uid:-?[0-9]+}/activity", s.handleRecordActivity).Methods(http.MethodPost)

	// Stats and search
	api.HandleFunc("/stats", s.handleSummaryStats).Methods(http.MethodGet)
	api.Handle("/stats/admin", adminFunc(s.handleAdminStats)).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	// Exports
	api.HandleFunc("/users/{uid:-?[0-9]+}/export", s.handleExport).Methods(http.MethodPost)
	api.HandleFunc("/users/{uid:-?[0-9]+}/export", s.handleCancelExport).Methods(http.MethodDelete)
	api.HandleFunc("/exports/{id}", s.handleJobStatus).Methods(http.MethodGet)
	api.HandleFunc("/exports/{id}/events", s.handleJobEvents).Methods(http.MethodGet)

	// Subrouters do not inherit these from the root router.
	for _, rt := range []*mux.Router{s.router, api} {
		rt.NotFoundHandler = http.HandlerFunc(handleNotFound)
		rt.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.ExposedHeaders([]string{"Content-Disposition", "X-Media-Count"}),
	)

	return Chain(
		RecoveryMiddleware(s.log),
		handlers.ProxyHeaders,
		LoggingMiddleware(s.log),
		SecurityHeadersMiddleware(),
		cors,
	)(s.router)
}

// checkOrigin applies the CORS origin list to websocket upgrades.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout(),
		WriteTimeout: s.cfg.WriteTimeout(),
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Str("version", Version).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: message, Type: kind, Code: status}})
}

// respondError maps repository errors to status codes. Unknown errors are
// logged and reported without detail.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *storage.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Message: verr.Message,
			Type:    "validation_error",
			Field:   verr.Field,
			Code:    http.StatusBadRequest,
		}})
	case errors.Is(err, storage.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the response
		s.log.Debug().Str("path", r.URL.Path).Msg("request cancelled")
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads a size-limited JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", MaxRequestBodySize)
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// pathID parses a numeric route variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}
