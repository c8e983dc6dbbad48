// Package server implements the HTTP metadata API and the observability
// endpoints of the metadata service
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nainya/metadata-service/internal/logger"
	"github.com/nainya/metadata-service/internal/metrics"
	"github.com/nainya/metadata-service/pkg/errs"
	"github.com/nainya/metadata-service/pkg/query"
)

// Pinger reports whether the datastore is readable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP server
type Options struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
}

// Server serves the read-only metadata API
type Server struct {
	engine  *query.Engine
	ready   Pinger
	log     *logger.Logger
	metrics *metrics.Metrics
	router  chi.Router
	server  *http.Server
}

// NewServer creates the API server over engine. ready backs /health/ready.
func NewServer(engine *query.Engine, ready Pinger, m *metrics.Metrics, log *logger.Logger, opts Options) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	s := &Server{
		engine:  engine,
		ready:   ready,
		log:     log,
		metrics: m,
	}
	s.router = s.routes(opts.RequestTimeout)
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes(requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID(s.log.HTTPLogger("api")))
	r.Use(instrument(s.metrics))
	r.Use(recoverer)
	r.Use(timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, &errs.Error{
			Kind:    errs.PathNotFound,
			Message: fmt.Sprintf("Error: %s not found", r.URL.Path),
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, http.StatusMethodNotAllowed, errs.Payload{
			Type:      "BAD_REQUEST",
			Code:      http.StatusMethodNotAllowed,
			Service:   errs.Service,
			Message:   fmt.Sprintf("Error: method %s not allowed for %s", r.Method, r.URL.Path),
			RequestID: RequestIDFromContext(r.Context()),
		})
	})

	r.Get("/health/alive", s.handleAlive)
	r.Get("/health/ready", s.handleReady)
	r.Get("/languages", s.handleLanguages)

	r.Route("/metadata", func(r chi.Router) {
		r.Use(contentLanguage)
		r.Get("/data-store", s.handleDataStore)
		r.Get("/data-structures/status", s.handleStatus)
		r.Get("/data-structures", s.handleStructures)
		r.Get("/all", s.handleAll)
	})

	return r
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.Info("Starting metadata API").Str("addr", s.server.Addr).Send()
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metadata API server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down metadata API").Send()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("I'm alive!"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.ready != nil {
		if err := s.ready.Ping(r.Context()); err != nil {
			logger.FromContext(r.Context()).Warn("readiness check failed").Err(err).Send()
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("I'm not ready!"))
			return
		}
	}
	w.Write([]byte("I'm ready!"))
}

// handleLanguages and handleDataStore take no parameters and ignore any
// that are sent.
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, s.engine.GetLanguages(r.Context()))
}

func (s *Server) handleDataStore(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordVersionQuery()
	versions, err := s.engine.GetAllVersions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, versions)
}

// handleStatus answers both the list form (names=A,B), returning a map
// with null for unknown names, and the single form (name=A), returning
// one status or DATA_NOT_FOUND.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if err := checkParams(values, "names", "name"); err != nil {
		writeError(w, r, err)
		return
	}

	single := values.Has("name")
	if single && values.Has("names") {
		writeError(w, r, errs.Invalid("Use either name or names, not both"))
		return
	}

	key := "names"
	if single {
		key = "name"
	}
	names := parseNames(values, key)
	if single && len(names) != 1 {
		writeError(w, r, errs.Invalid("Query parameter name must hold exactly one data structure name"))
		return
	}

	statuses, err := s.engine.GetStructureStatus(r.Context(), names)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, status := range statuses {
		s.metrics.RecordStatusLookup(status != nil)
	}

	if single {
		status := statuses[names[0]]
		if status == nil {
			writeError(w, r, errs.NotFoundf(names[0], "No data structure named %s was found", names[0]))
			return
		}
		writeResponse(w, r, http.StatusOK, status)
		return
	}
	writeResponse(w, r, http.StatusOK, statuses)
}

func (s *Server) handleStructures(w http.ResponseWriter, r *http.Request) {
	q, err := parseStructuresQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	structures, err := s.engine.GetStructures(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, structures)
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	v, skip, err := parseAllQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := s.engine.GetAllMetadata(r.Context(), v, skip)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResponse(w, r, http.StatusOK, doc)
}
