// Package server exposes the webhook receiver and read-only strategy API over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"stratopt-go/internal/perf"
)

// Optimizer is the core the server forwards validated events to.
type Optimizer interface {
	Apply(ctx context.Context, ev perf.Event) (*perf.SuggestionSet, error)
	Suggest(ctx context.Context, strategy string) (*perf.SuggestionSet, error)
	History(ctx context.Context, strategy string) ([]perf.Observation, error)
	Strategies(ctx context.Context) ([]string, error)
}

// Config holds server configuration.
type Config struct {
	Port         int
	MaxBodyBytes int64
	Log          zerolog.Logger
	Optimizer    Optimizer
	Hub          *Hub
}

// Server represents the HTTP server.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	opt       Optimizer
	validator *PayloadValidator
	hub       *Hub
	maxBody   int64
	port      int
}

// New creates a new HTTP server.
func New(cfg Config) (*Server, error) {
	validator, err := NewPayloadValidator()
	if err != nil {
		return nil, err
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		opt:       cfg.Optimizer,
		validator: validator,
		hub:       cfg.Hub,
		maxBody:   maxBody,
		port:      cfg.Port,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHome)
	s.router.Get("/health", s.handleHealth)
	s.router.Post("/webhook", s.handleWebhook)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/strategies", s.handleStrategies)
		r.Get("/strategies/{name}/history", s.handleHistory)
		r.Get("/strategies/{name}/suggestions", s.handleSuggestions)
		if s.hub != nil {
			r.Get("/stream", s.hub.ServeWS)
		}
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
