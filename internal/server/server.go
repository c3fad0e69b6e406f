// Package server wires the HTTP API: the recompute endpoint plus the
// persistence and monitoring routes around it.
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

	"github.com/aristath/risksheet/internal/config"
	"github.com/aristath/risksheet/internal/database"
	"github.com/aristath/risksheet/internal/modules/positions"
	"github.com/aristath/risksheet/internal/modules/recompute"
	"github.com/aristath/risksheet/internal/modules/snapshots"
	"github.com/aristath/risksheet/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log           zerolog.Logger
	DB            *database.DB
	Config        *config.Config
	Engine        *recompute.Service
	PositionsRepo *positions.Repository
	SnapshotsRepo *snapshots.Repository
	Scheduler     *scheduler.Scheduler
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	db             *database.DB
	cfg            *config.Config
	engine         *recompute.Service
	positionsRepo  *positions.Repository
	snapshotsRepo  *snapshots.Repository
	scheduler      *scheduler.Scheduler
	systemHandlers *SystemHandlers
	startupTime    time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		log:           cfg.Log.With().Str("component", "server").Logger(),
		db:            cfg.DB,
		cfg:           cfg.Config,
		engine:        cfg.Engine,
		positionsRepo: cfg.PositionsRepo,
		snapshotsRepo: cfg.SnapshotsRepo,
		scheduler:     cfg.Scheduler,
		startupTime:   time.Now(),
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.DB, s.startupTime)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // recompute fans out to the market data source
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	positionsHandler := positions.NewHandler(s.positionsRepo, s.log)
	recomputeHandler := NewRecomputeHandler(s.engine, s.positionsRepo, s.cfg, s.log)
	snapshotsHandler := NewSnapshotsHandler(s.snapshotsRepo, s.log)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleSystemStatus)
		r.Post("/recalculate", recomputeHandler.HandleRecalculate)

		positionsHandler.RegisterRoutes(r)

		r.Get("/snapshots", snapshotsHandler.HandleGetHistory)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
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
