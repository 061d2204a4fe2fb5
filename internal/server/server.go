// Package server provides the HTTP server and routing for the order ledger.
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

	"github.com/Jatinmanav/StockApp/internal/config"
	"github.com/Jatinmanav/StockApp/internal/database"
	"github.com/Jatinmanav/StockApp/internal/modules/orders"
	ordershandlers "github.com/Jatinmanav/StockApp/internal/modules/orders/handlers"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	DB      *database.DB
	Config  *config.Config
	Port    int
	DevMode bool
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	db             *database.DB
	cfg            *config.Config
	orderService   *orders.Service
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		db:           cfg.DB,
		cfg:          cfg.Config,
		orderService: orders.NewService(cfg.DB, cfg.Config.ReferencePrice, cfg.Log),
	}

	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.DB)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg.Log)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// OrderService exposes the order service for wiring and tests
func (s *Server) OrderService() *orders.Service {
	return s.orderService
}

// Router exposes the router, used by tests to drive requests without a listener
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(log zerolog.Logger) {
	s.router.Get("/health", s.handleHealth)

	orderHandlers := ordershandlers.NewOrderHandlers(s.orderService, log)
	s.router.Route("/security", orderHandlers.Routes)

	s.router.Route("/api/system", func(r chi.Router) {
		r.Get("/status", s.systemHandlers.HandleSystemStatus)
		r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
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
