// Package http provides the HTTP server of the image service.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ironsheep/image-optim/internal/config"
	"github.com/ironsheep/image-optim/internal/http/middleware"
)

// Server represents the HTTP server.
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	api        huma.API
	limiter    *middleware.Limiter
	httpServer *http.Server
	logger     *slog.Logger
	stopping   atomic.Bool
}

// NewServer creates a server with the middleware stack installed. The
// version is reported in the OpenAPI document.
func NewServer(cfg config.ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	limiter := middleware.NewLimiter(cfg.ProcessingLimit, "/ping")

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(limiter.Handler)

	humaConfig := huma.DefaultConfig("image-optim API", version)
	humaConfig.Info.Description = "On-demand image optimisation pipeline"
	api := humachi.New(router, humaConfig)

	return &Server{
		config:  cfg,
		router:  router,
		api:     api,
		limiter: limiter,
		httpServer: &http.Server{
			Addr:         cfg.Address(),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// API returns the Huma API instance for registering operations.
func (s *Server) API() huma.API {
	return s.api
}

// Router returns the Chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Stopping reports whether shutdown has begun.
func (s *Server) Stopping() bool {
	return s.stopping.Load()
}

// Processing returns the number of requests being served.
func (s *Server) Processing() int64 {
	return s.limiter.InFlight()
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		slog.String("address", s.httpServer.Addr),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopping.Store(true)

	s.logger.Info("shutting down HTTP server",
		slog.Duration("timeout", s.config.ShutdownTimeout),
	)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ListenAndServe starts the server and blocks until ctx is cancelled or the
// server fails. On cancellation /ping reports "stopping" for the configured
// stop delay before the listener closes.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		s.stopping.Store(true)
		if s.config.StopDelay > 0 {
			s.logger.Info("draining before shutdown", slog.Duration("delay", s.config.StopDelay))
			select {
			case <-time.After(s.config.StopDelay):
			case err := <-errChan:
				return err
			}
		}
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}
