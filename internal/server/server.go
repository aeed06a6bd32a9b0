// Package server exposes the chat gateway over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xinggonglie/lobe-chat-2/internal/auth"
	"github.com/xinggonglie/lobe-chat-2/internal/config"
	"github.com/xinggonglie/lobe-chat-2/internal/provider"
	"github.com/xinggonglie/lobe-chat-2/internal/provider/dispatch"
)

// Dispatcher builds a provider client for one request.
type Dispatcher interface {
	Initialize(providerID string, payload *auth.Payload, ov dispatch.Overrides) (provider.Client, error)
}

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	idleTimeout         = 120 * time.Second
)

// Server wires the chat route onto an echo application.
type Server struct {
	store      *config.Store
	dispatcher Dispatcher
	app        *echo.Echo
	address    string
}

// New constructs an HTTP server wired with routing and middleware.
func New(store *config.Store, dispatcher Dispatcher) (*Server, error) {
	if store == nil {
		return nil, errors.New("config store must not be nil")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher must not be nil")
	}

	cfg := store.Snapshot()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))

	srv := &Server{
		store:      store,
		dispatcher: dispatcher,
		app:        e,
		address:    fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	// No write timeout: chat responses are long-lived streams.
	httpServer := &http.Server{
		Addr:        s.address,
		Handler:     s.app,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/api/chat/:provider", s.handleChat)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
