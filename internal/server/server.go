// Package server exposes the launcher core over HTTP and WebSocket. It is a
// consumer of the core: everything it reports comes from the managers and
// the event bus, nothing is owned here.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
	"github.com/Sakenfor/pixsim7-sub008/internal/db"
	"github.com/Sakenfor/pixsim7-sub008/internal/events"
	"github.com/Sakenfor/pixsim7-sub008/internal/health"
	"github.com/Sakenfor/pixsim7-sub008/internal/logger"
	"github.com/Sakenfor/pixsim7-sub008/internal/logs"
	"github.com/Sakenfor/pixsim7-sub008/internal/process"
)

// Config holds the server configuration
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            constants.DefaultServerPort,
		ReadTimeout:     constants.DefaultServerReadTimeout,
		WriteTimeout:    constants.DefaultServerWriteTimeout,
		ShutdownTimeout: constants.DefaultServerShutdownTimeout,
	}
}

// Deps are the launcher components the server exposes.
type Deps struct {
	Process *process.Manager
	Health  *health.Manager
	Logs    *logs.Manager
	Bus     *events.Bus
	History *db.EventRepository
}

// Server is the launcher's HTTP/WebSocket API server.
type Server struct {
	config *Config
	deps   Deps
	echo   *echo.Echo
}

// New creates a server around the given launcher components.
func New(cfg *Config, deps Deps) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(logger.RequestLogger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s := &Server{config: cfg, deps: deps, echo: e}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.GET("/status", s.handleStatus)
	api.GET("/services", s.handleListServices)
	api.GET("/services/:key", s.handleGetService)
	api.POST("/services/:key/start", s.handleStartService)
	api.POST("/services/:key/stop", s.handleStopService)
	api.POST("/services/:key/restart", s.handleRestartService)
	api.POST("/services/:key/tool-check", s.handleToolCheck)
	api.GET("/services/:key/logs", s.handleGetLogs)
	api.DELETE("/services/:key/logs", s.handleClearLogs)
	api.GET("/events", s.handleEventHistory)
	api.GET("/events/ws", s.handleEventsWS)
	api.GET("/bus/stats", s.handleBusStats)
}

// Start runs the server until the context is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logger.WithField("addr", addr).Info("API server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
