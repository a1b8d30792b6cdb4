// Package http serves project status, drift metrics and a Prometheus
// scrape endpoint for one claude-agent project.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/claude-agent/internal/logging"
	"github.com/fyrsmithlabs/claude-agent/internal/metrics"
	"github.com/fyrsmithlabs/claude-agent/internal/monitor"
	"github.com/fyrsmithlabs/claude-agent/internal/telemetry"
)

// Server provides HTTP endpoints for one project.
type Server struct {
	echo     *echo.Echo
	source   monitor.Source
	exporter *metrics.Exporter
	tel      *telemetry.Telemetry
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// ShutdownTimeout bounds graceful shutdown in Serve.
	ShutdownTimeout time.Duration
}

// DefaultConfig listens on localhost only.
func DefaultConfig() *Config {
	return &Config{Host: "localhost", Port: 9464, ShutdownTimeout: 5 * time.Second}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewServer creates a server for the project behind source. A nil tel
// records request metrics on the global meter provider.
func NewServer(source monitor.Source, logger *logging.Logger, cfg *Config, tel *telemetry.Telemetry) (*Server, error) {
	if source.Metrics == nil {
		return nil, fmt.Errorf("metrics store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(tel, logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Debug(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		source:   source,
		exporter: metrics.NewExporter(source.Metrics),
		tel:      tel,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/drift", s.handleDrift)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if s.tel != nil {
		switch h := s.tel.Health(); {
		case !s.tel.IsEnabled():
			resp.Telemetry = "disabled"
		case h.Degraded:
			resp.Telemetry = "degraded"
		default:
			resp.Telemetry = "ok"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	snap := s.source.Collect(c.Request().Context())
	return c.JSON(http.StatusOK, newStatusResponse(snap))
}

func (s *Server) handleDrift(c echo.Context) error {
	ctx := c.Request().Context()
	store := s.source.Metrics
	m := store.Load(ctx)
	snap := s.source.Collect(ctx)
	issues := metrics.ValidateIntegrity(m, store.Tuning().Epsilon)
	if len(issues) > 0 {
		s.logger.Warn(ctx, "drift metrics integrity issues", zap.Strings("issues", issues))
	}
	return c.JSON(http.StatusOK, newDriftResponse(m, snap.Indicators, snap.Velocity, issues))
}

// Start listens on the configured address and blocks until Shutdown.
// It returns http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Serve runs the server until ctx is done, then shuts it down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
