package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jefferypippitt/essential-todo/internal/adapter/http/routes"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/telemetry"
	"github.com/jefferypippitt/essential-todo/pkg/config"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	container  *Container
	config     *config.Config
}

func NewServer(ctx context.Context, cfg *config.Config, metrics *telemetry.AppMetrics, probe port.Telemetry, log *logger.LokiLogger) (*Server, error) {
	container, err := NewContainer(ctx, cfg, probe, log)

	if err != nil {
		return nil, err
	}

	router := routes.SetupRouter(routes.HandlersConfig{
		TodoHandler:   container.TodoHandler,
		HealthHandler: container.HealthHandler,
	}, cfg, metrics, log, container.RateLimitStore)

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		container: container,
		config:    cfg,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server stops. A server closed by Shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("Server starting",
		"port", s.config.Server.Port,
		"environment", s.config.Environment,
		"database_driver", s.config.Database.Driver,
		"transactional", s.config.Database.Transactional,
		"rate_limit_enabled", s.config.RateLimit.Enabled,
		"https_enforced", s.config.Server.EnforceHTTPS)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed to start", "error", err)
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.httpServer.Shutdown(ctx),
		s.container.Close(),
	)
}
