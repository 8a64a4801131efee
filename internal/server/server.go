package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/timelock/internal/config"
	"github.com/congo-pay/timelock/internal/metrics"
	"github.com/congo-pay/timelock/internal/routes"
	"github.com/congo-pay/timelock/internal/wallet"
)

// Server wraps the Fiber application, shared dependencies and background jobs.
type Server struct {
	app        *fiber.App
	cfg        config.Config
	logger     *slog.Logger
	components routes.Components
	// watchCancel stops scans started by StartJobs.
	watchCancel context.CancelFunc
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler,
	})

	components, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Metrics: metrics.New()})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, logger: logger, components: components}, nil
}

// StartJobs schedules the release watcher. An empty schedule disables it.
func (s *Server) StartJobs(ctx context.Context) error {
	if s.cfg.ReleaseWatchSchedule == "" {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	if err := s.components.Watcher.Start(ctx, s.cfg.ReleaseWatchSchedule); err != nil {
		cancel()
		return err
	}
	s.watchCancel = cancel
	return nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown gracefully stops the HTTP server and the release watcher.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.watchCancel != nil {
		s.watchCancel()
		s.components.Watcher.Stop()
	}
	return err
}

// errorHandler renders errors as JSON, keeping fiber's status codes.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code, message = fe.Code, fe.Message
	} else {
		err = wallet.HTTPError(err)
		if errors.As(err, &fe) {
			code, message = fe.Code, fe.Message
		}
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
