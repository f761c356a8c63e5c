package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jefferypippitt/essential-todo/internal/adapter/database/memory"
	"github.com/jefferypippitt/essential-todo/internal/adapter/database/postgres"
	pgrepository "github.com/jefferypippitt/essential-todo/internal/adapter/database/postgres/repository"
	"github.com/jefferypippitt/essential-todo/internal/adapter/database/sqlite"
	sqliterepository "github.com/jefferypippitt/essential-todo/internal/adapter/database/sqlite/repository"
	"github.com/jefferypippitt/essential-todo/internal/adapter/http/handler"
	"github.com/jefferypippitt/essential-todo/internal/adapter/http/middleware"
	"github.com/jefferypippitt/essential-todo/internal/adapter/http/validation"
	"github.com/jefferypippitt/essential-todo/internal/core/port"
	"github.com/jefferypippitt/essential-todo/internal/core/service"
	"github.com/jefferypippitt/essential-todo/internal/core/util"
	"github.com/jefferypippitt/essential-todo/pkg/config"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

type Container struct {
	Store          port.TodoStore
	TodoService    port.TodoService
	TodoActions    port.TodoListActions
	RateLimitStore middleware.Store

	TodoHandler   *handler.TodoHandler
	HealthHandler *handler.HealthHandler

	closers []func() error
}

func NewContainer(ctx context.Context, cfg *config.Config, probe port.Telemetry, log *logger.LokiLogger) (*Container, error) {
	c := &Container{}

	store, err := c.openStore(ctx, cfg.Database, probe)

	if err != nil {
		return nil, err
	}

	c.Store = store

	if cfg.RateLimit.Enabled {
		rateLimitStore, err := c.openRateLimitStore(ctx, cfg.RateLimit)

		if err != nil {
			c.Close()
			return nil, err
		}

		c.RateLimitStore = rateLimitStore
	}

	validator := validation.New()

	todoSvc := service.NewTodoService(store, validator,
		service.WithTransactions(cfg.Database.Transactional),
		service.WithTelemetry(probe),
		service.WithCursorCodec(util.NewCursorCodec(cfg.Pagination.CursorSecret)),
	)

	c.TodoService = todoSvc
	c.TodoActions = service.NewActions(todoSvc)

	c.TodoHandler = handler.NewTodoHandler(c.TodoService, c.TodoActions, validator, log)
	c.HealthHandler = handler.NewHealthHandler(store, log)

	return c, nil
}

func (c *Container) openStore(ctx context.Context, cfg config.DatabaseConfig, probe port.Telemetry) (port.TodoStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil

	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, postgres.Options{
			URL:            cfg.URL,
			MigrationsPath: cfg.MigrationsPath,
			MaxConns:       int32(cfg.MaxOpenConns),
		})

		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}

		c.closers = append(c.closers, func() error {
			db.Close()
			return nil
		})

		return pgrepository.NewTodoRepository(db, probe), nil

	case config.DriverSQLite, "":
		db, err := sqlite.NewDB(sqlite.Options{
			Path:           cfg.Path,
			MigrationsPath: cfg.MigrationsPath,
			LogQueries:     cfg.LogQueries,
			MaxOpenConns:   cfg.MaxOpenConns,
		})

		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}

		c.closers = append(c.closers, db.Close)

		return sqliterepository.NewTodoRepository(db, probe), nil
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func (c *Container) openRateLimitStore(ctx context.Context, cfg config.RateLimitConfig) (middleware.Store, error) {
	if cfg.Backend != config.BackendRedis {
		return middleware.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}

	c.closers = append(c.closers, client.Close)

	return middleware.NewRedisStore(client, "essential-todo:"), nil
}

// Close releases everything opened by NewContainer, newest first.
func (c *Container) Close() error {
	var errs []error

	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	c.closers = nil

	return errors.Join(errs...)
}
