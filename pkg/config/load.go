package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Load builds the configuration from, in increasing priority:
// 1. Defaults
// 2. The TOML file named by -config or TODOS_CONFIG
// 3. Environment variables
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := GetDefaultConfig()

	if fs == nil {
		fs = flag.NewFlagSet("todos", flag.ContinueOnError)
	}

	configFile := fs.String("config", os.Getenv("TODOS_CONFIG"), "Path to a TOML config file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if *configFile != "" {
		if err := loadConfigFile(cfg, *configFile); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", *configFile, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("GIN_MODE"); v != "" {
		cfg.Server.GinMode = v
	}
	if v := os.Getenv("ENFORCE_HTTPS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ENFORCE_HTTPS: %w", err)
		}
		cfg.Server.EnforceHTTPS = enabled
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("MIGRATIONS_PATH"); v != "" {
		cfg.Database.MigrationsPath = v
	}
	if v := os.Getenv("DATABASE_TRANSACTIONAL"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DATABASE_TRANSACTIONAL: %w", err)
		}
		cfg.Database.Transactional = enabled
	}
	if v := os.Getenv("RATE_LIMIT_BACKEND"); v != "" {
		cfg.RateLimit.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RateLimit.RedisAddr = v
	}
	if v := os.Getenv("CURSOR_SECRET_KEY"); v != "" {
		cfg.Pagination.CursorSecret = v
	}
	if v := os.Getenv("OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Telemetry.MetricsPort = v
	}
	if v := os.Getenv("LOKI_URL"); v != "" {
		cfg.Telemetry.LokiURL = v
	}

	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RateLimit.RedisAddr == "" {
			errs = append(errs, errors.New("rate_limit.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend))
	}

	for name, limit := range c.RateLimit.Endpoints {
		if limit.Requests <= 0 || limit.Window <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.endpoints.%q needs positive requests and window", name))
		}
	}

	if c.Pagination.CursorSecret == "" {
		errs = append(errs, errors.New("pagination.cursor_secret is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}
