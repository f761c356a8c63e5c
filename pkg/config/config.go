package config

import (
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Database    DatabaseConfig   `toml:"database"`
	RateLimit   RateLimitConfig  `toml:"rate_limit"`
	Telemetry   TelemetryConfig  `toml:"telemetry"`
	Pagination  PaginationConfig `toml:"pagination"`
}

type ServerConfig struct {
	Port            string        `toml:"port"`
	GinMode         string        `toml:"gin_mode"`
	EnforceHTTPS    bool          `toml:"enforce_https"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
	AllowedOrigins  []string      `toml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver         string `toml:"driver"`
	Path           string `toml:"path"`
	URL            string `toml:"url"`
	MigrationsPath string `toml:"migrations_path"`
	Transactional  bool   `toml:"transactional"`
	LogQueries     bool   `toml:"log_queries"`
	MaxOpenConns   int    `toml:"max_open_conns"`
}

type RateLimitConfig struct {
	Enabled   bool                     `toml:"enabled"`
	Backend   string                   `toml:"backend"`
	RedisAddr string                   `toml:"redis_addr"`
	Endpoints map[string]EndpointLimit `toml:"endpoints"`
}

type EndpointLimit struct {
	Requests int           `toml:"requests"`
	Window   time.Duration `toml:"window"`
}

type TelemetryConfig struct {
	ServiceName  string `toml:"service_name"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	MetricsPort  string `toml:"metrics_port"`
	LokiURL      string `toml:"loki_url"`
}

type PaginationConfig struct {
	CursorSecret string `toml:"cursor_secret"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "debug",
			EnforceHTTPS:    false,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:        DriverSQLite,
			Path:          "database.db",
			Transactional: true,
			MaxOpenConns:  10,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Backend: BackendMemory,
			Endpoints: map[string]EndpointLimit{
				"GET /todos": {
					Requests: 100,
					Window:   time.Minute,
				},
				"POST /todos": {
					Requests: 20,
					Window:   time.Minute,
				},
				"POST /todos/reorder": {
					Requests: 60,
					Window:   time.Minute,
				},
				"DELETE /todos/:id": {
					Requests: 20,
					Window:   time.Minute,
				},
				"default": {
					Requests: 60,
					Window:   time.Minute,
				},
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "essential-todo",
			MetricsPort: "9090",
		},
		Pagination: PaginationConfig{
			CursorSecret: "essential-todo",
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Server.GinMode == "release"
}
