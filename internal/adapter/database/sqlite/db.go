package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	_ "github.com/mattn/go-sqlite3"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/rs/zerolog"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"

	"github.com/jefferypippitt/essential-todo/db/migrations"
)

const MemoryPath = ":memory:"

// Querier is the part of *sql.DB and *sql.Tx the repositories use.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	*sql.DB
	QueryBuilder *squirrel.StatementBuilderType
}

type Options struct {
	Path           string
	MigrationsPath string
	LogQueries     bool
	MaxOpenConns   int
}

// dsn asks the driver to take the write lock when a transaction begins, so
// two read-then-write transactions cannot interleave.
func dsn(path string) string {
	params := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"

	if strings.Contains(path, "?") {
		return path + "&" + params
	}

	return path + "?" + params
}

func Open(opts Options) (*sql.DB, error) {
	if opts.Path == "" {
		opts.Path = "database.db"
	}

	source := dsn(opts.Path)

	sqlDB, err := otelsql.Open("sqlite3", source,
		otelsql.WithDBSystem("sqlite"),
		otelsql.WithDBName("todos"),
		otelsql.WithTracerProvider(otel.GetTracerProvider()),
	)

	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	db := sqlDB

	if opts.LogQueries {
		// the traced driver moves under the query logger
		driver := sqlDB.Driver()
		if err := sqlDB.Close(); err != nil {
			return nil, fmt.Errorf("releasing sqlite pool: %w", err)
		}

		logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		db = sqldblogger.OpenDriver(source, driver, zerologadapter.New(logger))
	}

	// every connection to :memory: is its own database
	if opts.Path == MemoryPath {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		maxOpen := opts.MaxOpenConns

		if maxOpen <= 0 {
			maxOpen = 10
		}

		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return db, nil
}

func NewDB(opts Options) (*DB, error) {
	sqlDB, err := Open(opts)

	if err != nil {
		return nil, err
	}

	if err := RunMigrations(sqlDB, opts.MigrationsPath); err != nil {
		sqlDB.Close()
		return nil, err
	}

	queryBuilder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

	return &DB{
		DB:           sqlDB,
		QueryBuilder: &queryBuilder,
	}, nil
}

// RunMigrations applies the schema from migrationsPath, or from the embedded
// files when the path is empty. The migrate instance is not closed since that
// would close db.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})

	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	var m *migrate.Migrate

	if migrationsPath != "" {
		m, err = migrate.NewWithDatabaseInstance("file://"+migrationsPath, "sqlite3", driver)
	} else {
		source, sourceErr := iofs.New(migrations.SQLite, "sqlite")

		if sourceErr != nil {
			return fmt.Errorf("failed to read embedded migrations: %w", sourceErr)
		}

		m, err = migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	}

	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
