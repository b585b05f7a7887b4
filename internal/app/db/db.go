/*
Package db opens the PostgreSQL connection pool used by the message store and
brings the schema up to date with the embedded goose migrations.
*/
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"relaychat/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DefaultMaxConns is used when PoolOptions.MaxConns is not set.
const DefaultMaxConns = 25

// connectTimeout bounds pool creation, the first ping and the migrations.
const connectTimeout = 15 * time.Second

// PoolOptions tunes the connection pool.
type PoolOptions struct {
	MaxConns int32
}

// NewPool connects to dsn, verifies the connection and applies pending migrations.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	config, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logx.Info("PostgreSQL pool ready.",
		"max_conns", config.MaxConns,
		"host", config.ConnConfig.Host,
		"database", config.ConnConfig.Database,
	)

	return pool, nil
}

func poolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = opts.MaxConns
	if config.MaxConns <= 0 {
		config.MaxConns = DefaultMaxConns
	}
	config.MinConns = min(2, config.MaxConns)
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = time.Minute

	return config, nil
}

// Migrate applies all pending embedded migrations through a database/sql handle
// borrowed from the pool's connection settings.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	return migrate(ctx, sqlDB)
}

func migrate(ctx context.Context, sqlDB *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	logx.Info("Database migrations applied.", "schema_version", version)
	return nil
}
