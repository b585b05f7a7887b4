package db

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolConfig(t *testing.T) {
	req := require.New(t)

	config, err := poolConfig("postgres://u:p@db.internal:5432/relaychat?sslmode=disable", PoolOptions{})
	req.NoError(err)
	req.Equal(int32(DefaultMaxConns), config.MaxConns)
	req.Equal(int32(2), config.MinConns)
	req.Equal(30*time.Minute, config.MaxConnLifetime)
	req.Equal("db.internal", config.ConnConfig.Host)
	req.Equal("relaychat", config.ConnConfig.Database)

	config, err = poolConfig("postgres://u:p@localhost/relaychat", PoolOptions{MaxConns: 1})
	req.NoError(err)
	req.Equal(int32(1), config.MaxConns)
	req.Equal(int32(1), config.MinConns)
}

func TestPoolConfig_InvalidDSN(t *testing.T) {
	_, err := poolConfig("postgres://u:p@localhost:notaport/db", PoolOptions{})
	require.ErrorContains(t, err, "failed to parse database DSN")
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(embedMigrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	body, err := fs.ReadFile(embedMigrations, files[0])
	require.NoError(t, err)
	require.Contains(t, string(body), "-- +goose Up")
	require.Contains(t, string(body), "conversation_id")
}
