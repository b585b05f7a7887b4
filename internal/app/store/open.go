package store

import (
	"context"
	"fmt"

	"relaychat/internal/app/db"
)

// Supported backend names for Open.
const (
	DriverMemory   = backendMemory
	DriverPostgres = backendPostgres
	DriverMongo    = backendMongo
	DriverBadger   = backendBadger
)

// Options selects and configures a backend.
type Options struct {
	Driver           string
	DatabaseDSN      string
	DatabaseMaxConns int32
	MongoURI         string
	MongoDatabase    string
	BadgerPath       string
}

// Open builds the MessageStore named by opts.Driver.
func Open(ctx context.Context, opts Options) (MessageStore, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil

	case DriverPostgres:
		pool, err := db.NewPool(ctx, opts.DatabaseDSN, db.PoolOptions{MaxConns: opts.DatabaseMaxConns})
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil

	case DriverMongo:
		return OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase)

	case DriverBadger:
		return OpenBadger(opts.BadgerPath)

	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
