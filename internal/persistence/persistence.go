// Package persistence provides RecordStore and EventStore implementations
// for memory, SQLite, PostgreSQL, Redis and MongoDB.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/petrijr/stepflow/pkg/api"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// ErrUnknownDriver is returned by Open for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown store driver")

// Options selects and configures a backend.
type Options struct {
	Driver string

	// DSN is the connection string: a SQLite file name, a PostgreSQL URL, a
	// Redis URL or a MongoDB URI. Memory ignores it; SQLite defaults to an
	// in-memory database.
	DSN string

	// Prefix namespaces Redis keys.
	Prefix string

	// Database and Collection select the MongoDB collection.
	Database   string
	Collection string

	// Retention expires in-memory records after this long.
	Retention time.Duration
}

// Persistence bundles the stores opened for one backend so the caller can
// depend on a single value and release everything with Close.
type Persistence struct {
	Records api.RecordStore
	Events  EventStore

	closers []func() error
}

// Close releases the backend connections.
func (p *Persistence) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Open connects to the backend described by opts and prepares its schema.
func Open(ctx context.Context, opts Options) (*Persistence, error) {
	switch strings.ToLower(opts.Driver) {
	case "", DriverMemory:
		return &Persistence{
			Records: NewMemoryRecordStore(opts.Retention),
			Events:  NewInMemoryEventStore(),
		}, nil

	case DriverSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// A second connection to ":memory:" would see a different database.
		db.SetMaxOpenConns(1)
		p := &Persistence{closers: []func() error{db.Close}}
		if p.Records, err = NewSQLiteRecordStore(db); err != nil {
			_ = p.Close()
			return nil, err
		}
		if p.Events, err = NewSQLiteEventStore(db); err != nil {
			_ = p.Close()
			return nil, err
		}
		return p, nil

	case DriverPostgres:
		pool, err := pgxpool.New(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		p := &Persistence{
			Events:  NewInMemoryEventStore(),
			closers: []func() error{func() error { pool.Close(); return nil }},
		}
		if p.Records, err = NewPostgresRecordStore(ctx, pool); err != nil {
			_ = p.Close()
			return nil, err
		}
		return p, nil

	case DriverRedis:
		ropts, err := redis.ParseURL(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return &Persistence{
			Records: NewRedisRecordStore(client, opts.Prefix),
			Events:  NewInMemoryEventStore(),
			closers: []func() error{client.Close},
		}, nil

	case DriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.DSN))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = disconnect()
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		return &Persistence{
			Records: NewMongoRecordStore(client, opts.Database, opts.Collection),
			Events:  NewInMemoryEventStore(),
			closers: []func() error{disconnect},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
