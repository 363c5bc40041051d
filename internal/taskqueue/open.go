package taskqueue

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
)

// ErrUnknownDriver is returned by Open for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown queue driver")

// Options selects and configures a queue backend. The fields follow
// persistence.Options.
type Options struct {
	Driver     string
	DSN        string
	Prefix     string
	Database   string
	Collection string

	// Capacity bounds the in-memory queue.
	Capacity int
}

// Open connects to the queue backend described by opts. The returned
// close function releases its connections.
func Open(ctx context.Context, opts Options) (Queue, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(opts.Driver) {
	case "", "memory":
		capacity := opts.Capacity
		if capacity <= 0 {
			capacity = 1024
		}
		return NewInMemoryQueue(capacity), noop, nil

	case "sqlite":
		dsn := opts.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		q, err := NewSQLiteQueue(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return q, db.Close, nil

	case "postgres":
		pool, err := pgxpool.New(ctx, opts.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		q, err := NewPostgresQueue(ctx, pool, opts.Collection)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return q, func() error { pool.Close(); return nil }, nil

	case "redis":
		ropts, err := redis.ParseURL(opts.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisQueue(client, opts.Prefix), client.Close, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.DSN))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = disconnect()
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		return NewMongoQueue(client, opts.Database, opts.Collection), disconnect, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}
