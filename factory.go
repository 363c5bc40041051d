package stepflow

import (
	"context"
	"fmt"

	"github.com/petrijr/stepflow/internal/persistence"
	"github.com/petrijr/stepflow/internal/taskqueue"
	"github.com/petrijr/stepflow/pkg/api"
	"github.com/petrijr/stepflow/pkg/config"
	"github.com/petrijr/stepflow/pkg/logging"
)

type (
	// Persistence bundles a record store with the matching event history
	// store. Close releases the backend.
	Persistence = persistence.Persistence

	// EventStore is an append-only run history.
	EventStore = persistence.EventStore
)

// NewMemoryRecordStore returns an in-process RecordStore. A positive
// retention expires records that were not re-synced within it.
var NewMemoryRecordStore = persistence.NewMemoryRecordStore

// NewMemoryEventStore returns an in-process EventStore for HistoryObserver.
var NewMemoryEventStore = persistence.NewInMemoryEventStore

// OpenRecordStore connects to the backend selected by cfg.Driver: memory,
// sqlite, postgres, redis or mongo.
func OpenRecordStore(ctx context.Context, cfg config.Store) (*Persistence, error) {
	return persistence.Open(ctx, persistence.Options{
		Driver:     cfg.Driver,
		DSN:        cfg.DSN,
		Prefix:     cfg.Prefix,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Retention:  cfg.Retention,
	})
}

// OpenQueue connects to the task queue selected by cfg.Driver: memory,
// sqlite, postgres, redis or mongo. The returned function closes it.
func OpenQueue(ctx context.Context, cfg config.Queue) (Queue, func() error, error) {
	return taskqueue.Open(ctx, taskqueue.Options{
		Driver:     cfg.Driver,
		DSN:        cfg.DSN,
		Prefix:     cfg.Prefix,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Capacity:   cfg.Capacity,
	})
}

// NewLogger builds the engine logger selected by cfg.Backend ("slog" or
// "zap"), writing JSON to stderr.
func NewLogger(cfg config.Log) (api.Logger, error) {
	switch cfg.Backend {
	case "", "slog":
		return logging.NewSlogLogger(cfg.Level, nil), nil
	case "zap":
		return logging.NewZap(cfg.Level, nil), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.Backend)
	}
}

// FromConfig turns cfg into workflow options: retry defaults, the logger
// and the record store. The caller owns the returned Persistence.
func FromConfig(ctx context.Context, cfg *config.Config) ([]Option, *Persistence, error) {
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	p, err := OpenRecordStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	opts := []Option{
		WithRetry(cfg.Retry.RetryConfig()),
		WithLogger(logger),
		WithRecordStore(p.Records),
	}
	return opts, p, nil
}
