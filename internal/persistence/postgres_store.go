package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/petrijr/stepflow/pkg/api"
)

// PostgresRecordStore is a RecordStore backed by PostgreSQL through a pgx
// connection pool. Record data is stored as JSONB.
type PostgresRecordStore struct {
	pool *pgxpool.Pool
}

// Ensure PostgresRecordStore implements RecordStore.
var _ api.RecordStore = (*PostgresRecordStore)(nil)

// NewPostgresRecordStore initializes the required schema and returns a new
// PostgresRecordStore. The caller owns the pool.
func NewPostgresRecordStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresRecordStore, error) {
	s := &PostgresRecordStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresRecordStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			connection_id TEXT NOT NULL,
			entity TEXT NOT NULL,
			external_id TEXT NOT NULL,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (connection_id, entity, external_id)
		);
	`)
	return err
}

func (s *PostgresRecordStore) SyncRecords(ctx context.Context, name, connectionID string, records []api.Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		data, err := EncodeData(r.Data)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO records (connection_id, entity, external_id, data, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, now())
			ON CONFLICT (connection_id, entity, external_id)
			DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		`, connectionID, name, r.ExternalID, string(data))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("sync records: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresRecordStore) GetRecords(ctx context.Context, entityName, connectionID string, filters []api.RecordFilter) ([]api.Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	query := `SELECT external_id, data::text FROM records WHERE connection_id = $1 AND entity = $2`
	args := []any{connectionID, entityName}
	if id, ok := externalIDEquals(filters); ok {
		query += ` AND external_id = $3`
		args = append(args, id)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []api.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := DecodeData([]byte(raw))
		if err != nil {
			return nil, err
		}
		all = append(all, api.Record{ExternalID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return FilterRecords(all, filters), nil
}
