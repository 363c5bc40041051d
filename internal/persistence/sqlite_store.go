package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petrijr/stepflow/pkg/api"
)

// SQLiteRecordStore is a RecordStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteRecordStore struct {
	db *sql.DB
}

// Ensure SQLiteRecordStore implements RecordStore.
var _ api.RecordStore = (*SQLiteRecordStore)(nil)

// NewSQLiteRecordStore initializes the required schema in the given
// database and returns a new SQLiteRecordStore.
func NewSQLiteRecordStore(db *sql.DB) (*SQLiteRecordStore, error) {
	s := &SQLiteRecordStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteRecordStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			connection_id TEXT NOT NULL,
			entity TEXT NOT NULL,
			external_id TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (connection_id, entity, external_id)
		);`,
	)
	return err
}

func (s *SQLiteRecordStore) SyncRecords(ctx context.Context, name, connectionID string, records []api.Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixNano()
	for _, r := range records {
		data, err := EncodeData(r.Data)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (connection_id, entity, external_id, data, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (connection_id, entity, external_id)
			DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
			connectionID, name, r.ExternalID, data, now,
		)
		if err != nil {
			return fmt.Errorf("sync record %s: %w", r.ExternalID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteRecordStore) GetRecords(ctx context.Context, entityName, connectionID string, filters []api.RecordFilter) ([]api.Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	query := `SELECT external_id, data FROM records WHERE connection_id = ? AND entity = ?`
	args := []any{connectionID, entityName}
	if id, ok := externalIDEquals(filters); ok {
		query += ` AND external_id = ?`
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []api.Record
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := DecodeData(raw)
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
