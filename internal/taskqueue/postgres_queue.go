package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueue implements Queue using a PostgreSQL table.
//
// Schema (created automatically if missing):
//
//	CREATE TABLE IF NOT EXISTS run_tasks (
//	    seq         BIGSERIAL PRIMARY KEY,
//	    task_id     TEXT NOT NULL,
//	    payload     BYTEA NOT NULL,
//	    not_before  TIMESTAMPTZ NOT NULL
//	);
//
// Tasks are handed out by not_before, then insertion order.
type PostgresQueue struct {
	pool         *pgxpool.Pool
	table        string
	pollInterval time.Duration
}

// Ensure PostgresQueue implements Queue.
var _ Queue = (*PostgresQueue)(nil)

// NewPostgresQueue creates the table if needed. table defaults to
// "run_tasks".
func NewPostgresQueue(ctx context.Context, pool *pgxpool.Pool, table string) (*PostgresQueue, error) {
	if table == "" {
		table = "run_tasks"
	}
	q := &PostgresQueue{
		pool:         pool,
		table:        pgx.Identifier{table}.Sanitize(),
		pollInterval: 50 * time.Millisecond,
	}
	if err := q.initSchema(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *PostgresQueue) initSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			seq        BIGSERIAL PRIMARY KEY,
			task_id    TEXT NOT NULL,
			payload    BYTEA NOT NULL,
			not_before TIMESTAMPTZ NOT NULL
		)`, q.table))
	return err
}

// Enqueue inserts a task into the queue.
func (q *PostgresQueue) Enqueue(ctx context.Context, t Task) error {
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	data, err := EncodeTask(t)
	if err != nil {
		return err
	}
	due := t.EnqueuedAt
	if !t.NotBefore.IsZero() {
		due = t.NotBefore
	}
	_, err = q.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (task_id, payload, not_before) VALUES ($1, $2, $3)`, q.table),
		t.ID, data, due.UTC())
	return err
}

// Dequeue blocks (with polling) until a task is due or ctx is cancelled.
// The claiming DELETE skips rows locked by other consumers.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*Task, error) {
	claim := fmt.Sprintf(`
		DELETE FROM %[1]s
		WHERE seq = (
			SELECT seq FROM %[1]s
			WHERE not_before <= now()
			ORDER BY not_before, seq
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING task_id, payload`, q.table)

	tmr := time.NewTimer(0)
	if !tmr.Stop() {
		<-tmr.C
	}
	defer tmr.Stop()

	for {
		var (
			id      string
			payload []byte
		)
		err := q.pool.QueryRow(ctx, claim).Scan(&id, &payload)
		switch {
		case err == nil:
			task, err := DecodeTask(payload)
			if err != nil {
				return nil, fmt.Errorf("decode task %q: %w", id, err)
			}
			return task, nil
		case errors.Is(err, pgx.ErrNoRows):
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, err
		}

		tmr.Reset(q.pollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tmr.C:
		}
	}
}

// Len returns an approximate number of queued tasks.
func (q *PostgresQueue) Len() int {
	var n int
	err := q.pool.QueryRow(context.Background(), fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q.table)).Scan(&n)
	if err != nil {
		log.Printf("stepflow: PostgresQueue.Len failed: %v", err)
		return 0
	}
	return n
}
