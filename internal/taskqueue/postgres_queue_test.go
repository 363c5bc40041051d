package taskqueue

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/internal/testutil"
)

func TestPostgresQueue(t *testing.T) {
	dsn := testutil.PostgresDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	testQueue(t, func(t *testing.T) Queue {
		table := "tasks_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		q, err := NewPostgresQueue(context.Background(), pool, table)
		require.NoError(t, err)
		return q
	})
}
