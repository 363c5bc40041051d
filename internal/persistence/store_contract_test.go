package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/stepflow/pkg/api"
)

// testRecordStore runs the behaviour every RecordStore backend must share.
// Each subtest writes under a fresh connection id so backends that outlive
// the test (containers) do not leak state between cases.
func testRecordStore(t *testing.T, store api.RecordStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("sync and get", func(t *testing.T) {
		conn := uuid.NewString()
		err := store.SyncRecords(ctx, "orders", conn, []api.Record{
			{ExternalID: "b", Data: map[string]any{"total": 20, "status": "open"}},
			{ExternalID: "a", Data: map[string]any{"total": 10, "status": "closed"}},
		})
		require.NoError(t, err)

		got, err := store.GetRecords(ctx, "orders", conn, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ExternalID)
		assert.Equal(t, "b", got[1].ExternalID)
		assert.Equal(t, float64(20), got[1].Data["total"])
		assert.Equal(t, "open", got[1].Data["status"])
	})

	t.Run("upsert replaces data", func(t *testing.T) {
		conn := uuid.NewString()
		require.NoError(t, store.SyncRecords(ctx, "orders", conn, []api.Record{
			{ExternalID: "a", Data: map[string]any{"v": 1, "old": true}},
		}))
		require.NoError(t, store.SyncRecords(ctx, "orders", conn, []api.Record{
			{ExternalID: "a", Data: map[string]any{"v": 2}},
		}))

		got, err := store.GetRecords(ctx, "orders", conn, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, map[string]any{"v": float64(2)}, got[0].Data)
	})

	t.Run("entities and connections are isolated", func(t *testing.T) {
		conn, other := uuid.NewString(), uuid.NewString()
		require.NoError(t, store.SyncRecords(ctx, "orders", conn, []api.Record{{ExternalID: "a"}}))
		require.NoError(t, store.SyncRecords(ctx, "invoices", conn, []api.Record{{ExternalID: "b"}}))
		require.NoError(t, store.SyncRecords(ctx, "orders", other, []api.Record{{ExternalID: "c"}}))

		got, err := store.GetRecords(ctx, "orders", conn, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ExternalID)
		assert.Empty(t, got[0].Data)
	})

	t.Run("filters", func(t *testing.T) {
		conn := uuid.NewString()
		require.NoError(t, store.SyncRecords(ctx, "users", conn, []api.Record{
			{ExternalID: "u1", Data: map[string]any{"name": "Alice Smith", "age": 31, "profile": map[string]any{"tier": "gold"}}},
			{ExternalID: "u2", Data: map[string]any{"name": "Bob Stone", "age": 40, "profile": map[string]any{"tier": "silver"}}},
			{ExternalID: "u3", Data: map[string]any{"name": "Carol Smith", "age": 31}},
		}))

		ids := func(filters ...api.RecordFilter) []string {
			t.Helper()
			recs, err := store.GetRecords(ctx, "users", conn, filters)
			require.NoError(t, err)
			out := make([]string, 0, len(recs))
			for _, r := range recs {
				out = append(out, r.ExternalID)
			}
			return out
		}

		assert.Equal(t, []string{"u2"}, ids(api.RecordFilter{Field: ExternalIDField, Value: "u2", Operator: api.FilterEqual}))
		assert.Equal(t, []string{"u1", "u3"}, ids(api.RecordFilter{Field: "age", Value: 31, Operator: api.FilterEqual}))
		assert.Equal(t, []string{"u2"}, ids(api.RecordFilter{Field: "age", Value: 31, Operator: api.FilterNotEqual}))
		assert.Equal(t, []string{"u1", "u3"}, ids(api.RecordFilter{Field: "name", Value: "Smith", Operator: api.FilterContains}))
		assert.Equal(t, []string{"u1"}, ids(api.RecordFilter{Field: "profile.tier", Value: "gold"}))
		assert.Equal(t, []string{"u3"}, ids(
			api.RecordFilter{Field: "age", Value: 31, Operator: api.FilterEqual},
			api.RecordFilter{Field: ExternalIDField, Value: "u1", Operator: api.FilterNotEqual},
		))
		assert.Empty(t, ids(api.RecordFilter{Field: ExternalIDField, Value: "missing", Operator: api.FilterEqual}))
	})

	t.Run("snapshot layout", func(t *testing.T) {
		runID := uuid.NewString()
		snapshot := `{"runId":"` + runID + `"}`
		require.NoError(t, store.SyncRecords(ctx, api.SnapshotEntity, api.SnapshotConnectionID, []api.Record{
			{ExternalID: runID, Data: map[string]any{api.SnapshotField: snapshot}},
		}))

		got, err := store.GetRecords(ctx, api.SnapshotEntity, api.SnapshotConnectionID, []api.RecordFilter{
			{Field: ExternalIDField, Value: runID, Operator: api.FilterEqual},
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, snapshot, got[0].Data[api.SnapshotField])
	})

	t.Run("rejects empty external id", func(t *testing.T) {
		err := store.SyncRecords(ctx, "orders", uuid.NewString(), []api.Record{{ExternalID: ""}})
		assert.ErrorIs(t, err, ErrEmptyExternalID)
	})

	t.Run("rejects unknown operator", func(t *testing.T) {
		_, err := store.GetRecords(ctx, "orders", uuid.NewString(), []api.RecordFilter{
			{Field: "x", Value: 1, Operator: "gt"},
		})
		assert.ErrorIs(t, err, ErrUnsupportedFilter)
	})
}
