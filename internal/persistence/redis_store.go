package persistence

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/petrijr/stepflow/pkg/api"
)

// RedisRecordStore is a RecordStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>rec:<connection>:<entity>:<id>  => JSON-encoded record
//	<prefix>idx:<connection>:<entity>       => SET of record ids
//
// The index is best-effort; it is always updated on sync, and GetRecords
// skips ids whose record has disappeared.
type RedisRecordStore struct {
	client *redis.Client
	prefix string
}

var _ api.RecordStore = (*RedisRecordStore)(nil)

// NewRedisRecordStore creates a RedisRecordStore.
// prefix is optional but recommended (e.g. "stepflow:").
func NewRedisRecordStore(client *redis.Client, prefix string) *RedisRecordStore {
	if prefix == "" {
		prefix = "stepflow:"
	}
	return &RedisRecordStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRecordStore) keyRecord(connectionID, entity, id string) string {
	return fmt.Sprintf("%srec:%s:%s:%s", s.prefix, connectionID, entity, id)
}

func (s *RedisRecordStore) keyIndex(connectionID, entity string) string {
	return fmt.Sprintf("%sidx:%s:%s", s.prefix, connectionID, entity)
}

func (s *RedisRecordStore) SyncRecords(ctx context.Context, name, connectionID string, records []api.Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			raw, err := json.Marshal(storedRecord{ExternalID: r.ExternalID, Data: r.Data})
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.keyRecord(connectionID, name, r.ExternalID), raw, 0)
			pipe.SAdd(ctx, s.keyIndex(connectionID, name), r.ExternalID)
		}
		return nil
	})
	return err
}

func (s *RedisRecordStore) GetRecords(ctx context.Context, entityName, connectionID string, filters []api.RecordFilter) ([]api.Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	var ids []string
	if id, ok := externalIDEquals(filters); ok {
		ids = []string{id}
	} else {
		members, err := s.client.SMembers(ctx, s.keyIndex(connectionID, entityName)).Result()
		if err != nil {
			return nil, err
		}
		ids = members
	}
	if len(ids) == 0 {
		return []api.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyRecord(connectionID, entityName, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	all := make([]api.Record, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec storedRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		if rec.Data == nil {
			rec.Data = map[string]any{}
		}
		all = append(all, api.Record{ExternalID: rec.ExternalID, Data: rec.Data})
	}
	return FilterRecords(all, filters), nil
}
