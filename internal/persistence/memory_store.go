package persistence

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/petrijr/stepflow/pkg/api"
)

// MemoryRecordStore is an in-process RecordStore. Records are kept as JSON
// so callers never share maps with the store. A positive retention makes
// records expire after that long without being re-synced.
type MemoryRecordStore struct {
	cache     *gocache.Cache
	retention time.Duration
}

var _ api.RecordStore = (*MemoryRecordStore)(nil)

// NewMemoryRecordStore creates a MemoryRecordStore. retention <= 0 keeps
// records forever.
func NewMemoryRecordStore(retention time.Duration) *MemoryRecordStore {
	exp := gocache.NoExpiration
	cleanup := 10 * time.Minute
	if retention > 0 {
		exp = retention
		cleanup = retention
	}
	return &MemoryRecordStore{
		cache:     gocache.New(exp, cleanup),
		retention: retention,
	}
}

func memoryKeyPrefix(connectionID, entity string) string {
	return connectionID + "\x00" + entity + "\x00"
}

func (s *MemoryRecordStore) SyncRecords(ctx context.Context, name, connectionID string, records []api.Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}
	prefix := memoryKeyPrefix(connectionID, name)
	for _, r := range records {
		raw, err := EncodeData(r.Data)
		if err != nil {
			return err
		}
		s.cache.Set(prefix+r.ExternalID, raw, gocache.DefaultExpiration)
	}
	return nil
}

func (s *MemoryRecordStore) GetRecords(ctx context.Context, entityName, connectionID string, filters []api.RecordFilter) ([]api.Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	prefix := memoryKeyPrefix(connectionID, entityName)

	if id, ok := externalIDEquals(filters); ok {
		v, found := s.cache.Get(prefix + id)
		if !found {
			return []api.Record{}, nil
		}
		rec, err := memoryRecord(id, v)
		if err != nil {
			return nil, err
		}
		return FilterRecords([]api.Record{rec}, filters), nil
	}

	var all []api.Record
	for key, item := range s.cache.Items() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rec, err := memoryRecord(strings.TrimPrefix(key, prefix), item.Object)
		if err != nil {
			return nil, err
		}
		all = append(all, rec)
	}
	return FilterRecords(all, filters), nil
}

// Len returns the number of live records across all entities.
func (s *MemoryRecordStore) Len() int {
	return s.cache.ItemCount()
}

func memoryRecord(id string, v any) (api.Record, error) {
	raw, _ := v.([]byte)
	data, err := DecodeData(raw)
	if err != nil {
		return api.Record{}, err
	}
	return api.Record{ExternalID: id, Data: data}, nil
}
