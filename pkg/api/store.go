package api

import "context"

// Record is a generic entity stored by a RecordStore.
type Record struct {
	ExternalID string         `json:"externalId" bson:"externalId"`
	Data       map[string]any `json:"data" bson:"data"`
}

// FilterOperator is the comparison applied by a RecordFilter.
type FilterOperator string

const (
	FilterEqual    FilterOperator = "eq"
	FilterNotEqual FilterOperator = "ne"
	FilterContains FilterOperator = "contains"
)

// RecordFilter selects records by field. Field "externalId" matches the
// record id; any other name is looked up in Data.
type RecordFilter struct {
	Field    string         `json:"field"`
	Value    any            `json:"value"`
	Operator FilterOperator `json:"operator"`
}

// RecordStore persists records grouped by connection id and entity name.
// Syncing a record with an existing ExternalID replaces it.
type RecordStore interface {
	SyncRecords(ctx context.Context, name, connectionID string, records []Record) error
	GetRecords(ctx context.Context, entityName, connectionID string, filters []RecordFilter) ([]Record, error)
}

// Snapshot record coordinates.
const (
	SnapshotEntity       = "__workflows__"
	SnapshotConnectionID = "WORKFLOWS"
	SnapshotField        = "snapshot"
)
