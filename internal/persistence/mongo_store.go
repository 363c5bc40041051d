package persistence

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/stepflow/pkg/api"
)

// MongoRecordStore is a RecordStore backed by a MongoDB collection. Record
// data is kept as a JSON string so that it round-trips without BSON type
// conversions.
type MongoRecordStore struct {
	coll *mongo.Collection
}

// Ensure it implements RecordStore.
var _ api.RecordStore = (*MongoRecordStore)(nil)

// NewMongoRecordStore creates a Mongo-backed record store.
// dbName defaults to "stepflow" if empty, collName defaults to "records".
func NewMongoRecordStore(client *mongo.Client, dbName, collName string) *MongoRecordStore {
	if dbName == "" {
		dbName = "stepflow"
	}
	if collName == "" {
		collName = "records"
	}
	return &MongoRecordStore{
		coll: client.Database(dbName).Collection(collName),
	}
}

type mongoRecordDoc struct {
	ID           string `bson:"_id"`
	ConnectionID string `bson:"connection_id"`
	Entity       string `bson:"entity"`
	ExternalID   string `bson:"external_id"`
	Data         string `bson:"data"`
}

func mongoDocID(connectionID, entity, id string) string {
	return connectionID + "/" + entity + "/" + id
}

func (s *MongoRecordStore) SyncRecords(ctx context.Context, name, connectionID string, records []api.Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		data, err := EncodeData(r.Data)
		if err != nil {
			return err
		}
		doc := mongoRecordDoc{
			ID:           mongoDocID(connectionID, name, r.ExternalID),
			ConnectionID: connectionID,
			Entity:       name,
			ExternalID:   r.ExternalID,
			Data:         string(data),
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return nil
	}

	_, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	return err
}

func (s *MongoRecordStore) GetRecords(ctx context.Context, entityName, connectionID string, filters []api.RecordFilter) ([]api.Record, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	query := bson.M{"connection_id": connectionID, "entity": entityName}
	if id, ok := externalIDEquals(filters); ok {
		query["external_id"] = id
	}

	cur, err := s.coll.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var all []api.Record
	for cur.Next(ctx) {
		var doc mongoRecordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		data, err := DecodeData([]byte(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", doc.ExternalID, err)
		}
		all = append(all, api.Record{ExternalID: doc.ExternalID, Data: data})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return FilterRecords(all, filters), nil
}
