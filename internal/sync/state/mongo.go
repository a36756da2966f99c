package state

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stacklok/zoom-search-connector/internal/model"
)

const (
	checkpointsCollection = "checkpoints"
	snapshotCollection    = "document_ids"
)

type checkpointDoc struct {
	ObjectType  string    `bson:"_id"`
	SyncedUntil time.Time `bson:"synced_until"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// MongoStore keeps state in the checkpoints and document_ids collections.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo connects to uri and returns a store on database.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// GetCheckpoints implements CheckpointStore
func (s *MongoStore) GetCheckpoints(ctx context.Context) (Checkpoints, error) {
	cur, err := s.db.Collection(checkpointsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	var docs []checkpointDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoints: %w", err)
	}

	cps := make(Checkpoints, len(docs))
	for _, d := range docs {
		cps[model.ObjectType(d.ObjectType)] = d.SyncedUntil.UTC()
	}
	return cps, nil
}

// SaveCheckpoint implements CheckpointStore
func (s *MongoStore) SaveCheckpoint(ctx context.Context, t model.ObjectType, at time.Time) error {
	doc := checkpointDoc{ObjectType: string(t), SyncedUntil: at.UTC(), UpdatedAt: time.Now().UTC()}
	_, err := s.db.Collection(checkpointsCollection).ReplaceOne(ctx,
		bson.M{"_id": doc.ObjectType}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for %s: %w", t, err)
	}
	return nil
}

// LoadSnapshot implements SnapshotStore
func (s *MongoStore) LoadSnapshot(ctx context.Context, t model.ObjectType) ([]model.IDEntry, error) {
	cur, err := s.db.Collection(snapshotCollection).Find(ctx, bson.M{"object_type": t},
		options.Find().SetSort(bson.D{{Key: "document_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot of %s: %w", t, err)
	}
	var out []model.IDEntry
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of %s: %w", t, err)
	}
	for i := range out {
		out[i].CreatedAt = out[i].CreatedAt.UTC()
	}
	return out, nil
}

// AddToSnapshot implements SnapshotStore
func (s *MongoStore) AddToSnapshot(ctx context.Context, entries []model.IDEntry) error {
	if len(entries) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(entries))
	for _, e := range entries {
		filter := bson.M{"object_type": e.Type, "document_id": e.ID}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.M{"$set": e}).
			SetUpsert(true))
	}
	_, err := s.db.Collection(snapshotCollection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to add snapshot entries: %w", err)
	}
	return nil
}

// ReplaceSnapshot implements SnapshotStore. The delete and the insert are not atomic;
// an interrupted replace leaves a partial snapshot that the next deletion sync rebuilds.
func (s *MongoStore) ReplaceSnapshot(ctx context.Context, t model.ObjectType, entries []model.IDEntry) error {
	coll := s.db.Collection(snapshotCollection)
	if _, err := coll.DeleteMany(ctx, bson.M{"object_type": t}); err != nil {
		return fmt.Errorf("failed to clear snapshot of %s: %w", t, err)
	}
	entries = mergeEntries(nil, entries)
	if len(entries) == 0 {
		return nil
	}
	docs := make([]any, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, e)
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to write snapshot of %s: %w", t, err)
	}
	return nil
}

// Close implements Store
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
