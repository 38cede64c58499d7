package mongo

import (
	"context"
	"time"

	"restaurant-service/internal/config"
	"restaurant-service/internal/infra"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditRepository keeps the reconciliation trail: verified payments whose
// order could not be stored, and admin status changes.
type AuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ infra.AuditInterface = (*AuditRepository)(nil)

func NewAuditRepository(ctx context.Context, cfg *config.MongoDBConfig) (*AuditRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "entity_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &AuditRepository{client: client, collection: coll}, nil
}

func (m *AuditRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *AuditRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *AuditRepository) Record(ctx context.Context, entry *infra.AuditEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := m.collection.InsertOne(ctx, entry)
	return err
}

func (m *AuditRepository) List(ctx context.Context, entityID string, limit int64) ([]*infra.AuditEntry, error) {
	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*infra.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
