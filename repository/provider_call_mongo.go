package repository

import (
	"context"
	"fmt"
	"time"

	"kyb-gateway/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// providerCallRetention 调用记录保留时长
const providerCallRetention = 90 * 24 * time.Hour

// ProviderCallMongoRepository implements ProviderCallRepository using MongoDB
type ProviderCallMongoRepository struct {
	collection *mongo.Collection
}

// NewProviderCallMongoRepository creates a new MongoDB provider call repository
func NewProviderCallMongoRepository(collection *mongo.Collection) ProviderCallRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(providerCallRetention.Seconds())),
	})

	return &ProviderCallMongoRepository{
		collection: collection,
	}
}

// Create creates a new call record
func (r *ProviderCallMongoRepository) Create(ctx context.Context, call *model.ProviderCall) error {
	if call.ID.IsZero() {
		call.ID = primitive.NewObjectID()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, call); err != nil {
		return fmt.Errorf("failed to create provider call: %w", err)
	}
	return nil
}

// GetByClientID retrieves call records for a specific client
func (r *ProviderCallMongoRepository) GetByClientID(ctx context.Context, clientID string, offset, limit int) ([]*model.ProviderCall, error) {
	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get provider calls by client ID: %w", err)
	}
	defer cursor.Close(ctx)

	var calls []*model.ProviderCall
	if err := cursor.All(ctx, &calls); err != nil {
		return nil, fmt.Errorf("failed to decode provider calls: %w", err)
	}
	return calls, nil
}

// CountByOutcome groups call records by outcome
func (r *ProviderCallMongoRepository) CountByOutcome(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$outcome"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate provider calls: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Outcome string `bson:"_id"`
		Count   int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode provider call counts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}
