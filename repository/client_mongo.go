package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kyb-gateway/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ClientMongoRepository implements ClientRepository using MongoDB
type ClientMongoRepository struct {
	collection *mongo.Collection
}

// NewClientMongoRepository creates a new MongoDB client repository
func NewClientMongoRepository(collection *mongo.Collection) ClientRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// api_key 唯一索引
	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "api_key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return &ClientMongoRepository{
		collection: collection,
	}
}

// Create creates a new client
func (r *ClientMongoRepository) Create(ctx context.Context, client *model.Client) error {
	if client.ID.IsZero() {
		client.ID = primitive.NewObjectID()
	}

	now := time.Now()
	client.CreatedAt = now
	client.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, client); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientMongoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*model.Client, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByAPIKey retrieves a client by API key
func (r *ClientMongoRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	return r.findOne(ctx, bson.M{"api_key": apiKey})
}

func (r *ClientMongoRepository) findOne(ctx context.Context, filter bson.M) (*model.Client, error) {
	var client model.Client
	err := r.collection.FindOne(ctx, filter).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("client %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// UpdateStatus enables or disables a client
func (r *ClientMongoRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status int) error {
	return r.set(ctx, id, bson.M{"status": status})
}

// UpdateQPS updates the QPS limit for a client
func (r *ClientMongoRepository) UpdateQPS(ctx context.Context, id primitive.ObjectID, qps int) error {
	return r.set(ctx, id, bson.M{"qps": qps})
}

func (r *ClientMongoRepository) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	fields["updated_at"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("client %w", ErrNotFound)
	}
	return nil
}

// List retrieves all clients with pagination
func (r *ClientMongoRepository) List(ctx context.Context, offset, limit int) ([]*model.Client, error) {
	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer cursor.Close(ctx)

	var clients []*model.Client
	if err := cursor.All(ctx, &clients); err != nil {
		return nil, fmt.Errorf("failed to decode clients: %w", err)
	}
	return clients, nil
}

// CountByStatus counts clients with the given status
func (r *ClientMongoRepository) CountByStatus(ctx context.Context, status int) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

// Delete deletes a client by ID
func (r *ClientMongoRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("client %w", ErrNotFound)
	}
	return nil
}
