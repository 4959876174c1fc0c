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

type taskMongoRepository struct {
	collection *mongo.Collection
}

// NewTaskMongoRepository 创建开户任务仓储
func NewTaskMongoRepository(collection *mongo.Collection) TaskRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// task_id 唯一索引
	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "task_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	// client_id 索引（用于查询客户端的任务）
	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}},
	})

	// expire_at TTL 索引（自动删除过期任务）
	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expire_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})

	return &taskMongoRepository{
		collection: collection,
	}
}

// Create 创建任务
func (r *taskMongoRepository) Create(ctx context.Context, task *model.OnboardingTask) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	if _, err := r.collection.InsertOne(ctx, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByTaskID 通过任务ID获取任务
func (r *taskMongoRepository) GetByTaskID(ctx context.Context, taskID string) (*model.OnboardingTask, error) {
	var task model.OnboardingTask
	err := r.collection.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&task)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("task %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// Update 整体替换任务文档
func (r *taskMongoRepository) Update(ctx context.Context, task *model.OnboardingTask) error {
	result, err := r.collection.ReplaceOne(ctx, bson.M{"task_id": task.TaskID}, task)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("task %w", ErrNotFound)
	}
	return nil
}

// GetTasksByClient 获取客户端的任务列表，最新的在前
func (r *taskMongoRepository) GetTasksByClient(ctx context.Context, clientID string, limit int, offset int) ([]*model.OnboardingTask, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get tasks by client: %w", err)
	}
	defer cursor.Close(ctx)

	var tasks []*model.OnboardingTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

// IncrementCallbackAttempts 增加回调尝试次数
func (r *taskMongoRepository) IncrementCallbackAttempts(ctx context.Context, taskID string) error {
	update := bson.M{
		"$inc": bson.M{"callback_attempts": 1},
		"$set": bson.M{"last_callback_at": time.Now()},
	}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"task_id": taskID}, update); err != nil {
		return fmt.Errorf("failed to increment callback attempts: %w", err)
	}
	return nil
}

// DeleteExpiredTasks 删除过期的任务，通常由 TTL 索引处理
func (r *taskMongoRepository) DeleteExpiredTasks(ctx context.Context) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expire_at": bson.M{"$lt": time.Now()}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tasks: %w", err)
	}
	return result.DeletedCount, nil
}
