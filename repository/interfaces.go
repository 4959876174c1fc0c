package repository

import (
	"context"
	"errors"

	"kyb-gateway/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is wrapped by every lookup that matches no document
var ErrNotFound = errors.New("not found")

// ClientRepository defines the interface for client data operations
type ClientRepository interface {
	// Create creates a new client
	Create(ctx context.Context, client *model.Client) error

	// GetByID retrieves a client by ID
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Client, error)

	// GetByAPIKey retrieves a client by API key
	GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)

	// UpdateStatus enables or disables a client
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status int) error

	// UpdateQPS changes the rate limit of a client
	UpdateQPS(ctx context.Context, id primitive.ObjectID, qps int) error

	// List retrieves all clients with pagination
	List(ctx context.Context, offset, limit int) ([]*model.Client, error)

	// CountByStatus counts clients with the given status
	CountByStatus(ctx context.Context, status int) (int64, error)

	// Delete deletes a client by ID
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProviderCallRepository stores outbound provider call records
type ProviderCallRepository interface {
	// Create creates a new call record
	Create(ctx context.Context, call *model.ProviderCall) error

	// GetByClientID retrieves call records for a specific client
	GetByClientID(ctx context.Context, clientID string, offset, limit int) ([]*model.ProviderCall, error)

	// CountByOutcome counts records per outcome
	CountByOutcome(ctx context.Context) (map[string]int64, error)
}

// TaskRepository stores async onboarding tasks
type TaskRepository interface {
	Create(ctx context.Context, task *model.OnboardingTask) error
	GetByTaskID(ctx context.Context, taskID string) (*model.OnboardingTask, error)
	Update(ctx context.Context, task *model.OnboardingTask) error
	GetTasksByClient(ctx context.Context, clientID string, limit int, offset int) ([]*model.OnboardingTask, error)
	IncrementCallbackAttempts(ctx context.Context, taskID string) error
	DeleteExpiredTasks(ctx context.Context) (int64, error)
}
