package database

import (
	"context"
	"fmt"

	"kyb-gateway/config"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/repository"
	"kyb-gateway/service"
)

// 集合名称
const (
	ClientsCollection       = "kyb_clients"
	ProviderCallsCollection = "kyb_provider_calls"
	TasksCollection         = "kyb_onboarding_tasks"
)

// DatabaseManager manages database connections and repositories
type DatabaseManager struct {
	MongoDB          *MongoDB
	ClientRepo       repository.ClientRepository
	ProviderCallRepo repository.ProviderCallRepository
	TaskRepo         repository.TaskRepository
	ClientService    *service.ClientService
}

// NewDatabaseManager creates a new database manager with all repositories
func NewDatabaseManager(ctx context.Context, cfg *config.Config) (*DatabaseManager, error) {
	// URL 可能携带凭据，只记录库名
	logger.Infof("Connecting to MongoDB database %s", cfg.Database.DB)
	mongoDB, err := NewMongoDB(ctx, cfg.Database.URL, cfg.Database.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	logger.Info("MongoDB connection established successfully")

	clientRepo := repository.NewClientMongoRepository(mongoDB.GetCollection(ClientsCollection))
	providerCallRepo := repository.NewProviderCallMongoRepository(mongoDB.GetCollection(ProviderCallsCollection))
	taskRepo := repository.NewTaskMongoRepository(mongoDB.GetCollection(TasksCollection))

	return &DatabaseManager{
		MongoDB:          mongoDB,
		ClientRepo:       clientRepo,
		ProviderCallRepo: providerCallRepo,
		TaskRepo:         taskRepo,
		ClientService:    service.NewClientService(clientRepo, providerCallRepo),
	}, nil
}

// Close closes all database connections
func (dm *DatabaseManager) Close(ctx context.Context) error {
	logger.Info("Closing database connections...")
	err := dm.MongoDB.Close(ctx)
	if err != nil {
		logger.Errorf("Error closing MongoDB connection: %v", err)
	} else {
		logger.Info("Database connections closed successfully")
	}
	return err
}
