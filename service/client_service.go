package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"kyb-gateway/model"
	"kyb-gateway/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidArgument is returned for unusable admin input
var ErrInvalidArgument = errors.New("invalid argument")

// ClientService provides business logic for client operations
type ClientService struct {
	clientRepo       repository.ClientRepository
	providerCallRepo repository.ProviderCallRepository
}

// NewClientService creates a new client service
func NewClientService(clientRepo repository.ClientRepository, providerCallRepo repository.ProviderCallRepository) *ClientService {
	return &ClientService{
		clientRepo:       clientRepo,
		providerCallRepo: providerCallRepo,
	}
}

// CreateClient creates a new client with a generated API key
func (s *ClientService) CreateClient(ctx context.Context, name string, qps int) (*model.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if qps < 0 {
		return nil, fmt.Errorf("%w: qps must not be negative", ErrInvalidArgument)
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}

	// 极小概率碰撞，重新生成一次
	if existing, _ := s.clientRepo.GetByAPIKey(ctx, apiKey); existing != nil {
		if apiKey, err = generateAPIKey(); err != nil {
			return nil, fmt.Errorf("failed to regenerate API key: %w", err)
		}
	}

	client := model.NewClient(name, apiKey, qps)
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// GetClientByAPIKey retrieves a client by API key
func (s *ClientService) GetClientByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	return s.clientRepo.GetByAPIKey(ctx, apiKey)
}

// GetClientByID retrieves a client by ID
func (s *ClientService) GetClientByID(ctx context.Context, id primitive.ObjectID) (*model.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

// ListClients retrieves all clients with pagination
func (s *ClientService) ListClients(ctx context.Context, offset, limit int) ([]*model.Client, error) {
	return s.clientRepo.List(ctx, offset, limit)
}

// UpdateClientStatus enables or disables a client
func (s *ClientService) UpdateClientStatus(ctx context.Context, id primitive.ObjectID, status int) error {
	if status != model.ClientStatusActive && status != model.ClientStatusDisabled {
		return fmt.Errorf("%w: unknown status %d", ErrInvalidArgument, status)
	}
	return s.clientRepo.UpdateStatus(ctx, id, status)
}

// UpdateClientQPS changes the per-client rate limit
func (s *ClientService) UpdateClientQPS(ctx context.Context, id primitive.ObjectID, qps int) error {
	if qps <= 0 {
		return fmt.Errorf("%w: qps must be positive", ErrInvalidArgument)
	}
	return s.clientRepo.UpdateQPS(ctx, id, qps)
}

// DeleteClient deletes a client
func (s *ClientService) DeleteClient(ctx context.Context, id primitive.ObjectID) error {
	return s.clientRepo.Delete(ctx, id)
}

// GetClientProviderCalls retrieves provider call records made for a client
func (s *ClientService) GetClientProviderCalls(ctx context.Context, clientID primitive.ObjectID, offset, limit int) ([]*model.ProviderCall, error) {
	return s.providerCallRepo.GetByClientID(ctx, clientID.Hex(), offset, limit)
}

// Stats 汇总客户和服务商调用情况
type Stats struct {
	ActiveClients   int64            `json:"active_clients"`
	DisabledClients int64            `json:"disabled_clients"`
	ProviderCalls   map[string]int64 `json:"provider_calls"`
}

// GetStats returns client counts and provider call outcomes
func (s *ClientService) GetStats(ctx context.Context) (*Stats, error) {
	active, err := s.clientRepo.CountByStatus(ctx, model.ClientStatusActive)
	if err != nil {
		return nil, err
	}
	disabled, err := s.clientRepo.CountByStatus(ctx, model.ClientStatusDisabled)
	if err != nil {
		return nil, err
	}
	calls, err := s.providerCallRepo.CountByOutcome(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		ActiveClients:   active,
		DisabledClients: disabled,
		ProviderCalls:   calls,
	}, nil
}

// generateAPIKey generates a random API key
func generateAPIKey() (string, error) {
	bytes := make([]byte, 32) // 64 character hex string
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "ak_" + hex.EncodeToString(bytes), nil
}
