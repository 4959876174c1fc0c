package service

import (
	"context"

	"kyb-gateway/model"
	"kyb-gateway/pkg/kyb"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientServiceInterface defines the interface for client service operations
type ClientServiceInterface interface {
	CreateClient(ctx context.Context, name string, qps int) (*model.Client, error)
	GetClientByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)
	GetClientByID(ctx context.Context, id primitive.ObjectID) (*model.Client, error)
	ListClients(ctx context.Context, offset, limit int) ([]*model.Client, error)
	UpdateClientStatus(ctx context.Context, id primitive.ObjectID, status int) error
	UpdateClientQPS(ctx context.Context, id primitive.ObjectID, qps int) error
	DeleteClient(ctx context.Context, id primitive.ObjectID) error
	GetClientProviderCalls(ctx context.Context, clientID primitive.ObjectID, offset, limit int) ([]*model.ProviderCall, error)
	GetStats(ctx context.Context) (*Stats, error)
}

// VerificationServiceInterface defines the KYB operations exposed over HTTP
type VerificationServiceInterface interface {
	CreateApplicant(ctx context.Context, companyName, country string) (*kyb.ApplicantCreationResult, error)
	IssueAccessToken(ctx context.Context, applicantID, levelName string) (*kyb.AccessTokenResult, error)
	Onboard(ctx context.Context, companyName, country string) (*kyb.OnboardingResult, error)
}

var (
	_ ClientServiceInterface       = (*ClientService)(nil)
	_ VerificationServiceInterface = (*VerificationService)(nil)
	_ kyb.CallObserver             = (*CallRecorder)(nil)
)
