package service

import (
	"context"
	"fmt"
	"sync"

	"kyb-gateway/model"
	"kyb-gateway/pkg/kyb"
	"kyb-gateway/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryClientRepo struct {
	mu      sync.Mutex
	clients map[primitive.ObjectID]*model.Client
}

func newMemoryClientRepo() *memoryClientRepo {
	return &memoryClientRepo{clients: make(map[primitive.ObjectID]*model.Client)}
}

func (r *memoryClientRepo) Create(_ context.Context, client *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.ID.IsZero() {
		client.ID = primitive.NewObjectID()
	}
	r.clients[client.ID] = client
	return nil
}

func (r *memoryClientRepo) GetByID(_ context.Context, id primitive.ObjectID) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("client %w", repository.ErrNotFound)
}

func (r *memoryClientRepo) GetByAPIKey(_ context.Context, apiKey string) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.APIKey == apiKey {
			return c, nil
		}
	}
	return nil, fmt.Errorf("client %w", repository.ErrNotFound)
}

func (r *memoryClientRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, status int) error {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	c.Status = status
	return nil
}

func (r *memoryClientRepo) UpdateQPS(ctx context.Context, id primitive.ObjectID, qps int) error {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	c.QPS = qps
	return nil
}

func (r *memoryClientRepo) List(_ context.Context, offset, limit int) ([]*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Client
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryClientRepo) CountByStatus(_ context.Context, status int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.clients {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *memoryClientRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[id]; !ok {
		return fmt.Errorf("client %w", repository.ErrNotFound)
	}
	delete(r.clients, id)
	return nil
}

type memoryProviderCallRepo struct {
	mu    sync.Mutex
	calls []*model.ProviderCall
}

func (r *memoryProviderCallRepo) Create(_ context.Context, call *model.ProviderCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

func (r *memoryProviderCallRepo) GetByClientID(_ context.Context, clientID string, offset, limit int) ([]*model.ProviderCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProviderCall
	for _, c := range r.calls {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryProviderCallRepo) CountByOutcome(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, c := range r.calls {
		counts[c.Outcome]++
	}
	return counts, nil
}

func (r *memoryProviderCallRepo) snapshot() []*model.ProviderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.ProviderCall(nil), r.calls...)
}

// stubVerificationClient 返回预设结果并记录调用参数
type stubVerificationClient struct {
	applicant    *kyb.ApplicantCreationResult
	applicantErr error
	token        *kyb.AccessTokenResult
	tokenErr     error
	onboarding   *kyb.OnboardingResult
	onboardErr   error
	level        string

	gotLevel string
}

func (s *stubVerificationClient) CreateApplicant(context.Context, string, string) (*kyb.ApplicantCreationResult, error) {
	return s.applicant, s.applicantErr
}

func (s *stubVerificationClient) IssueAccessToken(_ context.Context, _ string, levelName string) (*kyb.AccessTokenResult, error) {
	s.gotLevel = levelName
	return s.token, s.tokenErr
}

func (s *stubVerificationClient) CreateApplicantAndIssueToken(context.Context, string, string) (*kyb.OnboardingResult, error) {
	return s.onboarding, s.onboardErr
}

func (s *stubVerificationClient) AccessTokenLevel() string {
	return s.level
}
