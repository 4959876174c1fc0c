package service

import (
	"context"
	"strings"
	"testing"

	"kyb-gateway/model"
	"kyb-gateway/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestClientService_CreateClient(t *testing.T) {
	ctx := context.Background()
	svc := NewClientService(newMemoryClientRepo(), &memoryProviderCallRepo{})

	client, err := svc.CreateClient(ctx, "  acme  ", 0)
	require.NoError(t, err)
	assert.Equal(t, "acme", client.Name)
	assert.Equal(t, model.DefaultClientQPS, client.QPS)
	assert.True(t, client.IsActive())
	assert.True(t, strings.HasPrefix(client.APIKey, "ak_"))
	assert.Len(t, client.APIKey, 3+64)

	found, err := svc.GetClientByAPIKey(ctx, client.APIKey)
	require.NoError(t, err)
	assert.Equal(t, client.ID, found.ID)

	_, err = svc.CreateClient(ctx, " ", 5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestClientService_UpdateClient(t *testing.T) {
	ctx := context.Background()
	svc := NewClientService(newMemoryClientRepo(), &memoryProviderCallRepo{})

	client, err := svc.CreateClient(ctx, "acme", 5)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateClientStatus(ctx, client.ID, model.ClientStatusDisabled))
	assert.False(t, client.IsActive())
	assert.ErrorIs(t, svc.UpdateClientStatus(ctx, client.ID, 7), ErrInvalidArgument)

	require.NoError(t, svc.UpdateClientQPS(ctx, client.ID, 20))
	assert.Equal(t, 20, client.QPS)
	assert.ErrorIs(t, svc.UpdateClientQPS(ctx, client.ID, 0), ErrInvalidArgument)

	err = svc.UpdateClientStatus(ctx, primitive.NewObjectID(), model.ClientStatusActive)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClientService_GetStats(t *testing.T) {
	ctx := context.Background()
	calls := &memoryProviderCallRepo{}
	svc := NewClientService(newMemoryClientRepo(), calls)

	a, err := svc.CreateClient(ctx, "a", 1)
	require.NoError(t, err)
	_, err = svc.CreateClient(ctx, "b", 1)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateClientStatus(ctx, a.ID, model.ClientStatusDisabled))

	require.NoError(t, calls.Create(ctx, &model.ProviderCall{ClientID: a.ID.Hex(), Outcome: model.OutcomeSuccess}))
	require.NoError(t, calls.Create(ctx, &model.ProviderCall{ClientID: a.ID.Hex(), Outcome: "timeout"}))

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ActiveClients)
	assert.Equal(t, int64(1), stats.DisabledClients)
	assert.Equal(t, map[string]int64{"success": 1, "timeout": 1}, stats.ProviderCalls)

	history, err := svc.GetClientProviderCalls(ctx, a.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
