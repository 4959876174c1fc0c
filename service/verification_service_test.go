package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"kyb-gateway/model"
	"kyb-gateway/pkg/kyb"
	"kyb-gateway/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationService_IssueAccessTokenDefaultLevel(t *testing.T) {
	stub := &stubVerificationClient{
		level: "kyb-level",
		token: &kyb.AccessTokenResult{Token: "tok"},
	}
	svc := NewVerificationService(stub)

	result, err := svc.IssueAccessToken(context.Background(), "app-1", "")
	require.NoError(t, err)
	assert.Equal(t, "tok", result.Token)
	assert.Equal(t, "kyb-level", stub.gotLevel)

	_, err = svc.IssueAccessToken(context.Background(), "app-1", "custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", stub.gotLevel)
}

func TestVerificationService_OnboardPartialFailure(t *testing.T) {
	cause := &kyb.ProviderRequestError{Stage: kyb.StageTokenIssuance, Category: kyb.CategoryRejected, StatusCode: 400}
	stub := &stubVerificationClient{
		onboarding: &kyb.OnboardingResult{ApplicantID: "app-9"},
		onboardErr: &kyb.PartialCompositeFailure{ApplicantID: "app-9", Err: cause},
	}
	svc := NewVerificationService(stub)

	result, err := svc.Onboard(WithClientID(context.Background(), "client-1"), "Acme", "US")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "app-9", result.ApplicantID)

	var partial *kyb.PartialCompositeFailure
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, kyb.StageTokenIssuance, kyb.FailedStage(err))
}

func TestCallRecorder_ObserveCall(t *testing.T) {
	repo := &memoryProviderCallRepo{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	recorder := NewCallRecorder(repo, m)

	ctx := WithClientID(context.Background(), "client-1")
	recorder.ObserveCall(ctx, kyb.CallRecord{
		Stage:      kyb.StageApplicantCreation,
		Method:     "POST",
		Path:       "/resources/applicants?levelName=kyb-level",
		StatusCode: 200,
		Duration:   80 * time.Millisecond,
	})
	recorder.ObserveCall(ctx, kyb.CallRecord{
		Stage:      kyb.StageTokenIssuance,
		Method:     "POST",
		Path:       "/resources/accessTokens/sdk",
		StatusCode: 400,
		Duration:   40 * time.Millisecond,
		Err: &kyb.ProviderRequestError{
			Stage:      kyb.StageTokenIssuance,
			Category:   kyb.CategoryRejected,
			StatusCode: 400,
			Body:       []byte(`{"description":"secret details"}`),
			Err:        errors.New("provider returned status 400"),
		},
	})
	recorder.Wait()

	calls := repo.snapshot()
	require.Len(t, calls, 2)

	byStage := map[string]*model.ProviderCall{}
	for _, c := range calls {
		byStage[c.Stage] = c
	}

	created := byStage[string(kyb.StageApplicantCreation)]
	require.NotNil(t, created)
	assert.Equal(t, "client-1", created.ClientID)
	assert.True(t, created.Succeeded())
	assert.Equal(t, int64(80), created.Duration)

	rejected := byStage[string(kyb.StageTokenIssuance)]
	require.NotNil(t, rejected)
	assert.Equal(t, "rejected", rejected.Outcome)
	assert.Equal(t, 400, rejected.StatusCode)
	assert.Equal(t, "provider returned status 400", rejected.Error)
	assert.NotContains(t, rejected.Error, "secret details")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("applicant-creation", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("token-issuance", "rejected")))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "timeout", Outcome(&kyb.ProviderRequestError{Category: kyb.CategoryTimeout}))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
