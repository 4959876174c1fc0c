package service

import (
	"context"

	"kyb-gateway/pkg/kyb"
	"kyb-gateway/pkg/logger"

	"github.com/zeromicro/go-zero/core/logx"
)

// VerificationClient is the subset of *kyb.Client the gateway uses
type VerificationClient interface {
	CreateApplicant(ctx context.Context, companyName, country string) (*kyb.ApplicantCreationResult, error)
	IssueAccessToken(ctx context.Context, applicantID, levelName string) (*kyb.AccessTokenResult, error)
	CreateApplicantAndIssueToken(ctx context.Context, companyName, country string) (*kyb.OnboardingResult, error)
	AccessTokenLevel() string
}

var _ VerificationClient = (*kyb.Client)(nil)

// VerificationService runs KYB operations on behalf of an API client
type VerificationService struct {
	client VerificationClient
}

func NewVerificationService(client VerificationClient) *VerificationService {
	return &VerificationService{client: client}
}

// CreateApplicant registers a company with the provider
func (s *VerificationService) CreateApplicant(ctx context.Context, companyName, country string) (*kyb.ApplicantCreationResult, error) {
	log := s.contextLogger(ctx)

	result, err := s.client.CreateApplicant(ctx, companyName, country)
	if err != nil {
		log.Errorw("Create applicant failed", logx.Field("error", err.Error()))
		return nil, err
	}

	log.Infow("Applicant created", logx.Field("applicant_id", result.ID))
	return result, nil
}

// IssueAccessToken issues an SDK token; an empty level falls back to the configured one
func (s *VerificationService) IssueAccessToken(ctx context.Context, applicantID, levelName string) (*kyb.AccessTokenResult, error) {
	if levelName == "" {
		levelName = s.client.AccessTokenLevel()
	}

	log := s.contextLogger(ctx).WithFields(logx.Field("applicant_id", applicantID))

	result, err := s.client.IssueAccessToken(ctx, applicantID, levelName)
	if err != nil {
		log.Errorw("Issue access token failed", logx.Field("error", err.Error()))
		return nil, err
	}

	log.Infow("Access token issued", logx.Field("level", levelName))
	return result, nil
}

// Onboard creates the applicant and then issues its token. On a partial
// failure the returned result still carries the applicant id.
func (s *VerificationService) Onboard(ctx context.Context, companyName, country string) (*kyb.OnboardingResult, error) {
	log := s.contextLogger(ctx)

	result, err := s.client.CreateApplicantAndIssueToken(ctx, companyName, country)
	if err != nil {
		fields := []logx.LogField{
			logx.Field("stage", string(kyb.FailedStage(err))),
			logx.Field("error", err.Error()),
		}
		if result != nil {
			fields = append(fields, logx.Field("applicant_id", result.ApplicantID))
		}
		log.Errorw("Onboarding failed", fields...)
		return result, err
	}

	log.Infow("Onboarding completed", logx.Field("applicant_id", result.ApplicantID))
	return result, nil
}

func (s *VerificationService) contextLogger(ctx context.Context) *logger.Logger {
	return logger.WithContext(ctx).WithFields(logx.Field("client_id", ClientIDFromContext(ctx)))
}
