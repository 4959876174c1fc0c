package kyb

import (
	"errors"
	"fmt"
)

// Stage identifies which provider call an error came from.
type Stage string

const (
	StageApplicantCreation Stage = "applicant-creation"
	StageTokenIssuance     Stage = "token-issuance"
)

// Category normalizes provider failures.
type Category string

const (
	// CategoryTimeout means the call did not finish inside the configured timeout.
	CategoryTimeout Category = "timeout"
	// CategoryTransport covers connection and I/O failures.
	CategoryTransport Category = "transport"
	// CategoryRejected means the provider answered with a non-2xx status.
	CategoryRejected Category = "rejected"
	// CategoryBadData means the request or response could not be encoded or decoded.
	CategoryBadData Category = "bad_data"
)

// ErrInvalidInput is returned before any call is made when arguments are unusable.
var ErrInvalidInput = errors.New("invalid input")

// ConfigurationError reports a required configuration value that is absent.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("kyb configuration: %s is required", e.Field)
}

// ProviderRequestError is returned for every failed provider call. Body holds
// the provider's response when one was received.
type ProviderRequestError struct {
	Stage      Stage
	Category   Category
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ProviderRequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("kyb %s [%s]: status %d: %s", e.Stage, e.Category, e.StatusCode, e.Diagnostic())
	}
	return fmt.Sprintf("kyb %s [%s]: %s", e.Stage, e.Category, e.Diagnostic())
}

func (e *ProviderRequestError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the provider body, or the transport error text when no
// body was received.
func (e *ProviderRequestError) Diagnostic() string {
	if len(e.Body) > 0 {
		return string(e.Body)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Timeout reports whether the call hit its deadline.
func (e *ProviderRequestError) Timeout() bool {
	return e.Category == CategoryTimeout
}

// PartialCompositeFailure is returned when the applicant was created but the
// access token could not be issued. The applicant is not rolled back.
type PartialCompositeFailure struct {
	ApplicantID string
	Err         error
}

func (e *PartialCompositeFailure) Error() string {
	return fmt.Sprintf("kyb onboarding incomplete: applicant %s created, token issuance failed: %v", e.ApplicantID, e.Err)
}

func (e *PartialCompositeFailure) Unwrap() error {
	return e.Err
}

// FailedStage extracts the stage of a provider failure, or "" for other errors.
func FailedStage(err error) Stage {
	var pe *ProviderRequestError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// GetCategory extracts the failure category, or "" for other errors.
func GetCategory(err error) Category {
	var pe *ProviderRequestError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}
