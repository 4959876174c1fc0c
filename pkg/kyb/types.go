package kyb

import (
	"encoding/json"
	"strings"
)

// SigningConfig holds the provider credentials. It is read once at startup.
type SigningConfig struct {
	BaseURL   string
	AppToken  string
	SecretKey string
}

// Validate reports the first missing value as a *ConfigurationError.
func (c SigningConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.BaseURL) == "":
		return &ConfigurationError{Field: "base_url"}
	case c.AppToken == "":
		return &ConfigurationError{Field: "app_token"}
	case c.SecretKey == "":
		return &ConfigurationError{Field: "secret_key"}
	}
	return nil
}

type companyInfo struct {
	CompanyName string `json:"companyName"`
	Country     string `json:"country"`
}

type fixedInfo struct {
	CompanyInfo companyInfo `json:"companyInfo"`
}

// applicantRequest is the body of POST /resources/applicants.
type applicantRequest struct {
	ExternalUserID string    `json:"externalUserId"`
	FixedInfo      fixedInfo `json:"fixedInfo"`
	Type           string    `json:"type"`
}

// accessTokenRequest is the body of POST /resources/accessTokens/sdk.
type accessTokenRequest struct {
	UserID    string `json:"userId"`
	LevelName string `json:"levelName"`
}

// ApplicantCreationResult is the provider's applicant record. Only ID is
// relied on; Raw keeps the full response.
type ApplicantCreationResult struct {
	ID  string          `json:"id"`
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON returns the provider response unchanged when available.
func (r ApplicantCreationResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain ApplicantCreationResult
	return json.Marshal(plain(r))
}

// AccessTokenResult is the SDK token payload, passed through unmodified.
type AccessTokenResult struct {
	Token  string          `json:"token"`
	UserID string          `json:"userId,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// MarshalJSON returns the provider response unchanged when available.
func (r AccessTokenResult) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain AccessTokenResult
	return json.Marshal(plain(r))
}

// OnboardingResult is the outcome of CreateApplicantAndIssueToken. On a
// partial failure AccessToken is nil and ApplicantID is still set.
type OnboardingResult struct {
	ApplicantID string             `json:"applicantId"`
	AccessToken *AccessTokenResult `json:"accessToken,omitempty"`
}
