package kyb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kyb-gateway/pkg/logger"
	"kyb-gateway/pkg/signature"

	"github.com/google/uuid"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultLevel   = "kyb-level"

	applicantsPath   = "/resources/applicants"
	accessTokensPath = "/resources/accessTokens/sdk"

	applicantTypeCompany = "company"

	maxResponseBody = 1 << 20
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallRecord describes one finished provider call.
type CallRecord struct {
	Stage      Stage
	Method     string
	Path       string
	StatusCode int
	Duration   time.Duration
	Err        error
}

// CallObserver is notified after every provider call, successful or not.
type CallObserver interface {
	ObserveCall(ctx context.Context, rec CallRecord)
}

// Client talks to the verification provider. It holds no per-call state and
// is safe for concurrent use.
type Client struct {
	cfg              SigningConfig
	pathPrefix       string // path carried by BaseURL, signed with every request
	signer           signature.Signer
	httpClient       Doer
	timeout          time.Duration
	applicantLevel   string
	accessTokenLevel string
	now              func() time.Time
	externalUserID   func() string
	observer         CallObserver
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithSigner(s signature.Signer) Option {
	return func(c *Client) { c.signer = s }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithApplicantLevel(level string) Option {
	return func(c *Client) {
		if level != "" {
			c.applicantLevel = level
		}
	}
}

// WithAccessTokenLevel sets the level used by CreateApplicantAndIssueToken.
func WithAccessTokenLevel(level string) Option {
	return func(c *Client) {
		if level != "" {
			c.accessTokenLevel = level
		}
	}
}

func WithExternalUserIDGenerator(gen func() string) Option {
	return func(c *Client) { c.externalUserID = gen }
}

func WithObserver(o CallObserver) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient validates cfg and builds a Client. Missing configuration is
// reported as *ConfigurationError.
func NewClient(cfg SigningConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.ParseRequestURI(cfg.BaseURL)
	if err != nil || base.Host == "" || base.RawQuery != "" || base.Fragment != "" {
		return nil, &ConfigurationError{Field: "base_url"}
	}
	cfg.BaseURL = base.Scheme + "://" + base.Host

	c := &Client{
		cfg:              cfg,
		pathPrefix:       strings.TrimRight(base.EscapedPath(), "/"),
		httpClient:       &http.Client{},
		timeout:          DefaultTimeout,
		applicantLevel:   DefaultLevel,
		accessTokenLevel: DefaultLevel,
		now:              time.Now,
		externalUserID:   func() string { return "company-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.signer == nil {
		signer, err := signature.NewRequestSigner(cfg.SecretKey)
		if err != nil {
			return nil, &ConfigurationError{Field: "secret_key"}
		}
		c.signer = signer
	}
	return c, nil
}

// ApplicantLevel returns the level applicants are created under.
func (c *Client) ApplicantLevel() string {
	return c.applicantLevel
}

// AccessTokenLevel returns the level used for tokens in the composite operation.
func (c *Client) AccessTokenLevel() string {
	return c.accessTokenLevel
}

// CreateApplicant registers a company applicant with the provider.
func (c *Client) CreateApplicant(ctx context.Context, companyName, country string) (*ApplicantCreationResult, error) {
	if strings.TrimSpace(companyName) == "" || strings.TrimSpace(country) == "" {
		return nil, fmt.Errorf("%w: company name and country are required", ErrInvalidInput)
	}

	payload := applicantRequest{
		ExternalUserID: c.externalUserID(),
		FixedInfo: fixedInfo{
			CompanyInfo: companyInfo{CompanyName: companyName, Country: country},
		},
		Type: applicantTypeCompany,
	}
	path := applicantsPath + "?levelName=" + url.QueryEscape(c.applicantLevel)

	body, err := c.post(ctx, StageApplicantCreation, path, payload)
	if err != nil {
		return nil, err
	}

	result := &ApplicantCreationResult{Raw: json.RawMessage(body)}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, &ProviderRequestError{
			Stage:    StageApplicantCreation,
			Category: CategoryBadData,
			Body:     body,
			Err:      fmt.Errorf("decode applicant response: %w", err),
		}
	}
	if result.ID == "" {
		return nil, &ProviderRequestError{
			Stage:    StageApplicantCreation,
			Category: CategoryBadData,
			Body:     body,
			Err:      errors.New("applicant response has no id"),
		}
	}
	return result, nil
}

// IssueAccessToken asks the provider for an SDK access token for applicantID.
func (c *Client) IssueAccessToken(ctx context.Context, applicantID, levelName string) (*AccessTokenResult, error) {
	if applicantID == "" || levelName == "" {
		return nil, fmt.Errorf("%w: applicant id and level name are required", ErrInvalidInput)
	}

	payload := accessTokenRequest{UserID: applicantID, LevelName: levelName}
	body, err := c.post(ctx, StageTokenIssuance, accessTokensPath, payload)
	if err != nil {
		return nil, err
	}

	result := &AccessTokenResult{Raw: json.RawMessage(body)}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, &ProviderRequestError{
			Stage:    StageTokenIssuance,
			Category: CategoryBadData,
			Body:     body,
			Err:      fmt.Errorf("decode access token response: %w", err),
		}
	}
	return result, nil
}

// CreateApplicantAndIssueToken creates the applicant and then, only if that
// succeeded, issues an access token for it. A failure in the first step is
// returned as is. A failure in the second step is returned as
// *PartialCompositeFailure together with a result carrying the applicant id.
func (c *Client) CreateApplicantAndIssueToken(ctx context.Context, companyName, country string) (*OnboardingResult, error) {
	applicant, err := c.CreateApplicant(ctx, companyName, country)
	if err != nil {
		return nil, err
	}

	log := logger.WithContext(ctx).WithFields(logx.Field("applicant_id", applicant.ID))
	log.Infof("Applicant created, issuing access token at level %s", c.accessTokenLevel)

	result := &OnboardingResult{ApplicantID: applicant.ID}
	token, err := c.IssueAccessToken(ctx, applicant.ID, c.accessTokenLevel)
	if err != nil {
		log.Errorf("Access token issuance failed after applicant creation: %v", err)
		return result, &PartialCompositeFailure{ApplicantID: applicant.ID, Err: err}
	}

	result.AccessToken = token
	return result, nil
}

// post serializes payload once and signs and sends those exact bytes.
func (c *Client) post(ctx context.Context, stage Stage, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderRequestError{Stage: stage, Category: CategoryBadData, Err: fmt.Errorf("encode request: %w", err)}
	}
	return c.send(ctx, stage, http.MethodPost, path, body)
}

func (c *Client) send(ctx context.Context, stage Stage, method, path string, body []byte) ([]byte, error) {
	signed := signature.NewSignedRequest(c.signer, c.now().Unix(), method, c.pathPrefix+path, body)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, signed.Method, c.cfg.BaseURL+signed.Path, bytes.NewReader(signed.Body))
	if err != nil {
		return nil, &ProviderRequestError{Stage: stage, Category: CategoryTransport, Err: fmt.Errorf("build request: %w", err)}
	}
	signed.Apply(req.Header, c.cfg.AppToken)

	start := time.Now()
	respBody, status, err := c.roundTrip(ctx, stage, req)
	c.observe(ctx, CallRecord{
		Stage:      stage,
		Method:     signed.Method,
		Path:       signed.Path,
		StatusCode: status,
		Duration:   time.Since(start),
		Err:        err,
	})
	return respBody, err
}

func (c *Client) roundTrip(ctx context.Context, stage Stage, req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, transportError(ctx, stage, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, resp.StatusCode, transportError(ctx, stage, fmt.Errorf("read response: %w", err))
	}
	if len(body) > maxResponseBody {
		return nil, resp.StatusCode, &ProviderRequestError{
			Stage:      stage,
			Category:   CategoryBadData,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider response exceeds %d bytes", maxResponseBody),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &ProviderRequestError{
			Stage:      stage,
			Category:   CategoryRejected,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("provider returned status %d", resp.StatusCode),
		}
	}
	return body, resp.StatusCode, nil
}

func (c *Client) observe(ctx context.Context, rec CallRecord) {
	if c.observer != nil {
		c.observer.ObserveCall(ctx, rec)
	}
}

func transportError(ctx context.Context, stage Stage, err error) *ProviderRequestError {
	category := CategoryTransport
	if isTimeout(ctx, err) {
		category = CategoryTimeout
	}
	return &ProviderRequestError{Stage: stage, Category: category, Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
