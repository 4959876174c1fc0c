package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"kyb-gateway/model"
	"kyb-gateway/pkg/signature"
	"kyb-gateway/repository"
	"kyb-gateway/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFinder struct {
	clients map[string]*model.Client
	err     error
}

func (f *stubFinder) GetClientByAPIKey(_ context.Context, apiKey string) (*model.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.clients[apiKey]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("client %w", repository.ErrNotFound)
}

func activeClient(qps int) *model.Client {
	c := model.NewClient("acme", "ak_test", qps)
	c.ID = primitive.NewObjectID()
	return c
}

func decodeCode(t *testing.T, body io.Reader) int {
	t.Helper()
	var resp struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Code
}

func TestAuthenticate(t *testing.T) {
	client := activeClient(10)
	disabled := activeClient(10)
	disabled.Status = model.ClientStatusDisabled

	auth := NewAuthMiddleware(&stubFinder{clients: map[string]*model.Client{
		"good":     client,
		"disabled": disabled,
	}})

	r := gin.New()
	r.GET("/x", auth.Authenticate(), func(c *gin.Context) {
		current, ok := CurrentClient(c)
		require.True(t, ok)
		c.String(http.StatusOK, current.ID.Hex()+"|"+service.ClientIDFromContext(c.Request.Context()))
	})

	tests := []struct {
		name   string
		apiKey string
		status int
		code   int
	}{
		{"missing key", "", http.StatusUnauthorized, 40001},
		{"unknown key", "nope", http.StatusUnauthorized, 40001},
		{"disabled client", "disabled", http.StatusForbidden, 40002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeCode(t, w.Body))
		})
	}

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-API-Key", "good")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, client.ID.Hex()+"|"+client.ID.Hex(), w.Body.String())
	})
}

func TestAuthenticate_RepositoryError(t *testing.T) {
	auth := NewAuthMiddleware(&stubFinder{err: errors.New("connection refused")})
	r := gin.New()
	r.GET("/x", auth.Authenticate(), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-API-Key", "any")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func withClient(client *model.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ClientContextKey, client)
		c.Next()
	}
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimitMiddleware(10)
	defer rl.Close()

	client := activeClient(1)
	r := gin.New()
	r.GET("/x", withClient(client), rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, 42902, decodeCode(t, w.Body))

	stats := rl.GetBucketStats()
	require.Contains(t, stats, client.ID.Hex())
	assert.Equal(t, 1, stats[client.ID.Hex()]["qps"])
}

func TestRateLimit_QPSChangeResetsBucket(t *testing.T) {
	rl := NewRateLimitMiddleware(10)
	defer rl.Close()

	assert.True(t, rl.Allow("c1", 1))
	assert.False(t, rl.Allow("c1", 1))
	assert.True(t, rl.Allow("c1", 5))
}

func TestRateLimit_WithoutClient(t *testing.T) {
	rl := NewRateLimitMiddleware(10)
	defer rl.Close()

	r := gin.New()
	r.GET("/x", rl.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookSignature(t *testing.T) {
	verifier, err := signature.NewDigestVerifier("webhook-secret")
	require.NoError(t, err)

	body := `{"type":"applicantReviewed"}`
	valid, err := verifier.Compute(signature.DigestHMACSHA256, []byte(body))
	require.NoError(t, err)

	r := gin.New()
	r.POST("/hook", NewWebhookSignatureMiddleware(verifier).Verify(), func(c *gin.Context) {
		data, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(data))
	})

	tests := []struct {
		name   string
		body   string
		digest string
		alg    string
		status int
	}{
		{"valid digest", body, valid, signature.DigestHMACSHA256, http.StatusOK},
		{"default algorithm", body, valid, "", http.StatusOK},
		{"uppercase digest", body, strings.ToUpper(valid), signature.DigestHMACSHA256, http.StatusOK},
		{"tampered body", `{"type":"applicantCreated"}`, valid, signature.DigestHMACSHA256, http.StatusUnauthorized},
		{"missing digest", body, "", signature.DigestHMACSHA256, http.StatusUnauthorized},
		{"unsupported algorithm", body, valid, "MD5", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(tt.body))
			if tt.digest != "" {
				req.Header.Set(signature.HeaderPayloadDigest, tt.digest)
			}
			if tt.alg != "" {
				req.Header.Set(signature.HeaderPayloadDigestAlg, tt.alg)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestWebhookSignature_OversizedBody(t *testing.T) {
	verifier, err := signature.NewDigestVerifier("webhook-secret")
	require.NoError(t, err)

	called := false
	r := gin.New()
	r.POST("/hook", NewWebhookSignatureMiddleware(verifier).Verify(), func(c *gin.Context) {
		called = true
		c.Status(http.StatusOK)
	})

	body := []byte(strings.Repeat("x", MaxWebhookBody+1))
	digest, err := verifier.Compute(signature.DigestHMACSHA256, body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(string(body)))
	req.Header.Set(signature.HeaderPayloadDigest, digest)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, 41300, decodeCode(t, w.Body))
	assert.False(t, called)
}

func TestWebhookSignature_BodyAtLimit(t *testing.T) {
	verifier, err := signature.NewDigestVerifier("webhook-secret")
	require.NoError(t, err)

	r := gin.New()
	r.POST("/hook", NewWebhookSignatureMiddleware(verifier).Verify(), func(c *gin.Context) {
		data, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, "%d", len(data))
	})

	body := []byte(strings.Repeat("x", MaxWebhookBody))
	digest, err := verifier.Compute(signature.DigestHMACSHA256, body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(string(body)))
	req.Header.Set(signature.HeaderPayloadDigest, digest)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprint(MaxWebhookBody), w.Body.String())
}

func TestWebhookSignature_Disabled(t *testing.T) {
	r := gin.New()
	r.POST("/hook", NewWebhookSignatureMiddleware(nil).Verify(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}

type memoryTaskRepo struct {
	mu      sync.Mutex
	tasks   []*model.OnboardingTask
	updated []model.OnboardingTask
}

func (r *memoryTaskRepo) Create(_ context.Context, task *model.OnboardingTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *memoryTaskRepo) GetByTaskID(context.Context, string) (*model.OnboardingTask, error) {
	return nil, repository.ErrNotFound
}
func (r *memoryTaskRepo) Update(_ context.Context, task *model.OnboardingTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, *task)
	return nil
}
func (r *memoryTaskRepo) GetTasksByClient(context.Context, string, int, int) ([]*model.OnboardingTask, error) {
	return nil, nil
}
func (r *memoryTaskRepo) IncrementCallbackAttempts(context.Context, string) error { return nil }
func (r *memoryTaskRepo) DeleteExpiredTasks(context.Context) (int64, error)       { return 0, nil }

type sliceQueue struct {
	ids []string
	err error
}

func (q *sliceQueue) Enqueue(_ context.Context, taskID string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, taskID)
	return nil
}
func (q *sliceQueue) Dequeue(context.Context) (string, error) { return "", nil }
func (q *sliceQueue) Size(context.Context) int                { return len(q.ids) }
func (q *sliceQueue) Close() error                            { return nil }

func newAsyncRouter(q *sliceQueue, repo *memoryTaskRepo, client *model.Client) *gin.Engine {
	r := gin.New()
	r.POST("/onboard", withClient(client), NewAsyncMiddleware(q, repo).HandleAsync(), func(c *gin.Context) {
		c.String(http.StatusOK, "sync")
	})
	return r
}

func TestHandleAsync_Enqueues(t *testing.T) {
	q := &sliceQueue{}
	repo := &memoryTaskRepo{}
	client := activeClient(10)
	r := newAsyncRouter(q, repo, client)

	req := httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(`{"companyName":"Acme","country":"US"}`))
	req.Header.Set("X-Async", "true")
	req.Header.Set("X-Callback-URL", "https://example.com/cb")
	req.Header.Set("X-Callback-Auth", "Bearer cb")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, repo.tasks, 1)
	task := repo.tasks[0]
	assert.Equal(t, []string{task.TaskID}, q.ids)
	assert.Equal(t, client.ID.Hex(), task.ClientID)
	assert.Equal(t, "Acme", task.CompanyName)
	assert.Equal(t, "US", task.Country)
	assert.Equal(t, "Bearer cb", task.CallbackHeaders["Authorization"])
	assert.Equal(t, model.TaskStatusPending, task.Status)

	var resp struct {
		Data struct {
			TaskID string `json:"task_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, task.TaskID, resp.Data.TaskID)
}

func TestHandleAsync_PassThroughAndValidation(t *testing.T) {
	q := &sliceQueue{}
	repo := &memoryTaskRepo{}
	r := newAsyncRouter(q, repo, activeClient(10))

	// 非异步请求
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sync", w.Body.String())

	tests := []struct {
		name     string
		body     string
		callback string
	}{
		{"missing country", `{"companyName":"Acme"}`, "https://example.com/cb"},
		{"malformed body", `{`, "https://example.com/cb"},
		{"bad callback", `{"companyName":"Acme","country":"US"}`, "ftp://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(tt.body))
			req.Header.Set("X-Async", "true")
			req.Header.Set("X-Callback-URL", tt.callback)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Empty(t, repo.tasks)
	assert.Empty(t, q.ids)
}

func TestHandleAsync_QueueUnavailable(t *testing.T) {
	q := &sliceQueue{err: errors.New("redis down")}
	repo := &memoryTaskRepo{}
	r := newAsyncRouter(q, repo, activeClient(10))

	req := httptest.NewRequest(http.MethodPost, "/onboard", strings.NewReader(`{"companyName":"Acme","country":"US"}`))
	req.Header.Set("X-Async", "true")
	req.Header.Set("X-Callback-URL", "https://example.com/cb")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 50300, decodeCode(t, w.Body))

	// 入队失败的任务不能停留在 pending
	require.Len(t, repo.updated, 1)
	assert.Equal(t, repo.tasks[0].TaskID, repo.updated[0].TaskID)
	assert.Equal(t, model.TaskStatusFailed, repo.updated[0].Status)
	assert.Equal(t, model.StageEnqueue, repo.updated[0].FailedStage)
	assert.Contains(t, repo.updated[0].ErrorMessage, "redis down")
}
