package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"kyb-gateway/model"
	"kyb-gateway/pkg/kyb"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/pkg/metrics"
	"kyb-gateway/repository"
)

type clientIDKey struct{}

// WithClientID tags ctx with the API client a provider call is made for
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the tagged client id, or ""
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// 记录写入超时
const recordWriteTimeout = 5 * time.Second

// CallRecorder implements kyb.CallObserver. Each call is counted in metrics
// and stored in the provider call log in the background.
type CallRecorder struct {
	repo    repository.ProviderCallRepository
	metrics *metrics.KYBMetrics
	wg      sync.WaitGroup
}

// NewCallRecorder creates a recorder; repo or m may be nil
func NewCallRecorder(repo repository.ProviderCallRepository, m *metrics.KYBMetrics) *CallRecorder {
	return &CallRecorder{repo: repo, metrics: m}
}

// ObserveCall records one finished provider call
func (r *CallRecorder) ObserveCall(ctx context.Context, rec kyb.CallRecord) {
	outcome := Outcome(rec.Err)

	if r.metrics != nil {
		r.metrics.ObserveProviderCall(string(rec.Stage), outcome, rec.Duration)
	}
	if r.repo == nil {
		return
	}

	call := &model.ProviderCall{
		ClientID:   ClientIDFromContext(ctx),
		Stage:      string(rec.Stage),
		Method:     rec.Method,
		Path:       rec.Path,
		StatusCode: rec.StatusCode,
		Duration:   rec.Duration.Milliseconds(),
		Outcome:    outcome,
		Error:      errorSummary(rec.Err),
		CreatedAt:  time.Now(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.Background(), recordWriteTimeout)
		defer cancel()
		if err := r.repo.Create(writeCtx, call); err != nil {
			logger.Errorf("Failed to record provider call: %v", err)
		}
	}()
}

// Wait blocks until pending records are written
func (r *CallRecorder) Wait() {
	r.wg.Wait()
}

// Outcome is "success" or the failure category of err
func Outcome(err error) string {
	if err == nil {
		return model.OutcomeSuccess
	}
	if category := kyb.GetCategory(err); category != "" {
		return string(category)
	}
	return "error"
}

// errorSummary 不包含服务商响应体
func errorSummary(err error) string {
	if err == nil {
		return ""
	}
	var pe *kyb.ProviderRequestError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return err.Error()
}
