package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"kyb-gateway/model"
	"kyb-gateway/pkg/kyb"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/pkg/metrics"
	"kyb-gateway/pkg/queue"
	"kyb-gateway/repository"
	"kyb-gateway/service"

	"github.com/zeromicro/go-zero/core/logx"
)

const (
	callbackTimeout = 10 * time.Second
	// 出队出错后的等待时间
	dequeueBackoff = time.Second
)

// Onboarder runs the create-applicant-then-issue-token operation
type Onboarder interface {
	Onboard(ctx context.Context, companyName, country string) (*kyb.OnboardingResult, error)
}

type WorkerPool struct {
	workerCount int
	queue       queue.TaskQueue
	taskRepo    repository.TaskRepository
	onboarder   Onboarder
	metrics     *metrics.KYBMetrics
	httpClient  *http.Client
	retryDelay  time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

type Option func(*WorkerPool)

// WithHTTPClient 设置回调使用的 HTTP 客户端
func WithHTTPClient(client *http.Client) Option {
	return func(wp *WorkerPool) { wp.httpClient = client }
}

// WithRetryDelay 设置回调重试的基础间隔，第 n 次重试等待 n 倍
func WithRetryDelay(d time.Duration) Option {
	return func(wp *WorkerPool) { wp.retryDelay = d }
}

func WithMetrics(m *metrics.KYBMetrics) Option {
	return func(wp *WorkerPool) { wp.metrics = m }
}

func NewWorkerPool(workerCount int, q queue.TaskQueue, taskRepo repository.TaskRepository, onboarder Onboarder, opts ...Option) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount <= 0 {
		workerCount = 1
	}

	wp := &WorkerPool{
		workerCount: workerCount,
		queue:       q,
		taskRepo:    taskRepo,
		onboarder:   onboarder,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryDelay: 5 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

func (wp *WorkerPool) Start() {
	logger.Infof("Starting worker pool with %d workers", wp.workerCount)

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop 等待正在处理的任务结束
func (wp *WorkerPool) Stop() {
	logger.Info("Stopping worker pool...")
	wp.cancel()
	wp.wg.Wait()
	logger.Info("Worker pool stopped")
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	logger.Infof("Worker %d started", id)

	for {
		select {
		case <-wp.ctx.Done():
			logger.Infof("Worker %d stopped", id)
			return
		default:
		}

		taskID, err := wp.queue.Dequeue(wp.ctx)
		if err != nil {
			if wp.ctx.Err() != nil {
				logger.Infof("Worker %d stopped", id)
				return
			}
			logger.Errorf("Worker %d failed to dequeue task: %v", id, err)
			wp.sleep(dequeueBackoff)
			continue
		}
		if taskID == "" {
			continue
		}

		// 已出队的任务不受 Stop 取消
		wp.ProcessTask(context.WithoutCancel(wp.ctx), id, taskID)
	}
}

// ProcessTask runs one onboarding task and delivers its callback
func (wp *WorkerPool) ProcessTask(ctx context.Context, workerID int, taskID string) {
	log := logger.WithContext(ctx).WithFields(
		logx.Field("worker", workerID),
		logx.Field("task_id", taskID),
	)

	task, err := wp.taskRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		log.Errorf("Failed to load task: %v", err)
		return
	}
	if task.IsCompleted() {
		log.Infof("Task already completed with status %s, skipping", task.Status)
		return
	}

	task.MarkProcessing()
	if err := wp.taskRepo.Update(ctx, task); err != nil {
		log.Errorf("Failed to mark task as processing: %v", err)
	}

	wp.runOnboarding(service.WithClientID(ctx, task.ClientID), task)

	if err := wp.taskRepo.Update(ctx, task); err != nil {
		log.Errorf("Failed to update task: %v", err)
	}

	if wp.metrics != nil {
		wp.metrics.OnboardingTasks.WithLabelValues(string(task.Status)).Inc()
	}

	if task.CallbackURL != "" {
		wp.executeCallback(ctx, task)
	}
}

// runOnboarding 按结果更新任务状态，服务商调用不重试
func (wp *WorkerPool) runOnboarding(ctx context.Context, task *model.OnboardingTask) {
	log := logger.WithContext(ctx).WithFields(logx.Field("task_id", task.TaskID))

	result, err := wp.onboarder.Onboard(ctx, task.CompanyName, task.Country)
	if err != nil {
		applicantID := ""
		var partial *kyb.PartialCompositeFailure
		if errors.As(err, &partial) {
			applicantID = partial.ApplicantID
		} else if result != nil {
			applicantID = result.ApplicantID
		}

		stage := string(kyb.FailedStage(err))
		if stage == "" && errors.Is(err, kyb.ErrInvalidInput) {
			stage = model.StageValidation
		}

		task.MarkFailed(stage, applicantID, err.Error())
		log.Errorf("Onboarding task failed at stage %s: %v", stage, err)
		return
	}

	token, err := json.Marshal(result.AccessToken)
	if err != nil {
		task.MarkFailed(string(kyb.StageTokenIssuance), result.ApplicantID, fmt.Sprintf("encode access token: %v", err))
		return
	}
	task.MarkSuccess(result.ApplicantID, token)
	log.Infof("Onboarding task succeeded, applicant %s", result.ApplicantID)
}

// callbackPayload 回调请求体
type callbackPayload struct {
	TaskID      string           `json:"task_id"`
	Status      model.TaskStatus `json:"status"`
	ApplicantID string           `json:"applicant_id,omitempty"`
	AccessToken json.RawMessage  `json:"access_token,omitempty"`
	FailedStage string           `json:"failed_stage,omitempty"`
	Error       string           `json:"error,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func (wp *WorkerPool) executeCallback(ctx context.Context, task *model.OnboardingTask) {
	log := logger.WithContext(ctx).WithFields(logx.Field("task_id", task.TaskID))
	log.Infof("Executing callback to %s", task.CallbackURL)

	payload, err := json.Marshal(callbackPayload{
		TaskID:      task.TaskID,
		Status:      task.Status,
		ApplicantID: task.ApplicantID,
		AccessToken: task.AccessToken,
		FailedStage: task.FailedStage,
		Error:       task.ErrorMessage,
		CompletedAt: task.CompletedAt,
	})
	if err != nil {
		log.Errorf("Failed to marshal callback data: %v", err)
		return
	}

	for task.CanRetryCallback() {
		if err := wp.taskRepo.IncrementCallbackAttempts(ctx, task.TaskID); err != nil {
			log.Errorf("Failed to record callback attempt: %v", err)
		}
		task.CallbackAttempts++
		task.LastCallbackAt = time.Now()

		err := wp.sendCallback(ctx, task, payload)
		if err == nil {
			log.Infof("Callback succeeded on attempt %d", task.CallbackAttempts)
			return
		}
		log.Errorf("Callback attempt %d failed: %v", task.CallbackAttempts, err)

		if !task.CanRetryCallback() {
			break
		}
		// 递增延迟重试，工作池停止后放弃剩余重试
		if !wp.sleep(time.Duration(task.CallbackAttempts) * wp.retryDelay) {
			log.Infof("Worker pool stopping, dropping remaining callback retries")
			break
		}
	}

	if wp.metrics != nil {
		wp.metrics.CallbackFailures.Inc()
	}
}

// sendCallback 每次重试重新构造请求
func (wp *WorkerPool) sendCallback(ctx context.Context, task *model.OnboardingTask, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	defer cancel()

	method := task.CallbackMethod
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, task.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create callback request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Task-ID", task.TaskID)
	for key, value := range task.CallbackHeaders {
		req.Header.Set(key, value)
	}

	resp, err := wp.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}

// sleep 返回 false 表示工作池已停止
func (wp *WorkerPool) sleep(d time.Duration) bool {
	if wp.ctx.Err() != nil {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-wp.ctx.Done():
		return false
	}
}
