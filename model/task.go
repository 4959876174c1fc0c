package model

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"    // 等待处理
	TaskStatusProcessing TaskStatus = "processing" // 处理中
	TaskStatusSuccess    TaskStatus = "success"    // 成功
	TaskStatusFailed     TaskStatus = "failed"     // 失败
)

// MaxCallbackAttempts 回调最多尝试次数
const MaxCallbackAttempts = 3

// 服务商调用之外的失败阶段
const (
	StageValidation = "validation" // 请求参数不合法
	StageEnqueue    = "enqueue"    // 写入任务队列失败
)

// OnboardingTask 异步开户任务：创建申请人并签发访问令牌
type OnboardingTask struct {
	ID       primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TaskID   string             `json:"task_id" bson:"task_id"`
	ClientID string             `json:"client_id" bson:"client_id"`

	CompanyName string `json:"company_name" bson:"company_name"`
	Country     string `json:"country" bson:"country"`

	// 回调信息
	CallbackURL     string            `json:"callback_url" bson:"callback_url"`
	CallbackMethod  string            `json:"callback_method" bson:"callback_method"`
	CallbackHeaders map[string]string `json:"-" bson:"callback_headers"`

	// 任务结果
	Status       TaskStatus      `json:"status" bson:"status"`
	ApplicantID  string          `json:"applicant_id,omitempty" bson:"applicant_id,omitempty"`
	AccessToken  json.RawMessage `json:"access_token,omitempty" bson:"access_token,omitempty"`
	FailedStage  string          `json:"failed_stage,omitempty" bson:"failed_stage,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty" bson:"error_message,omitempty"`

	// 回调状态
	CallbackAttempts int       `json:"callback_attempts" bson:"callback_attempts"`
	LastCallbackAt   time.Time `json:"last_callback_at,omitempty" bson:"last_callback_at,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	ExpireAt    time.Time  `json:"expire_at" bson:"expire_at"` // TTL 索引自动清理
}

// NewOnboardingTask 创建新任务
func NewOnboardingTask(taskID, clientID, companyName, country, callbackURL string) *OnboardingTask {
	now := time.Now()
	return &OnboardingTask{
		TaskID:         taskID,
		ClientID:       clientID,
		CompanyName:    companyName,
		Country:        country,
		CallbackURL:    callbackURL,
		CallbackMethod: "POST",
		Status:         TaskStatusPending,
		CreatedAt:      now,
		ExpireAt:       now.Add(24 * time.Hour),
	}
}

// IsCompleted 任务是否已结束
func (t *OnboardingTask) IsCompleted() bool {
	return t.Status == TaskStatusSuccess || t.Status == TaskStatusFailed
}

// CanRetryCallback 是否还能重试回调
func (t *OnboardingTask) CanRetryCallback() bool {
	return t.IsCompleted() && t.CallbackAttempts < MaxCallbackAttempts
}

func (t *OnboardingTask) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
}

// MarkSuccess 记录申请人和访问令牌
func (t *OnboardingTask) MarkSuccess(applicantID string, accessToken json.RawMessage) {
	now := time.Now()
	t.Status = TaskStatusSuccess
	t.ApplicantID = applicantID
	t.AccessToken = accessToken
	t.CompletedAt = &now
}

// MarkFailed 记录失败阶段，申请人已创建时 applicantID 非空
func (t *OnboardingTask) MarkFailed(stage, applicantID, errorMsg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FailedStage = stage
	t.ApplicantID = applicantID
	t.ErrorMessage = errorMsg
	t.CompletedAt = &now
}
