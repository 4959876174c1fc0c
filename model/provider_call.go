package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProviderCall records one outbound call to the verification provider.
// Request and response bodies are not stored.
type ProviderCall struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ClientID   string             `json:"client_id" bson:"client_id"`
	Stage      string             `json:"stage" bson:"stage"`
	Method     string             `json:"method" bson:"method"`
	Path       string             `json:"path" bson:"path"`
	StatusCode int                `json:"status_code" bson:"status_code"` // 0 表示未收到响应
	Duration   int64              `json:"duration" bson:"duration"`       // 耗时(ms)
	Outcome    string             `json:"outcome" bson:"outcome"`         // success 或错误类别
	Error      string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
}

// OutcomeSuccess marks a call that returned 2xx
const OutcomeSuccess = "success"

// Succeeded reports whether the provider accepted the call
func (p *ProviderCall) Succeeded() bool {
	return p.Outcome == OutcomeSuccess
}
