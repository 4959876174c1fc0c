package handler

import (
	"encoding/json"
	"net/http"

	"kyb-gateway/errors"
	"kyb-gateway/middleware"
	"kyb-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"
)

// WebhookMessage 回调确认消息
const WebhookMessage = "Webhook received successfully"

// WebhookHandler 确认服务商回调，不处理业务
type WebhookHandler struct{}

func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{}
}

// WebhookAck 回调确认响应
type WebhookAck struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	ReceivedData json.RawMessage `json:"receivedData"`
}

// Receive 原样回显收到的 JSON
// POST /api/kyb/webhook
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, ok := middleware.ReadWebhookBody(c)
	if !ok {
		return
	}

	payload := json.RawMessage("null")
	if len(body) > 0 {
		if !json.Valid(body) {
			errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError("invalid JSON payload"))
			return
		}
		payload = json.RawMessage(body)
	}

	var event struct {
		Type        string `json:"type"`
		ApplicantID string `json:"applicantId"`
	}
	_ = json.Unmarshal(payload, &event)
	logger.WithContext(c.Request.Context()).Infow("Webhook received",
		logx.Field("type", event.Type),
		logx.Field("applicant_id", event.ApplicantID),
		logx.Field("size", len(body)),
	)

	c.JSON(http.StatusOK, WebhookAck{
		Success:      true,
		Message:      WebhookMessage,
		ReceivedData: payload,
	})
}
