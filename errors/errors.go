package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"kyb-gateway/pkg/kyb"

	"github.com/gin-gonic/gin"
)

// Error codes
const (
	// Request errors
	ErrInvalidRequest  = 40000 // 请求参数错误
	ErrPayloadTooLarge = 41300 // 请求体过大

	// Authentication related errors
	ErrInvalidAPIKey      = 40001 // API密钥无效
	ErrClientDisabled     = 40002 // 客户已禁用
	ErrInvalidWebhookSign = 40106 // 回调摘要校验失败

	// Rate limit errors
	ErrRateLimitExceeded = 42902 // QPS限流超限

	// Task errors
	ErrTaskForbidden = 40300 // 无权访问任务
	ErrTaskNotFound  = 40400 // 任务不存在

	// Server errors
	ErrInternal       = 50000 // 内部错误
	ErrAsyncQueueFull = 50300 // 任务队列不可用

	// Provider related errors
	ErrProviderTimeout   = 50401 // 服务商超时
	ErrProviderError     = 50402 // 服务商返回错误
	ErrProviderBadData   = 50403 // 服务商数据异常
	ErrOnboardingPartial = 50404 // 已创建申请人，令牌签发失败
)

// APIError represents an API error response
type APIError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("API Error %d: %s", e.Code, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(code int, message string, data interface{}) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, httpStatus int, apiError *APIError) {
	c.JSON(httpStatus, apiError)
	c.Abort()
}

func NewInvalidRequestError(detail string) *APIError {
	return NewAPIError(ErrInvalidRequest, "请求参数错误", gin.H{"error": detail})
}

func NewPayloadTooLargeError(limit int64) *APIError {
	return NewAPIError(ErrPayloadTooLarge, "请求体过大", gin.H{"max_bytes": limit})
}

func NewInvalidAPIKeyError() *APIError {
	return NewAPIError(ErrInvalidAPIKey, "API密钥无效", nil)
}

func NewClientDisabledError(clientID string) *APIError {
	return NewAPIError(ErrClientDisabled, "客户已禁用", gin.H{
		"client_id": clientID,
	})
}

func NewInvalidWebhookSignatureError(reason string) *APIError {
	return NewAPIError(ErrInvalidWebhookSign, "回调摘要校验失败", gin.H{
		"error": reason,
	})
}

func NewRateLimitExceededError(clientID string, qps int) *APIError {
	return NewAPIError(ErrRateLimitExceeded, "请求频率超限，请稍后重试", gin.H{
		"client_id": clientID,
		"qps_limit": qps,
	})
}

func NewInternalError(message string) *APIError {
	return NewAPIError(ErrInternal, message, nil)
}

// providerData 服务商错误的诊断信息
func providerData(pe *kyb.ProviderRequestError) gin.H {
	data := gin.H{
		"stage":    pe.Stage,
		"category": pe.Category,
	}
	if pe.StatusCode != 0 {
		data["provider_status"] = pe.StatusCode
	}
	if diag := pe.Diagnostic(); diag != "" {
		data["provider_message"] = diag
	}
	return data
}

// FromProviderError maps KYB client errors to an HTTP status and API error.
// ok is false when err is not a KYB error.
func FromProviderError(err error) (status int, apiErr *APIError, ok bool) {
	if stderrors.Is(err, kyb.ErrInvalidInput) {
		return http.StatusBadRequest, NewInvalidRequestError(err.Error()), true
	}

	var pe *kyb.ProviderRequestError
	if !stderrors.As(err, &pe) {
		return 0, nil, false
	}

	data := providerData(pe)

	var partial *kyb.PartialCompositeFailure
	if stderrors.As(err, &partial) {
		data["applicant_id"] = partial.ApplicantID
		return http.StatusBadGateway, NewAPIError(ErrOnboardingPartial, "申请人已创建，访问令牌签发失败", data), true
	}

	switch pe.Category {
	case kyb.CategoryTimeout:
		return http.StatusGatewayTimeout, NewAPIError(ErrProviderTimeout, "验证服务商超时", data), true
	case kyb.CategoryBadData:
		return http.StatusBadGateway, NewAPIError(ErrProviderBadData, "验证服务商数据异常", data), true
	default:
		return http.StatusBadGateway, NewAPIError(ErrProviderError, "验证服务商错误", data), true
	}
}

// RespondWithProviderError 统一输出服务商错误
func RespondWithProviderError(c *gin.Context, err error) {
	status, apiErr, ok := FromProviderError(err)
	if !ok {
		RespondWithError(c, http.StatusInternalServerError, NewInternalError("内部服务器错误"))
		return
	}
	RespondWithError(c, status, apiErr)
}
