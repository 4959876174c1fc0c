package middleware

import (
	"bytes"
	stderrors "errors"
	"io"
	"net/http"

	"kyb-gateway/errors"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/pkg/signature"

	"github.com/gin-gonic/gin"
)

// MaxWebhookBody 回调请求体上限
const MaxWebhookBody = 1 << 20

// ReadWebhookBody 读取回调请求体，超过 MaxWebhookBody 时返回 413
func ReadWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			errors.RespondWithError(c, http.StatusRequestEntityTooLarge, errors.NewPayloadTooLargeError(MaxWebhookBody))
			return nil, false
		}
		errors.RespondWithError(c, http.StatusBadRequest, errors.NewInvalidRequestError("读取请求体失败"))
		return nil, false
	}
	return body, true
}

// WebhookSignatureMiddleware 校验服务商回调的 X-Payload-Digest
type WebhookSignatureMiddleware struct {
	verifier *signature.DigestVerifier
}

// NewWebhookSignatureMiddleware verifier 为 nil 时放行所有回调
func NewWebhookSignatureMiddleware(verifier *signature.DigestVerifier) *WebhookSignatureMiddleware {
	return &WebhookSignatureMiddleware{verifier: verifier}
}

func (m *WebhookSignatureMiddleware) Verify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.verifier == nil {
			c.Next()
			return
		}

		body, ok := ReadWebhookBody(c)
		if !ok {
			return
		}
		// 重新设置请求体，以便后续处理可以再次读取
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		algorithm := c.GetHeader(signature.HeaderPayloadDigestAlg)
		digest := c.GetHeader(signature.HeaderPayloadDigest)

		if err := m.verifier.Verify(algorithm, body, digest); err != nil {
			logger.Infof("Webhook digest verification failed: %v", err)
			status := http.StatusUnauthorized
			if stderrors.Is(err, signature.ErrUnsupportedAlgorithm) {
				status = http.StatusBadRequest
			}
			errors.RespondWithError(c, status, errors.NewInvalidWebhookSignatureError(err.Error()))
			return
		}

		c.Next()
	}
}
