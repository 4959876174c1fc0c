package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"kyb-gateway/errors"
	"kyb-gateway/model"
	"kyb-gateway/pkg/logger"
	"kyb-gateway/repository"
	"kyb-gateway/service"

	"github.com/gin-gonic/gin"
)

// ClientContextKey gin 上下文中保存当前客户的键
const ClientContextKey = "client"

// ClientFinder 按 API 密钥查找客户
type ClientFinder interface {
	GetClientByAPIKey(ctx context.Context, apiKey string) (*model.Client, error)
}

// AuthMiddleware 认证中间件
type AuthMiddleware struct {
	clients ClientFinder
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(clients ClientFinder) *AuthMiddleware {
	return &AuthMiddleware{clients: clients}
}

// Authenticate 校验 X-API-Key 并把客户写入上下文
func (a *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			errors.RespondWithError(c, http.StatusUnauthorized, errors.NewInvalidAPIKeyError())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		client, err := a.clients.GetClientByAPIKey(ctx, apiKey)
		if err != nil {
			if stderrors.Is(err, repository.ErrNotFound) {
				logger.Infof("Authentication failed: unknown API key")
				errors.RespondWithError(c, http.StatusUnauthorized, errors.NewInvalidAPIKeyError())
				return
			}
			logger.Errorf("Database error during authentication: %v", err)
			errors.RespondWithError(c, http.StatusInternalServerError, errors.NewInternalError("内部服务器错误"))
			return
		}

		if !client.IsActive() {
			logger.Infof("Authentication failed: client %s is disabled", client.ID.Hex())
			errors.RespondWithError(c, http.StatusForbidden, errors.NewClientDisabledError(client.ID.Hex()))
			return
		}

		c.Set(ClientContextKey, client)
		c.Request = c.Request.WithContext(service.WithClientID(c.Request.Context(), client.ID.Hex()))

		logger.Debugf("Authentication successful for client %s (%s)", client.ID.Hex(), client.Name)
		c.Next()
	}
}

// CurrentClient 返回认证中间件写入的客户
func CurrentClient(c *gin.Context) (*model.Client, bool) {
	v, exists := c.Get(ClientContextKey)
	if !exists {
		return nil, false
	}
	client, ok := v.(*model.Client)
	return client, ok && client != nil
}

// requireClient 未找到客户时直接响应 500
func requireClient(c *gin.Context) (*model.Client, bool) {
	client, ok := CurrentClient(c)
	if !ok {
		errors.RespondWithError(c, http.StatusInternalServerError, errors.NewInternalError("内部服务器错误：客户信息未找到"))
		return nil, false
	}
	return client, true
}
