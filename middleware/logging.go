package middleware

import (
	"time"

	"kyb-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/zeromicro/go-zero/core/logx"
)

// RequestLogger 记录每个请求的访问日志，不记录请求体和响应体
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		client, _ := CurrentClient(c)
		fields := []logx.LogField{
			logx.Field("method", c.Request.Method),
			logx.Field("path", c.FullPath()),
			logx.Field("status", c.Writer.Status()),
			logx.Field("duration_ms", time.Since(start).Milliseconds()),
			logx.Field("client", client.Label()),
		}

		log := logger.WithContext(c.Request.Context())
		if c.Writer.Status() >= 500 {
			log.Errorw("request completed", fields...)
			return
		}
		log.Infow("request completed", fields...)
	}
}
