package middleware

import (
	"strconv"
	"time"

	"kyb-gateway/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type PrometheusMiddleware struct {
	metrics *metrics.KYBMetrics
}

func NewPrometheusMiddleware(m *metrics.KYBMetrics) *PrometheusMiddleware {
	return &PrometheusMiddleware{metrics: m}
}

// Monitor 记录网关请求指标，需在认证中间件之后才能区分客户
func (m *PrometheusMiddleware) Monitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		client, _ := CurrentClient(c)
		clientLabel := client.Label()

		m.metrics.RequestsInFlight.WithLabelValues(clientLabel).Inc()
		defer m.metrics.RequestsInFlight.WithLabelValues(clientLabel).Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		m.metrics.RequestsTotal.WithLabelValues(clientLabel, statusCode).Inc()
		m.metrics.RequestDuration.WithLabelValues(clientLabel).Observe(float64(time.Since(startTime).Milliseconds()))
	}
}
