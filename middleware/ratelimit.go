package middleware

import (
	"net/http"
	"sync"
	"time"

	"kyb-gateway/errors"
	"kyb-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = 10 * time.Minute
)

// clientLimiter 单个客户的令牌桶
type clientLimiter struct {
	limiter  *rate.Limiter
	qps      int
	lastSeen time.Time
}

// RateLimitMiddleware 按客户 QPS 限流
type RateLimitMiddleware struct {
	limiters   map[string]*clientLimiter // 客户端ID -> 令牌桶
	defaultQPS int
	mutex      sync.Mutex
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimitMiddleware 创建限流中间件，客户未设置 QPS 时使用 defaultQPS
func NewRateLimitMiddleware(defaultQPS int) *RateLimitMiddleware {
	rl := &RateLimitMiddleware{
		limiters:   make(map[string]*clientLimiter),
		defaultQPS: defaultQPS,
		stop:       make(chan struct{}),
	}

	// 定期清理不活跃的令牌桶
	go rl.cleanup()

	return rl
}

// RateLimit 限流处理函数，需在认证中间件之后
func (rl *RateLimitMiddleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := requireClient(c)
		if !ok {
			return
		}

		qps := client.QPS
		if qps <= 0 {
			qps = rl.defaultQPS
		}

		if !rl.Allow(client.ID.Hex(), qps) {
			logger.Infof("Rate limit exceeded for client %s (QPS: %d)", client.ID.Hex(), qps)
			errors.RespondWithError(c, http.StatusTooManyRequests,
				errors.NewRateLimitExceededError(client.ID.Hex(), qps))
			return
		}

		c.Next()
	}
}

// Allow 消耗一个令牌，QPS 变化时重建令牌桶
func (rl *RateLimitMiddleware) Allow(clientID string, qps int) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	cl, exists := rl.limiters[clientID]
	if !exists || cl.qps != qps {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(qps), qps),
			qps:     qps,
		}
		rl.limiters[clientID] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Close 停止清理协程
func (rl *RateLimitMiddleware) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimitMiddleware) cleanup() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.evictIdle(now)
		}
	}
}

func (rl *RateLimitMiddleware) evictIdle(now time.Time) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	for clientID, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, clientID)
			logger.Debugf("Cleaned up inactive rate limiter for client %s", clientID)
		}
	}
}

// GetBucketStats 获取令牌桶统计信息（用于监控）
func (rl *RateLimitMiddleware) GetBucketStats() map[string]map[string]interface{} {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	stats := make(map[string]map[string]interface{}, len(rl.limiters))
	for clientID, cl := range rl.limiters {
		stats[clientID] = map[string]interface{}{
			"qps":       cl.qps,
			"tokens":    cl.limiter.Tokens(),
			"last_seen": cl.lastSeen,
		}
	}
	return stats
}
