package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultQueueKey = "kyb_gateway:onboarding_queue"

type RedisTaskQueue struct {
	client    redis.UniversalClient
	queueKey  string
	blockTime time.Duration
}

func NewRedisTaskQueue(ctx context.Context, redisAddr, password string, db int, queueKey string) (*RedisTaskQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTaskQueueWithClient(client, queueKey), nil
}

// NewRedisTaskQueueWithClient 使用已有连接
func NewRedisTaskQueueWithClient(client redis.UniversalClient, queueKey string) *RedisTaskQueue {
	if queueKey == "" {
		queueKey = DefaultQueueKey
	}
	return &RedisTaskQueue{
		client:    client,
		queueKey:  queueKey,
		blockTime: 5 * time.Second, // BRPOP 阻塞时间
	}
}

// Enqueue 将任务加入队列（使用 LPUSH，左进右出）
func (q *RedisTaskQueue) Enqueue(ctx context.Context, taskID string) error {
	if taskID == "" {
		return errors.New("empty task id")
	}
	if err := q.client.LPush(ctx, q.queueKey, taskID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Dequeue 从队列中取出任务（使用 BRPOP，阻塞式右侧弹出）
func (q *RedisTaskQueue) Dequeue(ctx context.Context) (string, error) {
	result, err := q.client.BRPop(ctx, q.blockTime, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("failed to dequeue task: %w", err)
	}

	// result[0] 是 key，result[1] 是 value
	if len(result) < 2 {
		return "", fmt.Errorf("invalid BRPOP result")
	}
	return result[1], nil
}

// Size 返回队列当前大小
func (q *RedisTaskQueue) Size(ctx context.Context) int {
	size, err := q.client.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0
	}
	return int(size)
}

// Ping 健康检查
func (q *RedisTaskQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (q *RedisTaskQueue) Close() error {
	return q.client.Close()
}

// GetStats 获取队列统计信息
func (q *RedisTaskQueue) GetStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"queue_size": q.Size(ctx),
	}

	if client, ok := q.client.(*redis.Client); ok {
		poolStats := client.PoolStats()
		stats["pool_hits"] = poolStats.Hits
		stats["pool_misses"] = poolStats.Misses
		stats["pool_timeouts"] = poolStats.Timeouts
		stats["total_conns"] = poolStats.TotalConns
		stats["idle_conns"] = poolStats.IdleConns
	}
	return stats
}
