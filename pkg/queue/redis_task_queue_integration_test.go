//go:build integration

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisTaskQueueSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *redis.Client
	queue     *RedisTaskQueue
}

func TestRedisTaskQueueSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisTaskQueueSuite))
}

func (s *RedisTaskQueueSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)

	s.client = redis.NewClient(opts)
	s.Require().NoError(s.client.Ping(ctx).Err())

	s.queue = NewRedisTaskQueueWithClient(s.client, "test:onboarding_queue")
	s.queue.blockTime = 200 * time.Millisecond
}

func (s *RedisTaskQueueSuite) TearDownSuite() {
	_ = s.queue.Close()
	_ = s.container.Terminate(context.Background())
}

func (s *RedisTaskQueueSuite) SetupTest() {
	s.Require().NoError(s.client.FlushAll(context.Background()).Err())
}

func (s *RedisTaskQueueSuite) TestFIFO() {
	ctx := context.Background()

	s.Require().NoError(s.queue.Enqueue(ctx, "task-1"))
	s.Require().NoError(s.queue.Enqueue(ctx, "task-2"))
	s.Equal(2, s.queue.Size(ctx))

	first, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.Equal("task-1", first)

	second, err := s.queue.Dequeue(ctx)
	s.Require().NoError(err)
	s.Equal("task-2", second)
	s.Equal(0, s.queue.Size(ctx))
}

func (s *RedisTaskQueueSuite) TestDequeueEmpty() {
	taskID, err := s.queue.Dequeue(context.Background())
	s.Require().NoError(err)
	s.Empty(taskID)
}

func (s *RedisTaskQueueSuite) TestEnqueueRejectsEmptyID() {
	s.Error(s.queue.Enqueue(context.Background(), ""))
}
