package queue

import "context"

// TaskQueue 传递开户任务ID，任务内容保存在任务仓储中
type TaskQueue interface {
	Enqueue(ctx context.Context, taskID string) error
	// Dequeue 阻塞等待任务，超时无任务时返回空字符串
	Dequeue(ctx context.Context) (string, error)
	Size(ctx context.Context) int
	Close() error
}
