package agentpool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/forgewell/acengine/core"
)

// RedisQueue is a Redis-backed alternative to Queue, for deployments that
// run the agent pool across multiple processes. It trades the in-memory
// Queue's strict priority ordering for durability: LPUSH/BRPOP gives
// cross-process FIFO delivery, not priority scheduling, since Redis lists
// have no native priority op; a caller that needs priority across
// processes should partition into multiple RedisQueue instances by
// priority band and drain the high-priority one first.
//
// Grounded on the teacher's orchestration.RedisTaskQueue (LPUSH/BRPOP over
// go-redis), rewired from core.Task to agentpool.Task.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger core.Logger
}

// NewRedisQueue creates a Redis-backed queue on the caller's client; it
// selects no database itself.
func NewRedisQueue(client *redis.Client, keyPrefix string, logger core.Logger) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = "acengine:agentpool"
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/agentpool")
	}
	return &RedisQueue{client: client, key: keyPrefix + ":queue", logger: logger}
}

func (q *RedisQueue) Enqueue(ctx context.Context, task *Task) error {
	if task == nil || task.ID == "" {
		return core.Newf("agentpool.RedisQueue.Enqueue", core.KindValidation, "task must have an id")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return core.New("agentpool.RedisQueue.Enqueue", core.KindPersistence, err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return core.New("agentpool.RedisQueue.Enqueue", core.KindConnection, err)
	}
	q.logger.DebugWithContext(ctx, "task enqueued", map[string]interface{}{"task_id": task.ID})
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.New("agentpool.RedisQueue.Dequeue", core.KindConnection, err)
	}
	if len(result) < 2 {
		return nil, core.Newf("agentpool.RedisQueue.Dequeue", core.KindPersistence, "unexpected BRPOP result shape")
	}
	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, core.New("agentpool.RedisQueue.Dequeue", core.KindPersistence, err)
	}
	return &task, nil
}

// Len returns the current queue depth, used for the pool's scaling decision.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, core.New("agentpool.RedisQueue.Len", core.KindConnection, err)
	}
	return n, nil
}
