// Package jobs 提供基于 Redis 有序集合的延迟任务：按“不早于”时间入队，由轮询 worker 领取执行
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueKey 默认队列键
const DefaultQueueKey = "fabble:jobs:scheduled"

// Job 延迟任务
type Job struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RunAt   time.Time       `json:"run_at"`
}

// Queue Redis 延迟任务队列，分数为执行时间（毫秒）
type Queue struct {
	client redis.Cmdable
	key    string
	newID  func() string
}

// NewQueue 创建队列
func NewQueue(client redis.Cmdable, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{client: client, key: key, newID: utils.GenerateJobID}
}

// Schedule 安排任务在 runAt 之后执行
func (q *Queue) Schedule(ctx context.Context, name string, payload interface{}, runAt time.Time) (*Job, error) {
	job := &Job{ID: q.newID(), Name: name, RunAt: runAt.UTC()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", name, err)
		}
		job.Payload = data
	}

	member, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	err = q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: string(member),
	}).Err()
	if err != nil {
		return nil, errors.NewRedisError(err)
	}
	return job, nil
}

// Due 列出到期任务，最多 limit 个，按执行时间升序
func (q *Queue) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, errors.NewRedisError(err)
	}
	return members, nil
}

// Claim 从队列中移除任务，返回 true 表示由当前进程领取
// 多个 worker 并发时只有一个能成功移除
func (q *Queue) Claim(ctx context.Context, member string) (bool, error) {
	removed, err := q.client.ZRem(ctx, q.key, member).Result()
	if err != nil {
		return false, errors.NewRedisError(err)
	}
	return removed == 1, nil
}

// Pending 队列中的任务数
func (q *Queue) Pending(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, errors.NewRedisError(err)
	}
	return n, nil
}

// ScheduleReadonlyDisable 安排到期关闭只读模式
func (q *Queue) ScheduleReadonlyDisable(ctx context.Context, at time.Time) error {
	_, err := q.Schedule(ctx, JobDisableReadonlyMode, nil, at)
	return err
}
