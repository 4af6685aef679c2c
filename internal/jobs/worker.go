package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/pkg/logger"
)

// Handler 任务处理函数
type Handler func(ctx context.Context, job Job) error

// WorkerConfig worker 配置
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Worker 轮询到期任务并执行
// 任务只执行一次，失败不重试
type Worker struct {
	queue    *Queue
	handlers map[string]Handler
	cfg      WorkerConfig
	now      func() time.Time
}

// NewWorker 创建 worker
func NewWorker(queue *Queue, cfg WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Worker{
		queue:    queue,
		handlers: make(map[string]Handler),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Register 注册任务处理函数
func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// Run 轮询直到 ctx 取消
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	logger.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("Job worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Job worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				logger.Warn().Err(err).Msg("Job poll failed")
			}
		}
	}
}

// RunOnce 执行一批到期任务，返回本进程领取并执行的任务数
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	members, err := w.queue.Due(ctx, w.now(), int64(w.cfg.BatchSize))
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, member := range members {
		claimed, err := w.queue.Claim(ctx, member)
		if err != nil {
			return processed, err
		}
		if !claimed {
			continue
		}
		w.execute(ctx, member)
		processed++
	}
	return processed, nil
}

func (w *Worker) execute(ctx context.Context, member string) {
	var job Job
	if err := json.Unmarshal([]byte(member), &job); err != nil {
		logger.Error().Err(err).Str("member", member).Msg("Dropping malformed job")
		metrics.JobRunsTotal.WithLabelValues("unknown", "malformed").Inc()
		return
	}

	h, ok := w.handlers[job.Name]
	if !ok {
		logger.Error().Str("job", job.Name).Str("job_id", job.ID).Msg("No handler registered for job")
		metrics.JobRunsTotal.WithLabelValues(job.Name, "unhandled").Inc()
		return
	}

	start := time.Now()
	if err := h(ctx, job); err != nil {
		logger.Error().Err(err).
			Str("job", job.Name).
			Str("job_id", job.ID).
			Msg("Job failed")
		metrics.JobRunsTotal.WithLabelValues(job.Name, "failed").Inc()
		return
	}

	logger.Info().
		Str("job", job.Name).
		Str("job_id", job.ID).
		Dur("duration", time.Since(start)).
		Msg("Job finished")
	metrics.JobRunsTotal.WithLabelValues(job.Name, "success").Inc()
}
