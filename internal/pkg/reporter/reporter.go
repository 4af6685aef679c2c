package reporter

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/getsentry/sentry-go"
)

// Reporter 错误上报接口
// 外部服务失败（如 reCAPTCHA 验证）在放行请求的同时通过此接口上报
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// Config 上报配置
type Config struct {
	DSN         string
	Environment string
}

// New 根据配置创建上报器，DSN 为空时退化为仅写日志
func New(cfg Config) (Reporter, error) {
	if cfg.DSN == "" {
		return LogReporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
	}); err != nil {
		return nil, err
	}
	return &SentryReporter{hub: sentry.CurrentHub()}, nil
}

// SentryReporter 基于 Sentry 的上报器
type SentryReporter struct {
	hub *sentry.Hub
}

// Report 上报错误，同时写一条 error 日志
func (r *SentryReporter) Report(ctx context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	LogReporter{}.Report(ctx, err, tags)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = r.hub.Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Flush 等待缓冲事件发送完成
func (r *SentryReporter) Flush(timeout time.Duration) {
	r.hub.Flush(timeout)
}

// LogReporter 仅写日志的上报器
type LogReporter struct{}

// Report 写 error 日志
func (LogReporter) Report(_ context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}
	ev := logger.Error().Err(err)
	for k, v := range tags {
		ev = ev.Str(k, v)
	}
	ev.Msg("Reported error")
}

// Flush 无操作
func (LogReporter) Flush(time.Duration) {}
