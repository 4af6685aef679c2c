package jobs

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/setting"
)

// JobDisableReadonlyMode 到期关闭只读模式
const JobDisableReadonlyMode = "disable_readonly_mode"

// ReadonlySettings 只读模式设置
type ReadonlySettings interface {
	ReadonlyStored(ctx context.Context) (bool, *time.Time, error)
	DisableReadonly(ctx context.Context) error
}

// DisableReadonlyMode 返回关闭只读模式的任务处理函数
// 以下情况跳过：已关闭、到期时间已清除、尚未到期（管理员延长了时间）
func DisableReadonlyMode(settings ReadonlySettings, now func() time.Time) Handler {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, job Job) error {
		enabled, expiresAt, err := settings.ReadonlyStored(ctx)
		if err != nil {
			return err
		}

		switch {
		case !enabled:
			logger.Info().Str("job_id", job.ID).Msg("[DisableReadonlyModeJob] Readonly mode already disabled, skipping")
			return nil
		case expiresAt == nil:
			logger.Info().Str("job_id", job.ID).Msg("[DisableReadonlyModeJob] Expiry cleared, skipping")
			return nil
		case !setting.Expired(expiresAt, now()):
			logger.Info().
				Str("job_id", job.ID).
				Time("expires_at", *expiresAt).
				Msg("[DisableReadonlyModeJob] Not yet expired, skipping")
			return nil
		}

		if err := settings.DisableReadonly(ctx); err != nil {
			return err
		}
		logger.Info().Str("job_id", job.ID).Msg("[DisableReadonlyModeJob] Readonly mode disabled")
		return nil
	}
}
