package moderation

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/model"
)

// SpammerStore 垃圾用户登记持久化
type SpammerStore interface {
	Exists(ctx context.Context, userID int64) (bool, error)
	Mark(ctx context.Context, userID int64, detectedAt time.Time) error
}

// SpammerRegistry 垃圾用户登记，驱动静默拒绝与评论自动分类
type SpammerRegistry struct {
	store SpammerStore
	logs  *DetectionLogger
	now   func() time.Time
}

// NewSpammerRegistry 创建登记簿
func NewSpammerRegistry(store SpammerStore, logs *DetectionLogger) *SpammerRegistry {
	return &SpammerRegistry{store: store, logs: logs, now: time.Now}
}

// IsSpammer 用户是否为垃圾用户，匿名用户始终返回 false
func (r *SpammerRegistry) IsSpammer(ctx context.Context, userID *int64) (bool, error) {
	if userID == nil {
		return false, nil
	}
	return r.store.Exists(ctx, *userID)
}

// MarkSpammer 登记为垃圾用户，已登记时为无操作
func (r *SpammerRegistry) MarkSpammer(ctx context.Context, userID int64) error {
	return r.store.Mark(ctx, userID, r.now())
}

// SilentReject 当前用户为垃圾用户时记录拦截并返回 true
// 调用方应重定向到用户主页，不显示任何提示
func (r *SpammerRegistry) SilentReject(ctx context.Context, actor Actor, actionLabel string) (bool, error) {
	spammer, err := r.IsSpammer(ctx, actor.UserID)
	if err != nil || !spammer {
		return false, err
	}

	l := actor.log()
	l.Info().Str("action", actionLabel).Msg("[Spammer] Request silently rejected")

	r.logs.Record(ctx, DetectionEntry{
		Actor:       actor,
		Method:      model.DetectionMethodSpammer,
		ContentType: actionLabel,
	})
	return true, nil
}
