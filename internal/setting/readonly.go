package setting

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/logger"
)

// readonlyState 缓存中的只读模式开关
type readonlyState struct {
	Enabled bool `json:"enabled"`
}

// ReadonlyEnabled 只读模式是否开启，结果缓存
// 缓存未命中时若到期时间已过，会先关闭只读模式再返回 false
func (s *Store) ReadonlyEnabled(ctx context.Context) (bool, error) {
	var state readonlyState
	hit, err := s.cache.Get(ctx, ReadonlyCacheKey, &state)
	if err != nil {
		logger.Warn().Err(err).Str("key", ReadonlyCacheKey).Msg("Cache read failed")
	}
	if hit {
		return state.Enabled, nil
	}

	enabled, expiresAt, err := s.loadReadonly(ctx)
	if err != nil {
		return false, err
	}

	now := s.now()
	if enabled && Expired(expiresAt, now) {
		logger.Info().Time("expires_at", *expiresAt).Msg("[ReadonlyMode] Expired, disabling")
		if err := s.DisableReadonly(ctx); err != nil {
			return false, err
		}
		return false, nil
	}

	ttl := s.cfg.ReadonlyCacheTTL
	if enabled && expiresAt != nil {
		if remaining := expiresAt.Sub(now); remaining < ttl {
			ttl = remaining
		}
	}
	if err := s.cache.Set(ctx, ReadonlyCacheKey, readonlyState{Enabled: enabled}, ttl); err != nil {
		logger.Warn().Err(err).Str("key", ReadonlyCacheKey).Msg("Cache write failed")
	}
	return enabled, nil
}

// ReadonlyExpiresAt 只读模式到期时间，未设置时返回 nil
func (s *Store) ReadonlyExpiresAt(ctx context.Context) (*time.Time, error) {
	raw, err := s.Get(ctx, model.SettingReadonlyModeExpiresAt, "")
	if err != nil {
		return nil, err
	}
	return parseExpiry(raw), nil
}

// ReadonlyStored 不经缓存读取库中的开关与到期时间
func (s *Store) ReadonlyStored(ctx context.Context) (bool, *time.Time, error) {
	return s.loadReadonly(ctx)
}

// EnableReadonly 开启只读模式，expiresAt 为 nil 时需手动关闭
// 有到期时间时同时安排到期关闭任务
func (s *Store) EnableReadonly(ctx context.Context, expiresAt *time.Time) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.storeReadonly(ctx, true, expiresAt)
	})
	if err != nil {
		return err
	}
	s.afterReadonlyChange(ctx, true, expiresAt)
	return nil
}

// DisableReadonly 关闭只读模式并清除到期时间
func (s *Store) DisableReadonly(ctx context.Context) error {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		return s.storeReadonly(ctx, false, nil)
	})
	if err != nil {
		return err
	}
	s.afterReadonlyChange(ctx, false, nil)
	return nil
}

// Expired 到期时间已设置且不晚于 now
func Expired(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && !now.Before(*expiresAt)
}

func (s *Store) loadReadonly(ctx context.Context) (bool, *time.Time, error) {
	raw, err := s.Get(ctx, model.SettingReadonlyModeEnabled, "false")
	if err != nil {
		return false, nil, err
	}
	expiresAt, err := s.ReadonlyExpiresAt(ctx)
	if err != nil {
		return false, nil, err
	}
	return parseBool(raw), expiresAt, nil
}

func (s *Store) storeReadonly(ctx context.Context, enabled bool, expiresAt *time.Time) error {
	flag := "false"
	if enabled {
		flag = "true"
	}
	expiry := ""
	if enabled && expiresAt != nil {
		expiry = expiresAt.UTC().Format(time.RFC3339)
	}

	if err := s.Set(ctx, model.SettingReadonlyModeEnabled, flag); err != nil {
		return err
	}
	return s.Set(ctx, model.SettingReadonlyModeExpiresAt, expiry)
}

func (s *Store) afterReadonlyChange(ctx context.Context, enabled bool, expiresAt *time.Time) {
	if err := s.cache.Delete(ctx, ReadonlyCacheKey); err != nil {
		logger.Warn().Err(err).Str("key", ReadonlyCacheKey).Msg("Cache delete failed")
	}

	ev := logger.Info().Bool("enabled", enabled)
	if expiresAt != nil {
		ev = ev.Time("expires_at", *expiresAt)
	}
	ev.Msg("[ReadonlyMode] Updated")

	if !enabled || expiresAt == nil || s.scheduler == nil {
		return
	}
	if err := s.scheduler.ScheduleReadonlyDisable(ctx, *expiresAt); err != nil {
		logger.Error().Err(err).Time("run_at", *expiresAt).Msg("[ReadonlyMode] Failed to schedule disable job")
	}
}

func parseExpiry(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn().Str("value", raw).Msg("Invalid readonly mode expiry, ignoring")
		return nil
	}
	return &t
}
