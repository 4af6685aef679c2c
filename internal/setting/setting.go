// Package setting 提供系统设置读写，以及建立在其上的 reCAPTCHA 阈值与只读模式
package setting

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fabble/moderation/internal/cache"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/pkg/validator"
	"github.com/fabble/moderation/internal/repository"
	"github.com/quagmt/udecimal"
)

// ReadonlyCacheKey 只读模式开关的缓存键
const ReadonlyCacheKey = "system_setting:readonly_mode"

// DefaultRecaptchaThreshold 未设置时的 reCAPTCHA 分数阈值
var DefaultRecaptchaThreshold = udecimal.MustParse("0.5")

// Repository 设置持久化
type Repository interface {
	Get(ctx context.Context, key string) (*model.SystemSetting, error)
	Upsert(ctx context.Context, key, value string) error
}

// DisableScheduler 安排在指定时间关闭只读模式
type DisableScheduler interface {
	ScheduleReadonlyDisable(ctx context.Context, at time.Time) error
}

// Config 设置配置
type Config struct {
	ReadonlyCacheTTL      time.Duration
	DefaultScoreThreshold udecimal.Decimal
}

// Store 系统设置
// 注意：ReadonlyEnabled 在缓存未命中且已过期时会写库关闭只读模式
type Store struct {
	repo      Repository
	cache     cache.Cache
	tx        repository.Transactor
	scheduler DisableScheduler
	cfg       Config
	now       func() time.Time
}

// NewStore 创建设置存储，scheduler 可为 nil
func NewStore(repo Repository, c cache.Cache, tx repository.Transactor, scheduler DisableScheduler, cfg Config) *Store {
	if cfg.ReadonlyCacheTTL <= 0 {
		cfg.ReadonlyCacheTTL = time.Minute
	}
	if cfg.DefaultScoreThreshold.IsZero() {
		cfg.DefaultScoreThreshold = DefaultRecaptchaThreshold
	}
	return &Store{
		repo:      repo,
		cache:     c,
		tx:        tx,
		scheduler: scheduler,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock 替换时钟
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get 读取设置，不存在时返回 def
func (s *Store) Get(ctx context.Context, key, def string) (string, error) {
	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, errors.ErrorTypeNotFound) {
			return def, nil
		}
		return "", err
	}
	return setting.Value, nil
}

// Set 写入设置，存在时覆盖
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.repo.Upsert(ctx, key, value)
}

// RecaptchaThreshold 当前 reCAPTCHA 分数阈值，存储值非法时返回默认值
func (s *Store) RecaptchaThreshold(ctx context.Context) (udecimal.Decimal, error) {
	raw, err := s.Get(ctx, model.SettingRecaptchaScoreThreshold, "")
	if err != nil {
		return udecimal.Zero, err
	}
	if raw == "" {
		return s.cfg.DefaultScoreThreshold, nil
	}

	threshold, err := udecimal.Parse(raw)
	if err != nil || !validator.IsScore(raw) {
		logger.Warn().Str("value", raw).Msg("Invalid recaptcha score threshold, using default")
		return s.cfg.DefaultScoreThreshold, nil
	}
	return threshold, nil
}

// SetRecaptchaThreshold 更新 reCAPTCHA 分数阈值，取值范围 0.0 到 1.0
func (s *Store) SetRecaptchaThreshold(ctx context.Context, raw string) error {
	if !validator.IsScore(raw) {
		return errors.NewValidationError("Recaptcha score threshold must be a number between 0.0 and 1.0", errors.CodeInvalidRange)
	}
	threshold := udecimal.MustParse(strings.TrimSpace(raw))
	return s.Set(ctx, model.SettingRecaptchaScoreThreshold, threshold.String())
}

// Update 管理端一次提交的设置
type Update struct {
	RecaptchaScoreThreshold string
	ReadonlyModeEnabled     bool
	ReadonlyModeExpiresAt   *time.Time
}

// Apply 在一个事务中保存阈值与只读模式
func (s *Store) Apply(ctx context.Context, u Update) error {
	var expiresAt *time.Time
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.SetRecaptchaThreshold(ctx, u.RecaptchaScoreThreshold); err != nil {
			return err
		}
		if !u.ReadonlyModeEnabled {
			return s.storeReadonly(ctx, false, nil)
		}
		expiresAt = u.ReadonlyModeExpiresAt
		return s.storeReadonly(ctx, true, expiresAt)
	})
	if err != nil {
		return err
	}

	s.afterReadonlyChange(ctx, u.ReadonlyModeEnabled, expiresAt)
	return nil
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}
