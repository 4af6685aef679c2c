package model

import (
	"time"

	"github.com/uptrace/bun"
)

// 已知设置键
const (
	SettingRecaptchaScoreThreshold = "recaptcha_score_threshold"
	SettingReadonlyModeEnabled     = "readonly_mode_enabled"
	SettingReadonlyModeExpiresAt   = "readonly_mode_expires_at"
)

// SystemSetting 系统设置（字符串键值对）
type SystemSetting struct {
	bun.BaseModel `bun:"table:system_settings,alias:ss"`

	ID    int64  `bun:"id,pk,autoincrement" json:"id"`
	Key   string `bun:"key,notnull,unique" json:"key"`
	Value string `bun:"value" json:"value"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
