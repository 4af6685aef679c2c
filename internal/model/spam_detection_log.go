package model

import (
	"time"

	"github.com/uptrace/bun"
)

// SpamDetectionLog 垃圾内容拦截审计日志，只追加不修改
type SpamDetectionLog struct {
	bun.BaseModel `bun:"table:spam_detection_logs,alias:sdl"`

	ID              int64           `bun:"id,pk,autoincrement" json:"id"`
	UserID          *int64          `bun:"user_id" json:"userId"`
	User            *User           `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	IPAddress       string          `bun:"ip_address,notnull" json:"ipAddress"`
	DetectionMethod DetectionMethod `bun:"detection_method,notnull" json:"detectionMethod"`
	ContentType     string          `bun:"content_type,notnull" json:"contentType"`
	DetectionReason *string         `bun:"detection_reason" json:"detectionReason"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
