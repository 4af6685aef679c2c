package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Notification 站内通知，NotifierID 为触发者，NotifiedID 为接收者
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	NotifierID int64      `bun:"notifier_id,notnull" json:"notifierId"`
	NotifiedID int64      `bun:"notified_id,notnull" json:"notifiedId"`
	Path       string     `bun:"path,notnull" json:"path"`
	Body       string     `bun:"body,notnull" json:"body"`
	ReadAt     *time.Time `bun:"read_at" json:"readAt"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
