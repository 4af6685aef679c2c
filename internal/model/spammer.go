package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Spammer 垃圾用户登记，存在记录即视为垃圾用户
type Spammer struct {
	bun.BaseModel `bun:"table:spammers,alias:sp"`

	ID         int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID     int64      `bun:"user_id,notnull" json:"userId"`
	User       *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	DetectedAt *time.Time `bun:"detected_at" json:"detectedAt"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
