package model

import (
	"time"

	"github.com/uptrace/bun"
)

// User 用户模型
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID      int64 `bun:"id,pk,autoincrement" json:"id"`
	Name    string `bun:"name,notnull" json:"name"`
	Email   string `bun:"email" json:"email,omitempty"`
	IsAdmin bool   `bun:"is_admin,notnull,default:false" json:"isAdmin"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// ProfilePath 用户主页路径，静默拒绝时重定向到这里
func (u *User) ProfilePath() string {
	return "/" + u.Name
}

// Group 小组模型
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	// Members 当前成员，由 repository 加载
	Members []*User `bun:"-" json:"members,omitempty"`
}

// GroupMember 小组成员关系
type GroupMember struct {
	bun.BaseModel `bun:"table:group_members,alias:gm"`

	ID      int64 `bun:"id,pk,autoincrement" json:"id"`
	GroupID int64 `bun:"group_id,notnull" json:"groupId"`
	UserID  int64 `bun:"user_id,notnull" json:"userId"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
