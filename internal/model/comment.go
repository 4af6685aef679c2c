package model

import (
	"time"

	"github.com/uptrace/bun"
)

// ModeratedComment 两种评论共用的审核接口
type ModeratedComment interface {
	GetID() int64
	GetAuthorID() int64
	GetBody() string
	GetStatus() CommentStatus
	SetStatus(status CommentStatus)
	GetCreatedAt() time.Time
	Kind() CommentKind
}

// CardComment 卡片评论
type CardComment struct {
	bun.BaseModel `bun:"table:card_comments,alias:cc"`

	ID     int64         `bun:"id,pk,autoincrement" json:"id"`
	CardID int64         `bun:"card_id,notnull" json:"cardId"`
	UserID int64         `bun:"user_id,notnull" json:"userId"`
	Body   string        `bun:"body,notnull" json:"body" validate:"required"`
	Status CommentStatus `bun:"status,notnull,default:0" json:"status"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (c *CardComment) GetID() int64                   { return c.ID }
func (c *CardComment) GetAuthorID() int64             { return c.UserID }
func (c *CardComment) GetBody() string                { return c.Body }
func (c *CardComment) GetStatus() CommentStatus       { return c.Status }
func (c *CardComment) SetStatus(status CommentStatus) { c.Status = status }
func (c *CardComment) GetCreatedAt() time.Time        { return c.CreatedAt }
func (c *CardComment) Kind() CommentKind              { return CommentKindCard }

// ProjectComment 项目评论，正文最长 300 字
type ProjectComment struct {
	bun.BaseModel `bun:"table:project_comments,alias:pc"`

	ID        int64         `bun:"id,pk,autoincrement" json:"id"`
	ProjectID int64         `bun:"project_id,notnull" json:"projectId"`
	UserID    int64         `bun:"user_id,notnull" json:"userId"`
	Body      string        `bun:"body,notnull" json:"body" validate:"required,max=300"`
	Status    CommentStatus `bun:"status,notnull,default:0" json:"status"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (c *ProjectComment) GetID() int64                   { return c.ID }
func (c *ProjectComment) GetAuthorID() int64             { return c.UserID }
func (c *ProjectComment) GetBody() string                { return c.Body }
func (c *ProjectComment) GetStatus() CommentStatus       { return c.Status }
func (c *ProjectComment) SetStatus(status CommentStatus) { c.Status = status }
func (c *ProjectComment) GetCreatedAt() time.Time        { return c.CreatedAt }
func (c *ProjectComment) Kind() CommentKind              { return CommentKindProject }
