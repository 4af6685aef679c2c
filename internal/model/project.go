package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Project 项目模型
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	OwnerType   OwnerType `bun:"owner_type,notnull" json:"ownerType"`
	OwnerID     int64     `bun:"owner_id,notnull" json:"ownerId"`
	Name        string    `bun:"name,notnull" json:"name"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	IsPrivate   bool      `bun:"is_private,notnull,default:false" json:"isPrivate"`
	IsDeleted   bool      `bun:"is_deleted,notnull,default:false" json:"isDeleted"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// DeletedProjectTitle 垃圾认定后项目的占位标题
const DeletedProjectTitle = "Deleted Project"

// Owner 项目所有者：个人或小组
type Owner interface {
	// Members 返回所有者对应的用户（个人为自身，小组为当前全部成员）
	Members() []*User
	// Path 所有者主页路径
	Path() string

	owner()
}

// Individual 个人所有者
type Individual struct {
	User *User
}

// Members 返回个人自身
func (o Individual) Members() []*User {
	if o.User == nil {
		return nil
	}
	return []*User{o.User}
}

// Path 个人主页路径
func (o Individual) Path() string {
	return o.User.ProfilePath()
}

func (Individual) owner() {}

// GroupOwner 小组所有者
type GroupOwner struct {
	Group *Group
}

// Members 返回小组当前成员
func (o GroupOwner) Members() []*User {
	if o.Group == nil {
		return nil
	}
	return o.Group.Members
}

// Path 小组主页路径
func (o GroupOwner) Path() string {
	return "/" + o.Group.Name
}

func (GroupOwner) owner() {}

// Card 卡片模型（状态卡、笔记卡、用法卡共用一张表）
type Card struct {
	bun.BaseModel `bun:"table:cards,alias:c"`

	ID          int64    `bun:"id,pk,autoincrement" json:"id"`
	ProjectID   int64    `bun:"project_id,notnull" json:"projectId"`
	CardType    CardType `bun:"card_type,notnull" json:"cardType"`
	Title       string   `bun:"title" json:"title"`
	Description string   `bun:"description" json:"description"`
	Position    int      `bun:"position,notnull,default:0" json:"position"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Like 点赞
type Like struct {
	bun.BaseModel `bun:"table:likes,alias:l"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	ProjectID int64     `bun:"project_id,notnull" json:"projectId"`
	UserID    int64     `bun:"user_id,notnull" json:"userId"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Figure 项目图片
type Figure struct {
	bun.BaseModel `bun:"table:figures,alias:f"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	ProjectID int64     `bun:"project_id,notnull" json:"projectId"`
	File      string    `bun:"file" json:"file"`
	Position  int       `bun:"position,notnull,default:0" json:"position"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Tag 项目标签
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	ProjectID int64     `bun:"project_id,notnull" json:"projectId"`
	UserID    *int64    `bun:"user_id" json:"userId"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Collaboration 项目协作者
type Collaboration struct {
	bun.BaseModel `bun:"table:collaborations,alias:co"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	ProjectID int64     `bun:"project_id,notnull" json:"projectId"`
	OwnerType OwnerType `bun:"owner_type,notnull" json:"ownerType"`
	OwnerID   int64     `bun:"owner_id,notnull" json:"ownerId"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}
