package model

import (
	"encoding/json"
	"fmt"
)

// DetectionMethod 垃圾内容检测方式
type DetectionMethod string

const (
	DetectionMethodKeyword   DetectionMethod = "keyword"   // 关键词命中
	DetectionMethodSpammer   DetectionMethod = "spammer"   // 已认定的垃圾用户
	DetectionMethodRecaptcha DetectionMethod = "recaptcha" // reCAPTCHA 校验失败
)

// Valid 检查检测方式是否合法
func (m DetectionMethod) Valid() bool {
	switch m {
	case DetectionMethodKeyword, DetectionMethodSpammer, DetectionMethodRecaptcha:
		return true
	}
	return false
}

// CommentStatus 评论审核状态，数据库中以整数存储
type CommentStatus int16

const (
	CommentStatusUnconfirmed CommentStatus = 0 // 未确认
	CommentStatusApproved    CommentStatus = 1 // 已批准
	CommentStatusSpam        CommentStatus = 2 // 垃圾
)

var commentStatusNames = map[CommentStatus]string{
	CommentStatusUnconfirmed: "unconfirmed",
	CommentStatusApproved:    "approved",
	CommentStatusSpam:        "spam",
}

// String 返回状态名称
func (s CommentStatus) String() string {
	if name, ok := commentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("CommentStatus(%d)", int16(s))
}

// ParseCommentStatus 解析状态名称
func ParseCommentStatus(name string) (CommentStatus, error) {
	for status, n := range commentStatusNames {
		if n == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown comment status %q", name)
}

// MarshalJSON 以名称形式输出
func (s CommentStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON 从名称解析
func (s *CommentStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseCommentStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CommentKind 评论种类
type CommentKind string

const (
	CommentKindCard    CommentKind = "card_comment"
	CommentKindProject CommentKind = "project_comment"
)

// ContentType 检测日志中记录的内容种类名
func (k CommentKind) ContentType() string {
	switch k {
	case CommentKindCard:
		return "CardComment"
	case CommentKindProject:
		return "ProjectComment"
	}
	return string(k)
}

// OwnerType 项目所有者类型
type OwnerType string

const (
	OwnerTypeUser  OwnerType = "User"
	OwnerTypeGroup OwnerType = "Group"
)

// CardType 卡片类型
type CardType string

const (
	CardTypeState CardType = "state"
	CardTypeNote  CardType = "note"
	CardTypeUsage CardType = "usage"
)

// ContentType 检测日志中记录的内容种类名
func (t CardType) ContentType() string {
	switch t {
	case CardTypeState:
		return "State"
	case CardTypeNote:
		return "NoteCard"
	case CardTypeUsage:
		return "Usage"
	}
	return string(t)
}
