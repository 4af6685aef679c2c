// Package moderation 实现垃圾内容审核流水线：关键词检测、垃圾用户静默拒绝、
// 评论审核状态机、垃圾认定级联处理与 reCAPTCHA 分数校验
package moderation

import (
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/rs/zerolog"
)

// Actor 发起请求的用户与来源 IP，UserID 为空表示匿名
type Actor struct {
	UserID *int64
	IP     string
}

// Anonymous 是否匿名
func (a Actor) Anonymous() bool {
	return a.UserID == nil
}

// log 返回带用户 ID 的日志
func (a Actor) log() zerolog.Logger {
	return logger.WithUserID(a.UserID)
}

func ptr[T any](v T) *T {
	return &v
}
