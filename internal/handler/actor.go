package handler

import (
	"crypto/subtle"
	"strconv"
	"strings"

	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/gin-gonic/gin"
)

const actorKey = "moderation.actor"

// ResolveActor 从上游网关写入的请求头解析当前用户
// 请求头缺失或非法时视为匿名
func (h *Handler) ResolveActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := moderation.Actor{IP: c.ClientIP()}
		if raw := strings.TrimSpace(c.GetHeader(h.opts.UserHeader)); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				actor.UserID = &id
			}
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// actorFrom 返回当前请求的用户
func actorFrom(c *gin.Context) moderation.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(moderation.Actor); ok {
			return actor
		}
	}
	return moderation.Actor{IP: c.ClientIP()}
}

// AdminAuth 管理端 Bearer 令牌认证
func (h *Handler) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if h.opts.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.AdminToken)) != 1 {
			abortWithError(c, errors.NewAuthenticationError("Invalid admin token", errors.CodeInvalidToken))
			return
		}
		c.Next()
	}
}

// adminID 操作日志中记录的管理员标识
func adminID(c *gin.Context) string {
	if actor := actorFrom(c); actor.UserID != nil {
		return strconv.FormatInt(*actor.UserID, 10)
	}
	return "token"
}
