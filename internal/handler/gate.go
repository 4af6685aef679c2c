package handler

import (
	"net/http"

	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ReadonlyModeMessage 只读模式下的固定提示
const ReadonlyModeMessage = "The site is currently in maintenance mode. Posting and editing are temporarily unavailable."

// ReadonlyGate 只读模式开启时拒绝写请求，不执行后续处理
func (h *Handler) ReadonlyGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		enabled, err := h.deps.Settings.ReadonlyEnabled(c.Request.Context())
		if err != nil {
			logger.Error().Err(err).Msg("[ReadonlyMode] Failed to read setting")
			c.Next()
			return
		}
		if !enabled {
			c.Next()
			return
		}

		actor := actorFrom(c)
		ev := logger.Warn()
		if actor.UserID != nil {
			ev = ev.Int64("user_id", *actor.UserID)
		} else {
			ev = ev.Str("user_id", "anonymous")
		}
		ev.Str("ip", actor.IP).
			Str("path", c.Request.URL.Path).
			Msg("[ReadonlyMode] Request rejected")
		metrics.ReadonlyRejectionsTotal.Inc()

		h.rejectPolicy(c, http.StatusServiceUnavailable, ReadonlyModeMessage, errors.CodeReadonlyMode, nil)
	}
}

// screening 一次写请求的审核参数
type screening struct {
	// ContentType 检测日志中的内容种类
	ContentType string
	// SilentReject 对垃圾用户静默拒绝；评论不拒绝，由 CommentModerator 直接归为垃圾
	SilentReject bool
	// RecaptchaAction 非空时进行 reCAPTCHA 校验（仅创建操作）
	RecaptchaAction string
	// Contents 关键词检测的文本
	Contents []string
	// Input 被拒绝时回显的原输入
	Input map[string]interface{}
}

// screen 依次执行垃圾用户静默拒绝、reCAPTCHA 与关键词检测
// 返回 false 时已写出响应，调用方应直接返回
func (h *Handler) screen(c *gin.Context, s screening) bool {
	ctx := c.Request.Context()
	actor := actorFrom(c)

	if s.SilentReject {
		rejected, err := h.deps.Spammers.SilentReject(ctx, actor, s.ContentType)
		if err != nil {
			abortWithError(c, err)
			return false
		}
		if rejected {
			h.redirectToProfile(c, actor)
			return false
		}
	}

	if s.RecaptchaAction != "" {
		token := c.PostForm(h.opts.TokenField + "[" + s.RecaptchaAction + "]")
		if token == "" {
			token = c.GetHeader("X-Recaptcha-Token")
		}
		result := h.deps.Recaptcha.VerifyAndRecord(ctx, actor, token, s.RecaptchaAction, s.ContentType)
		if !result.Success {
			code := errors.CodeRecaptchaFailed
			if result.FailureReason == moderation.RecaptchaReasonTokenMissing {
				code = errors.CodeRecaptchaTokenMissing
			}
			h.rejectPolicy(c, http.StatusUnprocessableEntity, result.ErrorMessage, code, s.Input)
			return false
		}
	}

	detected, err := h.deps.Matcher.DetectWithLogging(ctx, actor, s.ContentType, s.Contents...)
	if err != nil {
		abortWithError(c, err)
		return false
	}
	if detected != nil {
		h.rejectPolicy(c, http.StatusUnprocessableEntity, h.deps.Matcher.RejectionMessage(detected), errors.CodeSpamKeyword, s.Input)
		return false
	}
	return true
}

// redirectToProfile 静默拒绝：跳转到用户自己的主页，不带任何提示
func (h *Handler) redirectToProfile(c *gin.Context, actor moderation.Actor) {
	location := h.opts.FallbackPath
	if actor.UserID != nil {
		if user, err := h.deps.Users.GetByID(c.Request.Context(), *actor.UserID); err == nil {
			location = user.ProfilePath()
		}
	}
	c.Redirect(http.StatusFound, location)
	c.Abort()
}
