package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/repository"
	"github.com/fabble/moderation/internal/setting"
	"github.com/gin-gonic/gin"
)

const (
	detectionLogPageSize = 50
	spammerPageSize      = 100
	commentPageSize      = 100
)

// 管理端表单中日期时间的可接受格式，无时区的按 Options.Location 解析
var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime 解析时间，空串返回 nil
func (h *Handler) parseTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, raw, h.opts.Location)
		if err == nil {
			return &t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// ListDetectionLogs 检测日志，支持 method 与 user_id 过滤
func (h *Handler) ListDetectionLogs(c *gin.Context) {
	p := pagination(c, detectionLogPageSize)
	filter := repository.DetectionLogFilter{Pagination: p}

	if method := c.Query("method"); method != "" {
		m := model.DetectionMethod(method)
		if !m.Valid() {
			abortWithError(c, errors.NewInvalidRequest("Invalid detection method"))
			return
		}
		filter.Method = m
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			abortWithError(c, errors.NewInvalidRequest("Invalid user_id"))
			return
		}
		filter.UserID = &userID
	}

	ctx := c.Request.Context()
	logs, err := h.deps.DetectionLogs.List(ctx, filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	total, err := h.deps.DetectionLogs.Count(ctx, filter)
	if err != nil {
		abortWithError(c, err)
		return
	}
	p.Total = total

	listResponse(c, logs, p)
}

// ListSpammers 已登记的垃圾用户
func (h *Handler) ListSpammers(c *gin.Context) {
	opts := &repository.ListOptions{Pagination: pagination(c, spammerPageSize)}

	spammers, err := h.deps.SpammerAdmin.List(c.Request.Context(), opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": spammers})
}

// DeleteSpammer 解除垃圾用户登记
func (h *Handler) DeleteSpammer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.deps.SpammerAdmin.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}

	logger.Info().
		Str("admin_id", adminID(c)).
		Int64("spammer_id", id).
		Msg("[Spammers] Registration removed")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListComments 评论审核列表，status 可选
func (h *Handler) ListComments(kind CommentKindDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := pagination(c, commentPageSize)
		filter := repository.CommentFilter{Pagination: p}

		if raw := c.Query("status"); raw != "" {
			status, err := model.ParseCommentStatus(raw)
			if err != nil {
				abortWithError(c, errors.NewInvalidRequest("Invalid status"))
				return
			}
			filter.Status = &status
		}

		ctx := c.Request.Context()
		comments, err := kind.Lister.List(ctx, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		total, err := kind.Lister.Count(ctx, filter)
		if err != nil {
			abortWithError(c, err)
			return
		}
		p.Total = total

		listResponse(c, comments, p)
	}
}

// CommentAction 单条评论的状态迁移
func (h *Handler) CommentAction(kind CommentKindDeps, fn func(*moderation.CommentModerator, context.Context, int64) (model.ModeratedComment, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		comment, err := fn(kind.Moderator, c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": comment})
	}
}

// SpamBatch 将 before 及之前的未确认评论全部标记为垃圾
func (h *Handler) SpamBatch(kind CommentKindDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("before")
		if raw == "" {
			raw = c.PostForm("before")
		}
		cutoff, err := h.parseTime(raw)
		if err != nil || cutoff == nil {
			abortWithError(c, errors.NewInvalidRequest("before must be a valid time"))
			return
		}

		count, err := kind.Moderator.SpamBatch(c.Request.Context(), *cutoff)

		logger.Info().
			Str("admin_id", adminID(c)).
			Str("kind", string(kind.Moderator.Kind())).
			Time("before", *cutoff).
			Int("count", count).
			Msg("[Comments] Spam batch")

		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
	}
}

// DestroyProject 将单个项目认定为垃圾
func (h *Handler) DestroyProject(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	project, err := h.deps.Projects.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result := h.deps.Designation.Call(c.Request.Context(), []*model.Project{project})
	h.logDesignation(c, result)

	if msg, failed := result.Errors[project.ID]; failed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": msg, "code": errors.CodeOperationFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type batchSpamInput struct {
	ProjectIDs []int64 `json:"projectIds" form:"project_ids[]"`
}

// BatchSpamProjects 批量认定垃圾项目，单个失败不影响其他项目
func (h *Handler) BatchSpamProjects(c *gin.Context) {
	var in batchSpamInput
	if err := c.ShouldBind(&in); err != nil {
		abortWithError(c, errors.NewInvalidRequest("Invalid request body").WithError(err))
		return
	}
	if len(in.ProjectIDs) == 0 {
		abortWithError(c, errors.NewInvalidRequest("project_ids is required"))
		return
	}

	projects, err := h.deps.Projects.GetByIDs(c.Request.Context(), in.ProjectIDs)
	if err != nil {
		abortWithError(c, err)
		return
	}

	result := h.deps.Designation.Call(c.Request.Context(), projects)
	h.logDesignation(c, result)

	c.JSON(http.StatusOK, gin.H{
		"success": result.SuccessCount,
		"failed":  result.FailedIDs(),
		"errors":  result.Errors,
	})
}

func (h *Handler) logDesignation(c *gin.Context, result *moderation.DesignationResult) {
	logger.Info().
		Str("admin_id", adminID(c)).
		Int("success", result.SuccessCount).
		Ints64("failed", result.FailedIDs()).
		Msg("[Projects] Spam designation")
}

// settingsView 系统设置的展示形式
type settingsView struct {
	RecaptchaScoreThreshold string  `json:"recaptchaScoreThreshold"`
	ReadonlyModeEnabled     bool    `json:"readonlyModeEnabled"`
	ReadonlyModeExpiresAt   *string `json:"readonlyModeExpiresAt"`
	RecaptchaEnabled        bool    `json:"recaptchaEnabled"`
}

// GetSettings 读取系统设置
func (h *Handler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	threshold, err := h.deps.Settings.RecaptchaThreshold(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	enabled, expiresAt, err := h.deps.Settings.ReadonlyStored(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	view := settingsView{
		RecaptchaScoreThreshold: threshold.String(),
		ReadonlyModeEnabled:     enabled,
		RecaptchaEnabled:        h.deps.Recaptcha.Enabled(),
	}
	if expiresAt != nil {
		s := expiresAt.In(h.opts.Location).Format(time.RFC3339)
		view.ReadonlyModeExpiresAt = &s
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": view})
}

// scoreInput 接受数字或字符串形式的阈值
type scoreInput string

// UnmarshalJSON 保留数字的原始文本
func (s *scoreInput) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = scoreInput(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = scoreInput(num.String())
	return nil
}

type settingsInput struct {
	RecaptchaScoreThreshold scoreInput `json:"recaptchaScoreThreshold" form:"recaptcha_score_threshold"`
	ReadonlyModeEnabled     bool       `json:"readonlyModeEnabled" form:"readonly_mode_enabled"`
	ReadonlyModeExpiresAt   string     `json:"readonlyModeExpiresAt" form:"readonly_mode_expires_at"`
}

// UpdateSettings 保存系统设置，校验失败时回显提交的值
func (h *Handler) UpdateSettings(c *gin.Context) {
	var in settingsInput
	if err := c.ShouldBind(&in); err != nil {
		abortWithError(c, errors.NewInvalidRequest("Invalid request body").WithError(err))
		return
	}
	echo := map[string]interface{}{
		"recaptchaScoreThreshold": string(in.RecaptchaScoreThreshold),
		"readonlyModeEnabled":     in.ReadonlyModeEnabled,
		"readonlyModeExpiresAt":   in.ReadonlyModeExpiresAt,
	}

	update := setting.Update{
		RecaptchaScoreThreshold: string(in.RecaptchaScoreThreshold),
		ReadonlyModeEnabled:     in.ReadonlyModeEnabled,
	}
	if in.ReadonlyModeEnabled {
		expiresAt, err := h.parseTime(in.ReadonlyModeExpiresAt)
		if err != nil {
			abortWithError(c, errors.NewValidationError("Readonly mode expires at is invalid", errors.CodeInvalidFormat).WithDetails(echo))
			return
		}
		update.ReadonlyModeExpiresAt = expiresAt
	}

	if err := h.deps.Settings.Apply(c.Request.Context(), update); err != nil {
		if appErr, ok := errors.As(err); ok && appErr.HTTPStatus == http.StatusUnprocessableEntity {
			abortWithError(c, appErr.WithDetails(echo))
			return
		}
		abortWithError(c, err)
		return
	}

	logger.Info().
		Str("admin_id", adminID(c)).
		Str("recaptcha_score_threshold", string(in.RecaptchaScoreThreshold)).
		Bool("readonly_mode_enabled", in.ReadonlyModeEnabled).
		Msg("[SystemSettings] Updated")

	h.GetSettings(c)
}
