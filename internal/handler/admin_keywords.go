package handler

import (
	"net/http"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/pkg/validator"
	"github.com/fabble/moderation/internal/repository"
	"github.com/gin-gonic/gin"
)

const keywordPageSize = 50

type keywordInput struct {
	Keyword string `json:"keyword" form:"keyword"`
	Enabled *bool  `json:"enabled" form:"enabled"`
}

// ListKeywords 关键词列表，按创建时间倒序
func (h *Handler) ListKeywords(c *gin.Context) {
	p := pagination(c, keywordPageSize)
	opts := &repository.ListOptions{Pagination: p, OrderBy: "created_at DESC"}

	keywords, err := h.deps.Keywords.List(c.Request.Context(), opts)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": keywords})
}

// CreateKeyword 新增关键词
func (h *Handler) CreateKeyword(c *gin.Context) {
	var in keywordInput
	if err := c.ShouldBind(&in); err != nil {
		abortWithError(c, errors.NewInvalidRequest("Invalid request body").WithError(err))
		return
	}

	keyword := &model.SpamKeyword{Keyword: in.Keyword, Enabled: true}
	if in.Enabled != nil {
		keyword.Enabled = *in.Enabled
	}
	if !h.saveKeyword(c, keyword, nil) {
		return
	}

	h.logKeywordOp(c, "create", keyword)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": keyword})
}

// UpdateKeyword 修改关键词
func (h *Handler) UpdateKeyword(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	keyword, err := h.deps.Keywords.GetByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	in := keywordInput{Keyword: keyword.Keyword}
	if err := c.ShouldBind(&in); err != nil {
		abortWithError(c, errors.NewInvalidRequest("Invalid request body").WithError(err))
		return
	}
	keyword.Keyword = in.Keyword
	if in.Enabled != nil {
		keyword.Enabled = *in.Enabled
	}
	if !h.saveKeyword(c, keyword, &id) {
		return
	}

	h.logKeywordOp(c, "update", keyword)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": keyword})
}

// DeleteKeyword 删除关键词
func (h *Handler) DeleteKeyword(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	keyword, err := h.deps.Keywords.GetByID(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := h.deps.Keywords.Delete(ctx, id); err != nil {
		abortWithError(c, err)
		return
	}
	h.invalidateKeywords(c)

	h.logKeywordOp(c, "destroy", keyword)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ToggleKeyword 切换启用状态
func (h *Handler) ToggleKeyword(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	keyword, err := h.deps.Keywords.GetByID(ctx, id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	keyword.Enabled = !keyword.Enabled
	if err := h.deps.Keywords.Update(ctx, keyword); err != nil {
		abortWithError(c, err)
		return
	}
	h.invalidateKeywords(c)

	op := "disable"
	if keyword.Enabled {
		op = "enable"
	}
	h.logKeywordOp(c, op, keyword)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": keyword})
}

// saveKeyword 校验并保存关键词，excludeID 非空时为更新
func (h *Handler) saveKeyword(c *gin.Context, keyword *model.SpamKeyword, excludeID *int64) bool {
	ctx := c.Request.Context()
	keyword.Normalize()

	if err := validator.Validate(keyword); err != nil {
		details := make(map[string]interface{})
		for k, v := range validator.ValidationErrors(err) {
			details[k] = v
		}
		abortWithError(c, errors.NewValidationError("Invalid keyword", errors.CodeInvalidFormat).WithDetails(details))
		return false
	}

	exists, err := h.deps.Keywords.ExistsByKeyword(ctx, keyword.Keyword, excludeID)
	if err != nil {
		abortWithError(c, err)
		return false
	}
	if exists {
		abortWithError(c, errors.NewValidationError("Keyword has already been taken", errors.CodeDuplicateValue))
		return false
	}

	if excludeID == nil {
		err = h.deps.Keywords.Create(ctx, keyword)
	} else {
		err = h.deps.Keywords.Update(ctx, keyword)
	}
	if err != nil {
		abortWithError(c, err)
		return false
	}

	h.invalidateKeywords(c)
	return true
}

// invalidateKeywords 清除关键词缓存，失败只记录日志，缓存会在 TTL 后自然过期
func (h *Handler) invalidateKeywords(c *gin.Context) {
	if err := h.deps.Matcher.InvalidateCache(c.Request.Context()); err != nil {
		logger.Warn().Err(err).Msg("[SpamKeywords] Failed to invalidate cache")
	}
}

func (h *Handler) logKeywordOp(c *gin.Context, op string, keyword *model.SpamKeyword) {
	logger.Info().
		Str("operation", op).
		Str("admin_id", adminID(c)).
		Int64("keyword_id", keyword.ID).
		Str("keyword", keyword.Keyword).
		Msg("[SpamKeywords] Admin operation")
}
