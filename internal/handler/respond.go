package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/repository"
	"github.com/gin-gonic/gin"
)

// FlashCookie 页面请求被拒绝时携带提示消息与原输入的 cookie
const FlashCookie = "fabble_flash"

// PolicyResponse 终端用户请求被拒绝时的 JSON 响应
type PolicyResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Code    errors.ErrorCode       `json:"code,omitempty"`
	Input   map[string]interface{} `json:"input,omitempty"`
}

// Flash 页面跳转后展示的提示
type Flash struct {
	Alert string                 `json:"alert,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

// wantsJSON 请求是否期望数据响应（XHR、JSON、JS），否则按页面导航处理
func wantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") || strings.Contains(accept, "javascript") {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// abortWithError 以 AppError 的统一格式输出错误
func abortWithError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = errors.NewInternalError("Internal server error").WithError(err)
	}
	if errors.HTTPStatus(appErr) >= http.StatusInternalServerError {
		logger.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(errors.HTTPStatus(appErr), appErr.ToResponse())
}

// rejectPolicy 策略拒绝：JSON 请求返回 status，页面请求带提示跳回来源页
func (h *Handler) rejectPolicy(c *gin.Context, status int, message string, code errors.ErrorCode, input map[string]interface{}) {
	if wantsJSON(c) {
		c.AbortWithStatusJSON(status, PolicyResponse{Error: message, Code: code, Input: input})
		return
	}
	setFlash(c, Flash{Alert: message, Input: input})
	c.Redirect(http.StatusFound, h.backPath(c))
	c.Abort()
}

// backPath 来源页路径，来源不可用时使用默认路径
func (h *Handler) backPath(c *gin.Context) string {
	ref := c.GetHeader("Referer")
	if ref == "" {
		return h.opts.FallbackPath
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != c.Request.Host) {
		return h.opts.FallbackPath
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

func setFlash(c *gin.Context, f Flash) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(FlashCookie, base64.RawURLEncoding.EncodeToString(data), 60, "/", "", false, true)
}

// ReadFlash 解码 flash cookie，测试与页面渲染使用
func ReadFlash(value string) (Flash, error) {
	var f Flash
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(data, &f)
	return f, err
}

// respondCreated 创建成功：JSON 请求返回 201，页面请求跳转到 location
func respondCreated(c *gin.Context, location string, body interface{}) {
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": body})
		return
	}
	c.Redirect(http.StatusFound, location)
}

// respondUpdated 更新成功
func respondUpdated(c *gin.Context, location string, body interface{}) {
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": body})
		return
	}
	c.Redirect(http.StatusFound, location)
}

// paramID 解析路径中的 ID
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, errors.NewInvalidRequest("Invalid "+name))
		return 0, false
	}
	return id, true
}

// pagination 解析 page 查询参数
func pagination(c *gin.Context, pageSize int) *repository.Pagination {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	return &repository.Pagination{Page: page, PageSize: pageSize}
}

// listResponse 分页列表响应
func listResponse(c *gin.Context, items interface{}, p *repository.Pagination) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"page":       p.Page,
			"pageSize":   p.PageSize,
			"total":      p.Total,
			"totalPages": p.TotalPages(),
			"hasMore":    p.HasMore(),
		},
	})
}
