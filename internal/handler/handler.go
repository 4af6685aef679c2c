// Package handler 提供 HTTP 接口：终端用户的写操作（经过审核闸门）与管理端审核 API
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/pkg/utils"
	"github.com/fabble/moderation/internal/repository"
	"github.com/fabble/moderation/internal/setting"
	"github.com/gin-gonic/gin"
)

// UserStore 用户查询
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetOwner(ctx context.Context, ownerType model.OwnerType, ownerID int64) (model.Owner, error)
}

// ProjectStore 项目读写
type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*model.Project, error)
	Update(ctx context.Context, project *model.Project) error
}

// CardStore 卡片读写
type CardStore interface {
	Create(ctx context.Context, card *model.Card) error
	GetByID(ctx context.Context, id int64) (*model.Card, error)
	Update(ctx context.Context, card *model.Card) error
}

// KeywordStore 关键词管理
type KeywordStore interface {
	Create(ctx context.Context, keyword *model.SpamKeyword) error
	GetByID(ctx context.Context, id int64) (*model.SpamKeyword, error)
	Update(ctx context.Context, keyword *model.SpamKeyword) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, opts *repository.ListOptions) ([]*model.SpamKeyword, error)
	ExistsByKeyword(ctx context.Context, keyword string, excludeID *int64) (bool, error)
}

// DetectionLogLister 检测日志查询
type DetectionLogLister interface {
	List(ctx context.Context, filter repository.DetectionLogFilter) ([]*model.SpamDetectionLog, error)
	Count(ctx context.Context, filter repository.DetectionLogFilter) (int, error)
}

// SpammerAdmin 垃圾用户登记管理
type SpammerAdmin interface {
	List(ctx context.Context, opts *repository.ListOptions) ([]*model.Spammer, error)
	Delete(ctx context.Context, id int64) error
}

// CommentLister 评论列表查询
type CommentLister interface {
	New() model.ModeratedComment
	List(ctx context.Context, filter repository.CommentFilter) ([]model.ModeratedComment, error)
	Count(ctx context.Context, filter repository.CommentFilter) (int, error)
}

// CommentKindDeps 单一评论种类的依赖
type CommentKindDeps struct {
	Lister    CommentLister
	Moderator *moderation.CommentModerator
}

// Deps 处理器依赖
type Deps struct {
	Users         UserStore
	Projects      ProjectStore
	Cards         CardStore
	Keywords      KeywordStore
	DetectionLogs DetectionLogLister
	SpammerAdmin  SpammerAdmin
	CardComments  CommentKindDeps
	ProjComments  CommentKindDeps

	Settings    *setting.Store
	Spammers    *moderation.SpammerRegistry
	Recaptcha   *moderation.RecaptchaGate
	Matcher     *moderation.KeywordMatcher
	Designation *moderation.SpamDesignationService

	// HealthChecks 健康检查项，名称到检查函数
	HealthChecks map[string]func(ctx context.Context) error
}

// Options 处理器选项
type Options struct {
	AdminToken   string
	UserHeader   string
	TokenField   string
	Location     *time.Location
	FallbackPath string
}

// Handler HTTP 处理器集合
type Handler struct {
	deps Deps
	opts Options
}

// New 创建处理器
func New(deps Deps, opts Options) *Handler {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	if opts.TokenField == "" {
		opts.TokenField = "g-recaptcha-response-data"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.FallbackPath == "" {
		opts.FallbackPath = "/"
	}
	return &Handler{deps: deps, opts: opts}
}

// NewRouter 创建路由
func (h *Handler) NewRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(h.ResolveActor())

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	h.registerContent(router.Group("/", h.ReadonlyGate()))
	h.registerAdmin(router.Group("/admin", h.AdminAuth()))

	return router
}

func (h *Handler) registerContent(g *gin.RouterGroup) {
	g.POST("/projects", h.CreateProject)
	g.PATCH("/projects/:id", h.UpdateProject)
	g.POST("/projects/:id/comments", h.CreateProjectComment)
	g.POST("/cards/:id/comments", h.CreateCardComment)

	for _, cardType := range []model.CardType{model.CardTypeState, model.CardTypeNote, model.CardTypeUsage} {
		plural := cardPaths[cardType]
		g.POST("/projects/:id/"+plural, h.CreateCard(cardType))
		g.PATCH("/"+plural+"/:id", h.UpdateCard(cardType))
	}
}

func (h *Handler) registerAdmin(g *gin.RouterGroup) {
	g.GET("/spam_keywords", h.ListKeywords)
	g.POST("/spam_keywords", h.CreateKeyword)
	g.PUT("/spam_keywords/:id", h.UpdateKeyword)
	g.DELETE("/spam_keywords/:id", h.DeleteKeyword)
	g.POST("/spam_keywords/:id/toggle", h.ToggleKeyword)

	g.GET("/spam_detection_logs", h.ListDetectionLogs)

	g.GET("/spammers", h.ListSpammers)
	g.DELETE("/spammers/:id", h.DeleteSpammer)

	for path, kind := range map[string]CommentKindDeps{
		"card_comments":    h.deps.CardComments,
		"project_comments": h.deps.ProjComments,
	} {
		cg := g.Group("/" + path)
		cg.GET("", h.ListComments(kind))
		cg.POST("/spam_batch", h.SpamBatch(kind))
		cg.POST("/:id/approval", h.CommentAction(kind, (*moderation.CommentModerator).Approve))
		cg.DELETE("/:id/approval", h.CommentAction(kind, (*moderation.CommentModerator).Unapprove))
		cg.POST("/:id/spam", h.CommentAction(kind, (*moderation.CommentModerator).MarkSpam))
		cg.DELETE("/:id/spam", h.CommentAction(kind, (*moderation.CommentModerator).UnmarkSpam))
	}

	g.DELETE("/projects/:id", h.DestroyProject)
	g.POST("/projects/batch_spam", h.BatchSpamProjects)

	g.GET("/system_settings", h.GetSettings)
	g.PUT("/system_settings", h.UpdateSettings)
}

// RequestIDHeader 请求 ID 头，上游未提供时生成
const RequestIDHeader = "X-Request-ID"

// RequestLogger 请求日志中间件
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		c.Header(RequestIDHeader, requestID)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		log := logger.WithRequestID(requestID)
		log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("Request")
	}
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	body := gin.H{"status": "healthy"}

	for name, check := range h.deps.HealthChecks {
		if err := check(ctx); err != nil {
			body["status"] = "unhealthy"
			body[name] = "disconnected"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body[name] = "connected"
	}

	c.JSON(http.StatusOK, body)
}
