// Package app 组装配置、存储与审核服务，供 server 与 modctl 共用
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/cache"
	"github.com/fabble/moderation/internal/config"
	"github.com/fabble/moderation/internal/database"
	"github.com/fabble/moderation/internal/handler"
	"github.com/fabble/moderation/internal/i18n"
	"github.com/fabble/moderation/internal/jobs"
	"github.com/fabble/moderation/internal/messaging"
	"github.com/fabble/moderation/internal/moderation"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/pkg/reporter"
	"github.com/fabble/moderation/internal/repository"
	"github.com/fabble/moderation/internal/setting"
	"github.com/quagmt/udecimal"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

// App 进程内共享的依赖
type App struct {
	Config *config.Config

	DB       *bun.DB
	Redis    *redis.Client // Redis 未启用时为 nil
	Repos    *repository.Factory
	Reporter reporter.Reporter

	Settings      *setting.Store
	Queue         *jobs.Queue // Redis 未启用时为 nil
	Matcher       *moderation.KeywordMatcher
	Spammers      *moderation.SpammerRegistry
	Recaptcha     *moderation.RecaptchaGate
	CardComments  *moderation.CommentModerator
	ProjComments  *moderation.CommentModerator
	Designation   *moderation.SpamDesignationService
	DetectionLogs *moderation.DetectionLogger
	Translator    *i18n.Translator
	location      *time.Location
	closers       []func()
}

// New 连接存储并创建服务
func New(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	rep, err := reporter.New(reporter.Config{DSN: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment})
	if err != nil {
		return nil, fmt.Errorf("init reporter: %w", err)
	}
	a.Reporter = rep

	if cfg.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL()); err != nil {
			return nil, err
		}
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() { _ = database.ClosePostgres(db) })

	var c cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = database.CloseRedis(rdb) })
		c = cache.NewRedisCache(rdb, "moderation:")
		a.Queue = jobs.NewQueue(rdb, cfg.Jobs.QueueKey)
	} else {
		logger.Warn().Msg("Redis disabled, using in-process cache without scheduled jobs")
	}

	var events moderation.DetectionEventSink
	if cfg.NATS.Enabled {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		client, err := messaging.NewNATSClient(natsCfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		events = messaging.NewEventPublisher(client, cfg.NATS.Subject)
	}

	translator, err := i18n.New(cfg.App.Locale)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Translator = translator

	loc, err := time.LoadLocation(repository.ValidateTimezone(cfg.Timezone))
	if err != nil {
		loc = time.UTC
	}
	a.location = loc

	threshold, err := udecimal.Parse(cfg.Moderation.DefaultScoreThreshold)
	if err != nil {
		threshold = setting.DefaultRecaptchaThreshold
	}

	repos := repository.NewFactory(db)
	a.Repos = repos
	tx := repos.Transactor()

	var scheduler setting.DisableScheduler
	if a.Queue != nil {
		scheduler = a.Queue
	}
	a.Settings = setting.NewStore(repos.SystemSetting(), c, tx, scheduler, setting.Config{
		ReadonlyCacheTTL:      cfg.Moderation.ReadonlyCacheTTL,
		DefaultScoreThreshold: threshold,
	})

	a.DetectionLogs = moderation.NewDetectionLogger(repos.SpamDetectionLog(), events)
	a.Spammers = moderation.NewSpammerRegistry(repos.Spammer(), a.DetectionLogs)
	a.Matcher = moderation.NewKeywordMatcher(repos.SpamKeyword(), c, a.DetectionLogs, translator, moderation.KeywordMatcherConfig{
		CacheTTL:      cfg.Moderation.KeywordCacheTTL,
		SnippetLength: cfg.Moderation.SnippetLength,
	})
	a.Recaptcha = moderation.NewRecaptchaGate(moderation.RecaptchaConfig{
		SiteKey:   cfg.Recaptcha.SiteKey,
		SecretKey: cfg.Recaptcha.SecretKey,
		VerifyURL: cfg.Recaptcha.VerifyURL,
		Timeout:   cfg.Recaptcha.Timeout,
	}, a.Settings, a.DetectionLogs, rep, translator)
	a.CardComments = moderation.NewCommentModerator(repos.CardComment(), repos.Notification(), a.Spammers, tx)
	a.ProjComments = moderation.NewCommentModerator(repos.ProjectComment(), repos.Notification(), a.Spammers, tx)
	a.Designation = moderation.NewSpamDesignationService(repos.User(), repos.Project(), a.Spammers, tx, translator)

	return a, nil
}

// Handler 创建 HTTP 处理器
func (a *App) Handler() *handler.Handler {
	repos := a.Repos
	checks := map[string]func(ctx context.Context) error{
		"database": a.DB.PingContext,
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}

	return handler.New(handler.Deps{
		Users:         repos.User(),
		Projects:      repos.Project(),
		Cards:         repos.Card(),
		Keywords:      repos.SpamKeyword(),
		DetectionLogs: repos.SpamDetectionLog(),
		SpammerAdmin:  repos.Spammer(),
		CardComments:  handler.CommentKindDeps{Lister: repos.CardComment(), Moderator: a.CardComments},
		ProjComments:  handler.CommentKindDeps{Lister: repos.ProjectComment(), Moderator: a.ProjComments},
		Settings:      a.Settings,
		Spammers:      a.Spammers,
		Recaptcha:     a.Recaptcha,
		Matcher:       a.Matcher,
		Designation:   a.Designation,
		HealthChecks:  checks,
	}, handler.Options{
		AdminToken: a.Config.Auth.AdminToken,
		UserHeader: a.Config.Auth.UserHeader,
		TokenField: a.Config.Recaptcha.TokenField,
		Location:   a.location,
	})
}

// Worker 创建后台任务 worker，Redis 未启用时返回 nil
func (a *App) Worker() *jobs.Worker {
	if a.Queue == nil {
		return nil
	}
	w := jobs.NewWorker(a.Queue, jobs.WorkerConfig{
		PollInterval: a.Config.Jobs.PollInterval,
		BatchSize:    a.Config.Jobs.BatchSize,
	})
	w.Register(jobs.JobDisableReadonlyMode, jobs.DisableReadonlyMode(a.Settings, time.Now))
	return w
}

// Location 管理端时间的默认时区
func (a *App) Location() *time.Location {
	return a.location
}

// Close 按创建的逆序释放连接并刷新上报
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.Reporter != nil {
		a.Reporter.Flush(2 * time.Second)
	}
}
