package repository

import (
	"sync"

	"github.com/uptrace/bun"
)

// Factory Repository 工厂（依赖注入容器）
// 使用 sync.Once 保证并发安全的懒加载
type Factory struct {
	db *bun.DB

	// 缓存的 Repository 实例（懒加载）
	userRepo           UserRepository
	userRepoOnce       sync.Once
	keywordRepo        SpamKeywordRepository
	keywordOnce        sync.Once
	detectionLogRepo   SpamDetectionLogRepository
	detectionLogOnce   sync.Once
	spammerRepo        SpammerRepository
	spammerOnce        sync.Once
	cardCommentRepo    CommentRepository
	cardCommentOnce    sync.Once
	projectCommentRepo CommentRepository
	projectCommentOnce sync.Once
	notificationRepo   NotificationRepository
	notificationOnce   sync.Once
	projectRepo        ProjectRepository
	projectOnce        sync.Once
	cardRepo           CardRepository
	cardOnce           sync.Once
	settingRepo        SystemSettingRepository
	settingOnce        sync.Once
	transactor         Transactor
	transactorOnce     sync.Once
}

// NewFactory 创建 Repository 工厂
func NewFactory(db *bun.DB) *Factory {
	return &Factory{db: db}
}

// User 获取 User Repository（并发安全）
func (f *Factory) User() UserRepository {
	f.userRepoOnce.Do(func() {
		f.userRepo = NewUserRepository(f.db)
	})
	return f.userRepo
}

// SpamKeyword 获取 SpamKeyword Repository（并发安全）
func (f *Factory) SpamKeyword() SpamKeywordRepository {
	f.keywordOnce.Do(func() {
		f.keywordRepo = NewSpamKeywordRepository(f.db)
	})
	return f.keywordRepo
}

// SpamDetectionLog 获取 SpamDetectionLog Repository（并发安全）
func (f *Factory) SpamDetectionLog() SpamDetectionLogRepository {
	f.detectionLogOnce.Do(func() {
		f.detectionLogRepo = NewSpamDetectionLogRepository(f.db)
	})
	return f.detectionLogRepo
}

// Spammer 获取 Spammer Repository（并发安全）
func (f *Factory) Spammer() SpammerRepository {
	f.spammerOnce.Do(func() {
		f.spammerRepo = NewSpammerRepository(f.db)
	})
	return f.spammerRepo
}

// CardComment 获取卡片评论 Repository（并发安全）
func (f *Factory) CardComment() CommentRepository {
	f.cardCommentOnce.Do(func() {
		f.cardCommentRepo = NewCardCommentRepository(f.db)
	})
	return f.cardCommentRepo
}

// ProjectComment 获取项目评论 Repository（并发安全）
func (f *Factory) ProjectComment() CommentRepository {
	f.projectCommentOnce.Do(func() {
		f.projectCommentRepo = NewProjectCommentRepository(f.db)
	})
	return f.projectCommentRepo
}

// Notification 获取 Notification Repository（并发安全）
func (f *Factory) Notification() NotificationRepository {
	f.notificationOnce.Do(func() {
		f.notificationRepo = NewNotificationRepository(f.db)
	})
	return f.notificationRepo
}

// Project 获取 Project Repository（并发安全）
func (f *Factory) Project() ProjectRepository {
	f.projectOnce.Do(func() {
		f.projectRepo = NewProjectRepository(f.db)
	})
	return f.projectRepo
}

// Card 获取 Card Repository（并发安全）
func (f *Factory) Card() CardRepository {
	f.cardOnce.Do(func() {
		f.cardRepo = NewCardRepository(f.db)
	})
	return f.cardRepo
}

// SystemSetting 获取 SystemSetting Repository（并发安全）
func (f *Factory) SystemSetting() SystemSettingRepository {
	f.settingOnce.Do(func() {
		f.settingRepo = NewSystemSettingRepository(f.db)
	})
	return f.settingRepo
}

// Transactor 获取事务边界（并发安全）
func (f *Factory) Transactor() Transactor {
	f.transactorOnce.Do(func() {
		f.transactor = NewTransactor(f.db)
	})
	return f.transactor
}

// DB 获取数据库实例
func (f *Factory) DB() *bun.DB {
	return f.db
}
