package repository

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// DetectionLogFilter 检测日志查询条件
type DetectionLogFilter struct {
	Method     model.DetectionMethod // 为空时不过滤
	UserID     *int64
	Since      *time.Time
	Pagination *Pagination
}

// SpamDetectionLogRepository 检测日志数据访问接口（只追加）
type SpamDetectionLogRepository interface {
	Repository

	// Create 追加一条检测日志
	Create(ctx context.Context, log *model.SpamDetectionLog) error

	// List 按时间倒序列出检测日志，附带用户
	List(ctx context.Context, filter DetectionLogFilter) ([]*model.SpamDetectionLog, error)

	// Count 统计满足条件的日志数
	Count(ctx context.Context, filter DetectionLogFilter) (int, error)
}

type spamDetectionLogRepository struct {
	*BaseRepository
}

// NewSpamDetectionLogRepository 创建 SpamDetectionLogRepository
func NewSpamDetectionLogRepository(db *bun.DB) SpamDetectionLogRepository {
	return &spamDetectionLogRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create 追加一条检测日志
func (r *spamDetectionLogRepository) Create(ctx context.Context, log *model.SpamDetectionLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.conn(ctx).NewInsert().
		Model(log).
		Returning("id").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// List 按时间倒序列出检测日志，附带用户
func (r *spamDetectionLogRepository) List(ctx context.Context, filter DetectionLogFilter) ([]*model.SpamDetectionLog, error) {
	query := r.filtered(ctx, filter).
		Relation("User").
		Order("sdl.created_at DESC", "sdl.id DESC")

	if filter.Pagination != nil {
		query = query.
			Limit(filter.Pagination.GetLimit()).
			Offset(filter.Pagination.GetOffset())
	}

	var logs []*model.SpamDetectionLog
	if err := query.Scan(ctx, &logs); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return logs, nil
}

// Count 统计满足条件的日志数
func (r *spamDetectionLogRepository) Count(ctx context.Context, filter DetectionLogFilter) (int, error) {
	count, err := r.filtered(ctx, filter).Count(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}
	return count, nil
}

func (r *spamDetectionLogRepository) filtered(ctx context.Context, filter DetectionLogFilter) *bun.SelectQuery {
	query := r.conn(ctx).NewSelect().Model((*model.SpamDetectionLog)(nil))

	if filter.Method != "" {
		query = query.Where("sdl.detection_method = ?", filter.Method)
	}
	if filter.UserID != nil {
		query = query.Where("sdl.user_id = ?", *filter.UserID)
	}
	if filter.Since != nil {
		query = query.Where("sdl.created_at >= ?", *filter.Since)
	}
	return query
}
