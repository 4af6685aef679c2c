package repository

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// NotificationRepository 通知数据访问接口
type NotificationRepository interface {
	Repository

	// Create 批量创建通知
	Create(ctx context.Context, notifications ...*model.Notification) error

	// DeleteByNotifier 删除某用户发出的全部通知，返回删除条数
	DeleteByNotifier(ctx context.Context, notifierID int64) (int, error)

	// CountByNotifier 统计某用户发出的通知数
	CountByNotifier(ctx context.Context, notifierID int64) (int, error)
}

type notificationRepository struct {
	*BaseRepository
}

// NewNotificationRepository 创建 NotificationRepository
func NewNotificationRepository(db *bun.DB) NotificationRepository {
	return &notificationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create 批量创建通知
func (r *notificationRepository) Create(ctx context.Context, notifications ...*model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	now := time.Now()
	for _, n := range notifications {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
	}

	_, err := r.conn(ctx).NewInsert().
		Model(&notifications).
		Returning("id").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// DeleteByNotifier 删除某用户发出的全部通知，返回删除条数
func (r *notificationRepository) DeleteByNotifier(ctx context.Context, notifierID int64) (int, error) {
	result, err := r.conn(ctx).NewDelete().
		Model((*model.Notification)(nil)).
		Where("notifier_id = ?", notifierID).
		Exec(ctx)

	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// CountByNotifier 统计某用户发出的通知数
func (r *notificationRepository) CountByNotifier(ctx context.Context, notifierID int64) (int, error) {
	count, err := r.conn(ctx).NewSelect().
		Model((*model.Notification)(nil)).
		Where("notifier_id = ?", notifierID).
		Count(ctx)

	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}
	return count, nil
}
