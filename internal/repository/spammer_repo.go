package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// SpammerRepository 垃圾用户登记数据访问接口
type SpammerRepository interface {
	Repository

	// Exists 用户是否已登记为垃圾用户
	Exists(ctx context.Context, userID int64) (bool, error)

	// Mark 登记垃圾用户，重复登记为无操作
	Mark(ctx context.Context, userID int64, detectedAt time.Time) error

	// GetByID 根据 ID 获取登记
	GetByID(ctx context.Context, id int64) (*model.Spammer, error)

	// Delete 删除登记（管理员手动解除）
	Delete(ctx context.Context, id int64) error

	// List 列出登记，附带用户
	List(ctx context.Context, opts *ListOptions) ([]*model.Spammer, error)
}

type spammerRepository struct {
	*BaseRepository
}

// NewSpammerRepository 创建 SpammerRepository
func NewSpammerRepository(db *bun.DB) SpammerRepository {
	return &spammerRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Exists 用户是否已登记为垃圾用户
func (r *spammerRepository) Exists(ctx context.Context, userID int64) (bool, error) {
	exists, err := r.conn(ctx).NewSelect().
		Model((*model.Spammer)(nil)).
		Where("user_id = ?", userID).
		Exists(ctx)

	if err != nil {
		return false, errors.NewDatabaseError(err)
	}
	return exists, nil
}

// Mark 登记垃圾用户，重复登记为无操作
func (r *spammerRepository) Mark(ctx context.Context, userID int64, detectedAt time.Time) error {
	spammer := &model.Spammer{
		UserID:     userID,
		DetectedAt: &detectedAt,
		CreatedAt:  detectedAt,
		UpdatedAt:  detectedAt,
	}

	_, err := r.conn(ctx).NewInsert().
		Model(spammer).
		On("CONFLICT (user_id) DO NOTHING").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// GetByID 根据 ID 获取登记
func (r *spammerRepository) GetByID(ctx context.Context, id int64) (*model.Spammer, error) {
	spammer := new(model.Spammer)
	err := r.conn(ctx).NewSelect().
		Model(spammer).
		Relation("User").
		Where("sp.id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("Spammer")
		}
		return nil, errors.NewDatabaseError(err)
	}
	return spammer, nil
}

// Delete 删除登记（管理员手动解除）
func (r *spammerRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.conn(ctx).NewDelete().
		Model((*model.Spammer)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Spammer")
	}
	return nil
}

// List 列出登记，附带用户
func (r *spammerRepository) List(ctx context.Context, opts *ListOptions) ([]*model.Spammer, error) {
	if opts == nil {
		opts = NewListOptions()
	}

	query := r.conn(ctx).NewSelect().
		Model((*model.Spammer)(nil)).
		Relation("User").
		Order("sp.detected_at DESC", "sp.id DESC")

	if opts.Pagination != nil {
		query = query.
			Limit(opts.Pagination.GetLimit()).
			Offset(opts.Pagination.GetOffset())
	}

	var spammers []*model.Spammer
	if err := query.Scan(ctx, &spammers); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return spammers, nil
}
