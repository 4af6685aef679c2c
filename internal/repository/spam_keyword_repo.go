package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// SpamKeywordRepository 垃圾关键词数据访问接口
type SpamKeywordRepository interface {
	Repository

	// Create 创建关键词
	Create(ctx context.Context, keyword *model.SpamKeyword) error

	// GetByID 根据 ID 获取关键词
	GetByID(ctx context.Context, id int64) (*model.SpamKeyword, error)

	// Update 更新关键词
	Update(ctx context.Context, keyword *model.SpamKeyword) error

	// Delete 删除关键词
	Delete(ctx context.Context, id int64) error

	// List 获取全部关键词（管理端）
	List(ctx context.Context, opts *ListOptions) ([]*model.SpamKeyword, error)

	// ListEnabled 获取启用的关键词，按 id 升序
	ListEnabled(ctx context.Context) ([]*model.SpamKeyword, error)

	// ExistsByKeyword 检查关键词是否已存在
	ExistsByKeyword(ctx context.Context, keyword string, excludeID *int64) (bool, error)
}

type spamKeywordRepository struct {
	*BaseRepository
}

// NewSpamKeywordRepository 创建 SpamKeywordRepository
func NewSpamKeywordRepository(db *bun.DB) SpamKeywordRepository {
	return &spamKeywordRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create 创建关键词
func (r *spamKeywordRepository) Create(ctx context.Context, keyword *model.SpamKeyword) error {
	now := time.Now()
	keyword.CreatedAt = now
	keyword.UpdatedAt = now

	_, err := r.conn(ctx).NewInsert().
		Model(keyword).
		Returning("id").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// GetByID 根据 ID 获取关键词
func (r *spamKeywordRepository) GetByID(ctx context.Context, id int64) (*model.SpamKeyword, error) {
	keyword := new(model.SpamKeyword)
	err := r.conn(ctx).NewSelect().
		Model(keyword).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("SpamKeyword")
		}
		return nil, errors.NewDatabaseError(err)
	}
	return keyword, nil
}

// Update 更新关键词
func (r *spamKeywordRepository) Update(ctx context.Context, keyword *model.SpamKeyword) error {
	keyword.UpdatedAt = time.Now()

	result, err := r.conn(ctx).NewUpdate().
		Model(keyword).
		Column("keyword", "enabled", "updated_at").
		WherePK().
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("SpamKeyword")
	}
	return nil
}

// Delete 删除关键词
func (r *spamKeywordRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.conn(ctx).NewDelete().
		Model((*model.SpamKeyword)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("SpamKeyword")
	}
	return nil
}

// List 获取全部关键词（管理端）
func (r *spamKeywordRepository) List(ctx context.Context, opts *ListOptions) ([]*model.SpamKeyword, error) {
	if opts == nil {
		opts = NewListOptions()
	}

	query := r.conn(ctx).NewSelect().Model((*model.SpamKeyword)(nil))
	if opts.OrderBy != "" {
		query = query.Order(opts.OrderBy)
	}
	if opts.Pagination != nil {
		query = query.
			Limit(opts.Pagination.GetLimit()).
			Offset(opts.Pagination.GetOffset())
	}

	var keywords []*model.SpamKeyword
	if err := query.Scan(ctx, &keywords); err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return keywords, nil
}

// ListEnabled 获取启用的关键词，按 id 升序
func (r *spamKeywordRepository) ListEnabled(ctx context.Context) ([]*model.SpamKeyword, error) {
	var keywords []*model.SpamKeyword
	err := r.conn(ctx).NewSelect().
		Model(&keywords).
		Where("enabled = ?", true).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return keywords, nil
}

// ExistsByKeyword 检查关键词是否已存在
func (r *spamKeywordRepository) ExistsByKeyword(ctx context.Context, keyword string, excludeID *int64) (bool, error) {
	query := r.conn(ctx).NewSelect().
		Model((*model.SpamKeyword)(nil)).
		Where("keyword = ?", keyword)

	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	exists, err := query.Exists(ctx)
	if err != nil {
		return false, errors.NewDatabaseError(err)
	}
	return exists, nil
}
