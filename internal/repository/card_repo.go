package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// CardRepository 卡片（状态卡、笔记卡、用法卡）数据访问接口
type CardRepository interface {
	Repository

	// Create 创建卡片
	Create(ctx context.Context, card *model.Card) error

	// GetByID 根据 ID 获取卡片
	GetByID(ctx context.Context, id int64) (*model.Card, error)

	// Update 更新卡片标题与描述
	Update(ctx context.Context, card *model.Card) error
}

type cardRepository struct {
	*BaseRepository
}

// NewCardRepository 创建 CardRepository
func NewCardRepository(db *bun.DB) CardRepository {
	return &cardRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create 创建卡片
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now

	_, err := r.conn(ctx).NewInsert().
		Model(card).
		Returning("id").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// GetByID 根据 ID 获取卡片
func (r *cardRepository) GetByID(ctx context.Context, id int64) (*model.Card, error) {
	card := new(model.Card)
	err := r.conn(ctx).NewSelect().
		Model(card).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("Card")
		}
		return nil, errors.NewDatabaseError(err)
	}
	return card, nil
}

// Update 更新卡片标题与描述
func (r *cardRepository) Update(ctx context.Context, card *model.Card) error {
	card.UpdatedAt = time.Now()

	result, err := r.conn(ctx).NewUpdate().
		Model(card).
		Column("title", "description", "updated_at").
		WherePK().
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Card")
	}
	return nil
}
