package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// SystemSettingRepository 系统设置数据访问接口
type SystemSettingRepository interface {
	Repository

	// Get 根据键获取设置，不存在时返回 NotFound
	Get(ctx context.Context, key string) (*model.SystemSetting, error)

	// Upsert 写入设置，键已存在时覆盖值
	Upsert(ctx context.Context, key, value string) error

	// List 获取全部设置
	List(ctx context.Context) ([]*model.SystemSetting, error)
}

type systemSettingRepository struct {
	*BaseRepository
}

// NewSystemSettingRepository 创建 SystemSettingRepository
func NewSystemSettingRepository(db *bun.DB) SystemSettingRepository {
	return &systemSettingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Get 根据键获取设置，不存在时返回 NotFound
func (r *systemSettingRepository) Get(ctx context.Context, key string) (*model.SystemSetting, error) {
	setting := new(model.SystemSetting)
	err := r.conn(ctx).NewSelect().
		Model(setting).
		Where("key = ?", key).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("SystemSetting")
		}
		return nil, errors.NewDatabaseError(err)
	}
	return setting, nil
}

// Upsert 写入设置，键已存在时覆盖值
func (r *systemSettingRepository) Upsert(ctx context.Context, key, value string) error {
	now := time.Now()
	setting := &model.SystemSetting{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.conn(ctx).NewInsert().
		Model(setting).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// List 获取全部设置
func (r *systemSettingRepository) List(ctx context.Context) ([]*model.SystemSetting, error) {
	var settings []*model.SystemSetting
	err := r.conn(ctx).NewSelect().
		Model(&settings).
		Order("key ASC").
		Scan(ctx)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return settings, nil
}
