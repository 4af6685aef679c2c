package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Repository

	// GetByID 根据 ID 获取用户
	GetByID(ctx context.Context, id int64) (*model.User, error)

	// GetByIDs 批量获取用户
	GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error)

	// GetGroup 获取小组及其当前成员
	GetGroup(ctx context.Context, id int64) (*model.Group, error)

	// GetOwner 解析项目所有者（个人或小组）
	GetOwner(ctx context.Context, ownerType model.OwnerType, ownerID int64) (model.Owner, error)
}

// userRepository UserRepository 实现
type userRepository struct {
	*BaseRepository
}

// NewUserRepository 创建 UserRepository
func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// GetByID 根据 ID 获取用户
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user := new(model.User)
	err := r.conn(ctx).NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("User")
		}
		return nil, errors.NewDatabaseError(err)
	}

	return user, nil
}

// GetByIDs 批量获取用户
func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}

	var users []*model.User
	err := r.conn(ctx).NewSelect().
		Model(&users).
		Where("id IN (?)", bun.In(ids)).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	return users, nil
}

// GetGroup 获取小组及其当前成员
func (r *userRepository) GetGroup(ctx context.Context, id int64) (*model.Group, error) {
	group := new(model.Group)
	err := r.conn(ctx).NewSelect().
		Model(group).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("Group")
		}
		return nil, errors.NewDatabaseError(err)
	}

	var members []*model.User
	err = r.conn(ctx).NewSelect().
		Model(&members).
		Join("JOIN group_members AS gm ON gm.user_id = u.id").
		Where("gm.group_id = ?", id).
		Order("u.id ASC").
		Scan(ctx)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	group.Members = members
	return group, nil
}

// GetOwner 解析项目所有者（个人或小组）
func (r *userRepository) GetOwner(ctx context.Context, ownerType model.OwnerType, ownerID int64) (model.Owner, error) {
	switch ownerType {
	case model.OwnerTypeUser:
		user, err := r.GetByID(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return model.Individual{User: user}, nil
	case model.OwnerTypeGroup:
		group, err := r.GetGroup(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return model.GroupOwner{Group: group}, nil
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown owner type %q", ownerType))
}
