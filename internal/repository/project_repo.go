package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/utils"
	"github.com/uptrace/bun"
)

// ProjectRepository 项目数据访问接口
type ProjectRepository interface {
	Repository

	// Create 创建项目
	Create(ctx context.Context, project *model.Project) error

	// GetByID 根据 ID 获取项目（不含已删除）
	GetByID(ctx context.Context, id int64) (*model.Project, error)

	// GetByIDs 批量获取项目，保持 id 升序
	GetByIDs(ctx context.Context, ids []int64) ([]*model.Project, error)

	// Update 更新项目标题、描述与公开状态
	Update(ctx context.Context, project *model.Project) error

	// SoftDestroy 软删除项目并级联删除其下的点赞、卡片、评论、图片、标签与协作者
	// 需在事务中调用
	SoftDestroy(ctx context.Context, project *model.Project) error
}

type projectRepository struct {
	*BaseRepository
}

// NewProjectRepository 创建 ProjectRepository
func NewProjectRepository(db *bun.DB) ProjectRepository {
	return &projectRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create 创建项目
func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := r.conn(ctx).NewInsert().
		Model(project).
		Returning("id").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// GetByID 根据 ID 获取项目（不含已删除）
func (r *projectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	project := new(model.Project)
	err := r.conn(ctx).NewSelect().
		Model(project).
		Where("id = ?", id).
		Where("is_deleted = ?", false).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("Project")
		}
		return nil, errors.NewDatabaseError(err)
	}
	return project, nil
}

// GetByIDs 批量获取项目，保持 id 升序
func (r *projectRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.Project, error) {
	if len(ids) == 0 {
		return []*model.Project{}, nil
	}

	var projects []*model.Project
	err := r.conn(ctx).NewSelect().
		Model(&projects).
		Where("id IN (?)", bun.In(ids)).
		Where("is_deleted = ?", false).
		Order("id ASC").
		Scan(ctx)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return projects, nil
}

// Update 更新项目标题、描述与公开状态
func (r *projectRepository) Update(ctx context.Context, project *model.Project) error {
	project.UpdatedAt = time.Now()

	result, err := r.conn(ctx).NewUpdate().
		Model(project).
		Column("title", "description", "is_private", "updated_at").
		WherePK().
		Where("is_deleted = ?", false).
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Project")
	}
	return nil
}

// SoftDestroy 软删除项目并级联删除其下的点赞、卡片、评论、图片、标签与协作者
func (r *projectRepository) SoftDestroy(ctx context.Context, project *model.Project) error {
	db := r.conn(ctx)

	cardIDs := db.NewSelect().
		Model((*model.Card)(nil)).
		Column("id").
		Where("project_id = ?", project.ID)

	if _, err := db.NewDelete().
		Model((*model.CardComment)(nil)).
		Where("card_id IN (?)", cardIDs).
		Exec(ctx); err != nil {
		return errors.NewDatabaseError(err)
	}

	children := []interface{}{
		(*model.Card)(nil),
		(*model.ProjectComment)(nil),
		(*model.Like)(nil),
		(*model.Figure)(nil),
		(*model.Tag)(nil),
		(*model.Collaboration)(nil),
	}
	for _, child := range children {
		if _, err := db.NewDelete().
			Model(child).
			Where("project_id = ?", project.ID).
			Exec(ctx); err != nil {
			return errors.NewDatabaseError(err)
		}
	}

	project.Title = model.DeletedProjectTitle
	project.Name = utils.DeletedProjectName()
	project.IsDeleted = true
	project.UpdatedAt = time.Now()

	result, err := db.NewUpdate().
		Model(project).
		Column("title", "name", "is_deleted", "updated_at").
		WherePK().
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Project")
	}
	return nil
}
