package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// CommentFilter 评论列表查询条件
type CommentFilter struct {
	Status     *model.CommentStatus // 为空时不过滤
	Pagination *Pagination
}

// CommentRepository 评论数据访问接口，卡片评论与项目评论各有一个实例
type CommentRepository interface {
	Repository

	// Kind 返回所管理的评论种类
	Kind() model.CommentKind

	// New 创建一个空评论实例
	New() model.ModeratedComment

	// Create 创建评论
	Create(ctx context.Context, comment model.ModeratedComment) error

	// GetByID 根据 ID 获取评论
	GetByID(ctx context.Context, id int64) (model.ModeratedComment, error)

	// GetForUpdate 在当前事务中以行锁获取评论
	GetForUpdate(ctx context.Context, id int64) (model.ModeratedComment, error)

	// UpdateStatus 保存评论状态
	UpdateStatus(ctx context.Context, comment model.ModeratedComment) error

	// ListUnconfirmedIDsBefore 列出 cutoff 及之前创建的未确认评论 ID，按 id 升序
	ListUnconfirmedIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error)

	// List 按 id 倒序列出评论
	List(ctx context.Context, filter CommentFilter) ([]model.ModeratedComment, error)

	// Count 统计满足条件的评论数
	Count(ctx context.Context, filter CommentFilter) (int, error)
}

// commentModel 约束 T 的指针类型实现 ModeratedComment
type commentModel[T any] interface {
	*T
	model.ModeratedComment
}

type commentRepository[T any, PT commentModel[T]] struct {
	*BaseRepository
	kind model.CommentKind
}

// NewCardCommentRepository 创建卡片评论 Repository
func NewCardCommentRepository(db *bun.DB) CommentRepository {
	return &commentRepository[model.CardComment, *model.CardComment]{
		BaseRepository: NewBaseRepository(db),
		kind:           model.CommentKindCard,
	}
}

// NewProjectCommentRepository 创建项目评论 Repository
func NewProjectCommentRepository(db *bun.DB) CommentRepository {
	return &commentRepository[model.ProjectComment, *model.ProjectComment]{
		BaseRepository: NewBaseRepository(db),
		kind:           model.CommentKindProject,
	}
}

func (r *commentRepository[T, PT]) Kind() model.CommentKind {
	return r.kind
}

func (r *commentRepository[T, PT]) New() model.ModeratedComment {
	return PT(new(T))
}

// typed 校验评论种类与 Repository 一致
func (r *commentRepository[T, PT]) typed(comment model.ModeratedComment) (PT, error) {
	c, ok := comment.(PT)
	if !ok {
		var zero PT
		return zero, errors.NewInvalidRequest(fmt.Sprintf("expected %s, got %T", r.kind, comment))
	}
	return c, nil
}

// Create 创建评论
func (r *commentRepository[T, PT]) Create(ctx context.Context, comment model.ModeratedComment) error {
	c, err := r.typed(comment)
	if err != nil {
		return err
	}

	_, err = r.conn(ctx).NewInsert().
		Model(c).
		Returning("id, created_at, updated_at").
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// GetByID 根据 ID 获取评论
func (r *commentRepository[T, PT]) GetByID(ctx context.Context, id int64) (model.ModeratedComment, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate 在当前事务中以行锁获取评论
func (r *commentRepository[T, PT]) GetForUpdate(ctx context.Context, id int64) (model.ModeratedComment, error) {
	return r.get(ctx, id, true)
}

func (r *commentRepository[T, PT]) get(ctx context.Context, id int64, lock bool) (model.ModeratedComment, error) {
	c := PT(new(T))
	query := r.conn(ctx).NewSelect().
		Model(c).
		Where("?TableAlias.id = ?", id)

	if lock {
		query = query.For("UPDATE")
	}

	if err := query.Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("Comment")
		}
		return nil, errors.NewDatabaseError(err)
	}
	return c, nil
}

// UpdateStatus 保存评论状态
func (r *commentRepository[T, PT]) UpdateStatus(ctx context.Context, comment model.ModeratedComment) error {
	c, err := r.typed(comment)
	if err != nil {
		return err
	}

	result, err := r.conn(ctx).NewUpdate().
		Model(c).
		Set("status = ?", c.GetStatus()).
		Set("updated_at = ?", time.Now()).
		WherePK().
		Exec(ctx)

	if err != nil {
		return errors.NewDatabaseError(err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return errors.NewNotFoundError("Comment")
	}
	return nil
}

// ListUnconfirmedIDsBefore 列出 cutoff 及之前创建的未确认评论 ID，按 id 升序
func (r *commentRepository[T, PT]) ListUnconfirmedIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	var ids []int64
	err := r.conn(ctx).NewSelect().
		Model(PT(new(T))).
		Column("id").
		Where("status = ?", model.CommentStatusUnconfirmed).
		Where("created_at <= ?", cutoff).
		Order("id ASC").
		Scan(ctx, &ids)

	if err != nil {
		return nil, errors.NewDatabaseError(err)
	}
	return ids, nil
}

// List 按 id 倒序列出评论
func (r *commentRepository[T, PT]) List(ctx context.Context, filter CommentFilter) ([]model.ModeratedComment, error) {
	var rows []T
	query := r.filtered(ctx, filter).Order("id DESC")

	if filter.Pagination != nil {
		query = query.
			Limit(filter.Pagination.GetLimit()).
			Offset(filter.Pagination.GetOffset())
	}

	if err := query.Scan(ctx, &rows); err != nil {
		return nil, errors.NewDatabaseError(err)
	}

	comments := make([]model.ModeratedComment, 0, len(rows))
	for i := range rows {
		comments = append(comments, PT(&rows[i]))
	}
	return comments, nil
}

// Count 统计满足条件的评论数
func (r *commentRepository[T, PT]) Count(ctx context.Context, filter CommentFilter) (int, error) {
	count, err := r.filtered(ctx, filter).Count(ctx)
	if err != nil {
		return 0, errors.NewDatabaseError(err)
	}
	return count, nil
}

func (r *commentRepository[T, PT]) filtered(ctx context.Context, filter CommentFilter) *bun.SelectQuery {
	query := r.conn(ctx).NewSelect().Model(PT(new(T)))
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}
