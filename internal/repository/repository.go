// Package repository 提供数据访问层的接口定义和基础实现
package repository

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// Repository 基础 Repository 接口
type Repository interface {
	DB() *bun.DB
}

// txKey 上下文中保存事务的键
type txKey struct{}

// BaseRepository 基础 Repository 实现，所有 Repository 的公共基类
type BaseRepository struct {
	db *bun.DB
}

// NewBaseRepository 创建基础 Repository
func NewBaseRepository(db *bun.DB) *BaseRepository {
	return &BaseRepository{db: db}
}

// DB 获取数据库实例
func (r *BaseRepository) DB() *bun.DB {
	return r.db
}

// conn 返回当前上下文中的事务，没有事务时返回数据库实例
func (r *BaseRepository) conn(ctx context.Context) bun.IDB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return r.db
}

// 分页默认值
const (
	DefaultPageSize = 100
	MaxPageSize     = 100
)

// Pagination 分页参数
type Pagination struct {
	Page     int // 页码（从 1 开始）
	PageSize int // 每页数量
	Total    int // 总记录数（由查询方法填充）
}

// GetOffset 计算偏移量
func (p *Pagination) GetOffset() int {
	if p.Page < 1 {
		p.Page = 1
	}
	return (p.Page - 1) * p.PageSize
}

// GetLimit 获取限制数量
func (p *Pagination) GetLimit() int {
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p.PageSize
}

// HasMore 是否有更多数据
func (p *Pagination) HasMore() bool {
	return p.Page*p.PageSize < p.Total
}

// TotalPages 总页数
func (p *Pagination) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	pages := p.Total / p.PageSize
	if p.Total%p.PageSize > 0 {
		pages++
	}
	return pages
}

// ListOptions 列表查询选项
type ListOptions struct {
	Pagination *Pagination
	OrderBy    string // 排序字段，如 "id DESC"
}

// NewListOptions 创建默认的列表查询选项
func NewListOptions() *ListOptions {
	return &ListOptions{
		Pagination: &Pagination{
			Page:     1,
			PageSize: DefaultPageSize,
		},
		OrderBy: "id DESC",
	}
}

// WithOrderBy 设置排序
func (o *ListOptions) WithOrderBy(orderBy string) *ListOptions {
	o.OrderBy = orderBy
	return o
}

// TxFunc 事务函数类型
type TxFunc func(ctx context.Context, tx bun.Tx) error

// RunInTransaction 在事务中执行操作
func RunInTransaction(ctx context.Context, db *bun.DB, fn TxFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError(err)
	}
	return nil
}

// ContextWithTx 将事务放入上下文
func ContextWithTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext 从上下文取出事务
func TxFromContext(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(bun.Tx)
	return tx, ok
}

// Transactor 事务边界
// fn 内通过 ctx 调用的所有 Repository 方法共享同一事务，fn 返回错误时整体回滚
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// bunTransactor 基于 bun 的 Transactor
type bunTransactor struct {
	db *bun.DB
}

// NewTransactor 创建 Transactor
func NewTransactor(db *bun.DB) Transactor {
	return &bunTransactor{db: db}
}

// InTx 在事务中执行 fn，已处于事务中时直接复用
func (t *bunTransactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return RunInTransaction(ctx, t.db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// DefaultTimezone 默认时区
const DefaultTimezone = "Asia/Tokyo"

// ValidateTimezone 校验并返回有效的时区字符串
// 如果传入空字符串或无效时区，返回默认时区
func ValidateTimezone(tz string) string {
	if tz == "" {
		return DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return DefaultTimezone
	}
	return tz
}
