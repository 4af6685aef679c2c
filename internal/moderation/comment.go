package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/errors"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/repository"
)

// CommentStore 单一种类评论的持久化
type CommentStore interface {
	Kind() model.CommentKind
	Create(ctx context.Context, comment model.ModeratedComment) error
	GetForUpdate(ctx context.Context, id int64) (model.ModeratedComment, error)
	UpdateStatus(ctx context.Context, comment model.ModeratedComment) error
	ListUnconfirmedIDsBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
}

// NotificationStore 通知持久化
type NotificationStore interface {
	Create(ctx context.Context, notifications ...*model.Notification) error
	DeleteByNotifier(ctx context.Context, notifierID int64) (int, error)
}

// Notice 评论创建后要发出的通知
type Notice struct {
	RecipientIDs []int64
	Path         string
	Body         string
}

// CommentModerator 评论审核状态机，两种评论共用
//
//	unconfirmed -> approved | spam
//	approved    -> unconfirmed
//	spam        -> unconfirmed
type CommentModerator struct {
	comments      CommentStore
	notifications NotificationStore
	spammers      *SpammerRegistry
	tx            repository.Transactor
}

// NewCommentModerator 创建状态机
func NewCommentModerator(comments CommentStore, notifications NotificationStore, spammers *SpammerRegistry, tx repository.Transactor) *CommentModerator {
	return &CommentModerator{
		comments:      comments,
		notifications: notifications,
		spammers:      spammers,
		tx:            tx,
	}
}

// Kind 评论种类
func (m *CommentModerator) Kind() model.CommentKind {
	return m.comments.Kind()
}

// Approve 批准评论
func (m *CommentModerator) Approve(ctx context.Context, id int64) (model.ModeratedComment, error) {
	return m.transition(ctx, id, func(ctx context.Context, c model.ModeratedComment) (bool, error) {
		c.SetStatus(model.CommentStatusApproved)
		return true, nil
	})
}

// Unapprove 撤销批准，未确认时为无操作，垃圾评论不可撤销批准
func (m *CommentModerator) Unapprove(ctx context.Context, id int64) (model.ModeratedComment, error) {
	return m.transition(ctx, id, func(ctx context.Context, c model.ModeratedComment) (bool, error) {
		switch c.GetStatus() {
		case model.CommentStatusUnconfirmed:
			return false, nil
		case model.CommentStatusSpam:
			return false, errors.NewInvalidTransition("Can't unapprove spam comment")
		}
		c.SetStatus(model.CommentStatusUnconfirmed)
		return true, nil
	})
}

// UnmarkSpam 撤销垃圾判定，未确认时为无操作，已批准评论不可撤销
func (m *CommentModerator) UnmarkSpam(ctx context.Context, id int64) (model.ModeratedComment, error) {
	return m.transition(ctx, id, func(ctx context.Context, c model.ModeratedComment) (bool, error) {
		switch c.GetStatus() {
		case model.CommentStatusUnconfirmed:
			return false, nil
		case model.CommentStatusApproved:
			return false, errors.NewInvalidTransition("Can't unmark spam approved comment")
		}
		c.SetStatus(model.CommentStatusUnconfirmed)
		return true, nil
	})
}

// MarkSpam 判定为垃圾评论
// 同一事务内删除作者发出的全部通知、登记作者为垃圾用户并更新状态，任一步失败整体回滚
func (m *CommentModerator) MarkSpam(ctx context.Context, id int64) (model.ModeratedComment, error) {
	return m.transition(ctx, id, func(ctx context.Context, c model.ModeratedComment) (bool, error) {
		author := c.GetAuthorID()
		if _, err := m.notifications.DeleteByNotifier(ctx, author); err != nil {
			return false, err
		}
		if err := m.spammers.MarkSpammer(ctx, author); err != nil {
			return false, err
		}
		c.SetStatus(model.CommentStatusSpam)
		return true, nil
	})
}

// SpamBatch 将 cutoff 及之前创建的未确认评论按 id 升序逐条判定为垃圾
// 中途失败时停止，之前已处理的保持垃圾状态
func (m *CommentModerator) SpamBatch(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := m.comments.ListUnconfirmedIDsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, id := range ids {
		if _, err := m.MarkSpam(ctx, id); err != nil {
			logger.Error().Err(err).
				Str("kind", string(m.Kind())).
				Int64("comment_id", id).
				Int("marked", marked).
				Msg("Spam batch stopped")
			return marked, fmt.Errorf("mark comment %d as spam: %w", id, err)
		}
		marked++
	}

	logger.Info().
		Str("kind", string(m.Kind())).
		Time("before", cutoff).
		Int("marked", marked).
		Msg("Spam batch finished")
	return marked, nil
}

// Create 创建评论
// 作者为垃圾用户时直接以垃圾状态保存且不发通知，否则以未确认状态保存并通知 notice 中除作者外的接收者
func (m *CommentModerator) Create(ctx context.Context, comment model.ModeratedComment, notice *Notice) error {
	author := comment.GetAuthorID()
	spammer, err := m.spammers.IsSpammer(ctx, &author)
	if err != nil {
		return err
	}

	if spammer {
		comment.SetStatus(model.CommentStatusSpam)
	} else {
		comment.SetStatus(model.CommentStatusUnconfirmed)
	}

	err = m.tx.InTx(ctx, func(ctx context.Context) error {
		if err := m.comments.Create(ctx, comment); err != nil {
			return err
		}
		if spammer || notice == nil {
			return nil
		}
		return m.notifications.Create(ctx, notice.notifications(author)...)
	})
	if err != nil {
		return err
	}

	metrics.CommentTransitionsTotal.WithLabelValues(string(m.Kind()), comment.GetStatus().String()).Inc()
	return nil
}

// transition 在事务中加行锁读取评论并执行状态迁移
func (m *CommentModerator) transition(ctx context.Context, id int64, apply func(ctx context.Context, c model.ModeratedComment) (bool, error)) (model.ModeratedComment, error) {
	var (
		result  model.ModeratedComment
		changed bool
	)

	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := m.comments.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		changed, err = apply(ctx, c)
		if err != nil {
			return err
		}
		if changed {
			if err := m.comments.UpdateStatus(ctx, c); err != nil {
				return err
			}
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.CommentTransitionsTotal.WithLabelValues(string(m.Kind()), result.GetStatus().String()).Inc()
	}
	return result, nil
}

func (n *Notice) notifications(author int64) []*model.Notification {
	seen := make(map[int64]bool, len(n.RecipientIDs))
	out := make([]*model.Notification, 0, len(n.RecipientIDs))
	for _, id := range n.RecipientIDs {
		if id == author || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, &model.Notification{
			NotifierID: author,
			NotifiedID: id,
			Path:       n.Path,
			Body:       n.Body,
		})
	}
	return out
}
