package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/messaging"
	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/logger"
)

// DetectionLogStore 检测日志持久化
type DetectionLogStore interface {
	Create(ctx context.Context, log *model.SpamDetectionLog) error
}

// DetectionEventSink 检测事件广播
type DetectionEventSink interface {
	PublishDetection(event messaging.DetectionEvent) error
}

// DetectionEntry 一次拦截决定
type DetectionEntry struct {
	Actor       Actor
	Method      model.DetectionMethod
	ContentType string
	Reason      string // 为空时不记录
}

// DetectionLogger 拦截审计日志记录器
// 记录失败不会影响调用方：错误写入日志后返回 nil
type DetectionLogger struct {
	store  DetectionLogStore
	events DetectionEventSink
	now    func() time.Time
}

// NewDetectionLogger 创建记录器，events 可为 nil
func NewDetectionLogger(store DetectionLogStore, events DetectionEventSink) *DetectionLogger {
	return &DetectionLogger{store: store, events: events, now: time.Now}
}

// Record 追加一条检测日志，失败时返回 nil
func (l *DetectionLogger) Record(ctx context.Context, e DetectionEntry) *model.SpamDetectionLog {
	if err := e.validate(); err != nil {
		logger.Error().Err(err).Msg("[SpamDetectionLogRecorder] Failed to record log")
		return nil
	}

	entry := &model.SpamDetectionLog{
		UserID:          e.Actor.UserID,
		IPAddress:       e.Actor.IP,
		DetectionMethod: e.Method,
		ContentType:     e.ContentType,
		CreatedAt:       l.now(),
	}
	if e.Reason != "" {
		entry.DetectionReason = ptr(e.Reason)
	}

	if err := l.store.Create(ctx, entry); err != nil {
		logger.Error().Err(err).Msg("[SpamDetectionLogRecorder] Failed to record log")
		return nil
	}

	metrics.RejectionsTotal.WithLabelValues(string(e.Method), e.ContentType).Inc()
	l.publish(entry)
	return entry
}

func (l *DetectionLogger) publish(entry *model.SpamDetectionLog) {
	if l.events == nil {
		return
	}
	err := l.events.PublishDetection(messaging.DetectionEvent{
		ID:              entry.ID,
		UserID:          entry.UserID,
		IPAddress:       entry.IPAddress,
		DetectionMethod: string(entry.DetectionMethod),
		ContentType:     entry.ContentType,
		DetectionReason: entry.DetectionReason,
		CreatedAt:       entry.CreatedAt,
	})
	if err != nil {
		logger.Warn().Err(err).Int64("log_id", entry.ID).Msg("Failed to publish detection event")
	}
}

func (e DetectionEntry) validate() error {
	switch {
	case !e.Method.Valid():
		return fmt.Errorf("detection method %q is not included in the list", e.Method)
	case e.Actor.IP == "":
		return fmt.Errorf("ip address can't be blank")
	case e.ContentType == "":
		return fmt.Errorf("content type can't be blank")
	}
	return nil
}
