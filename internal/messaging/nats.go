// Package messaging 提供 NATS 发布端封装，用于广播检测事件
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/nats-io/nats.go"
)

// SubjectDetection 检测事件默认主题
const SubjectDetection = "moderation.detection"

// Publisher 事件发布接口
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // 客户端名称
	ReconnectWait time.Duration // 重连间隔
	MaxReconnects int           // 最大重连次数（-1 表示无限）
}

// DefaultNATSConfig 默认配置
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "fabble-moderation",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NATSClient NATS 连接封装
type NATSClient struct {
	conn *nats.Conn
}

// NewNATSClient 连接 NATS，首次连接失败时返回错误
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connected")
	return &NATSClient{conn: nc}, nil
}

// Publish 发布消息
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Close 排空并关闭连接
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		logger.Warn().Err(err).Msg("NATS drain failed")
	}
}

// DetectionEvent 检测事件载荷
type DetectionEvent struct {
	ID              int64     `json:"id"`
	UserID          *int64    `json:"userId"`
	IPAddress       string    `json:"ipAddress"`
	DetectionMethod string    `json:"detectionMethod"`
	ContentType     string    `json:"contentType"`
	DetectionReason *string   `json:"detectionReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// EventPublisher 将检测事件编码为 JSON 后发布到固定主题
type EventPublisher struct {
	pub     Publisher
	subject string
}

// NewEventPublisher 创建检测事件发布器，subject 为空时使用默认主题
func NewEventPublisher(pub Publisher, subject string) *EventPublisher {
	if subject == "" {
		subject = SubjectDetection
	}
	return &EventPublisher{pub: pub, subject: subject}
}

// PublishDetection 发布一条检测事件
func (p *EventPublisher) PublishDetection(event DetectionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.pub.Publish(p.subject, data)
}
