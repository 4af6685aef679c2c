package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client HTTP 客户端包装器
type Client struct {
	*resty.Client
}

// Config 客户端配置
type Config struct {
	Timeout       time.Duration
	RetryCount    int
	RetryWaitTime time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		RetryCount:    0,
		RetryWaitTime: 100 * time.Millisecond,
	}
}

// New 创建新的 HTTP 客户端
func New(cfg Config) *Client {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime)

	return &Client{Client: client}
}

// PostForm 以表单提交并将 JSON 响应解析到 result
// 非 2xx 响应返回错误
func (c *Client) PostForm(ctx context.Context, url string, form map[string]string, result interface{}) error {
	resp, err := c.R().
		SetContext(ctx).
		SetFormData(form).
		SetHeader("Accept", "application/json").
		SetResult(result).
		Post(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), url)
	}
	return nil
}
