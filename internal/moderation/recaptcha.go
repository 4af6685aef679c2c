package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/fabble/moderation/internal/i18n"
	"github.com/fabble/moderation/internal/metrics"
	"github.com/fabble/moderation/internal/model"
	"github.com/fabble/moderation/internal/pkg/httpclient"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/fabble/moderation/internal/pkg/reporter"
	"github.com/quagmt/udecimal"
	"github.com/sony/gobreaker"
)

// DefaultRecaptchaVerifyURL Google siteverify 接口
const DefaultRecaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// 校验失败原因
const (
	RecaptchaReasonTokenMissing   = "token_missing"
	RecaptchaReasonLowScore       = "low_score"
	RecaptchaReasonActionMismatch = "action_mismatch"
	RecaptchaReasonRejected       = "rejected"
)

// ThresholdSource 当前 reCAPTCHA 分数阈值
type ThresholdSource interface {
	RecaptchaThreshold(ctx context.Context) (udecimal.Decimal, error)
}

// RecaptchaConfig reCAPTCHA 配置，SiteKey 或 SecretKey 为空时跳过校验
type RecaptchaConfig struct {
	SiteKey   string
	SecretKey string
	VerifyURL string
	Timeout   time.Duration
}

// RecaptchaResult 校验结果
type RecaptchaResult struct {
	Success       bool
	ErrorMessage  string
	Score         *udecimal.Decimal
	Threshold     *udecimal.Decimal
	FailureReason string
}

// DetectionReason 写入检测日志的原因
func (r RecaptchaResult) DetectionReason() string {
	if r.Score != nil && r.Threshold != nil {
		return fmt.Sprintf("score=%s, threshold=%s", r.Score.String(), r.Threshold.String())
	}
	return r.FailureReason
}

// siteverifyReply siteverify 响应
type siteverifyReply struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// RecaptchaGate reCAPTCHA v3 分数校验
// 与服务商通信失败或熔断打开时一律放行，并上报错误
type RecaptchaGate struct {
	cfg        RecaptchaConfig
	client     *httpclient.Client
	breaker    *gobreaker.CircuitBreaker
	thresholds ThresholdSource
	logs       *DetectionLogger
	reporter   reporter.Reporter
	translator *i18n.Translator
}

// NewRecaptchaGate 创建校验器
func NewRecaptchaGate(cfg RecaptchaConfig, thresholds ThresholdSource, logs *DetectionLogger, rep reporter.Reporter, translator *i18n.Translator) *RecaptchaGate {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultRecaptchaVerifyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if rep == nil {
		rep = reporter.LogReporter{}
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Timeout

	return &RecaptchaGate{
		cfg:        cfg,
		client:     httpclient.New(httpCfg),
		breaker:    newRecaptchaBreaker(),
		thresholds: thresholds,
		logs:       logs,
		reporter:   rep,
		translator: translator,
	}
}

func newRecaptchaBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "recaptcha",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[reCAPTCHA] Circuit breaker state changed")
		},
	})
}

// Enabled 是否配置了 reCAPTCHA
func (g *RecaptchaGate) Enabled() bool {
	return g.cfg.SiteKey != "" && g.cfg.SecretKey != ""
}

// SiteKey 前端使用的站点密钥
func (g *RecaptchaGate) SiteKey() string {
	return g.cfg.SiteKey
}

// Verify 校验客户端 token
func (g *RecaptchaGate) Verify(ctx context.Context, token, action, remoteIP string) RecaptchaResult {
	if !g.Enabled() {
		metrics.RecaptchaVerificationsTotal.WithLabelValues(action, "skipped").Inc()
		return RecaptchaResult{Success: true}
	}

	if token == "" {
		metrics.RecaptchaVerificationsTotal.WithLabelValues(action, RecaptchaReasonTokenMissing).Inc()
		return RecaptchaResult{
			ErrorMessage:  g.translator.T(i18n.MsgRecaptchaTokenMissing, nil),
			FailureReason: RecaptchaReasonTokenMissing,
		}
	}

	result, err := g.verify(ctx, token, action, remoteIP)
	if err != nil {
		metrics.RecaptchaVerificationsTotal.WithLabelValues(action, "error").Inc()
		g.reporter.Report(ctx, err, map[string]string{
			"component": "recaptcha",
			"action":    action,
		})
		return RecaptchaResult{Success: true}
	}
	return result
}

// VerifyAndRecord 校验并在失败时写检测日志
func (g *RecaptchaGate) VerifyAndRecord(ctx context.Context, actor Actor, token, action, contentType string) RecaptchaResult {
	result := g.Verify(ctx, token, action, actor.IP)
	if !result.Success {
		g.logs.Record(ctx, DetectionEntry{
			Actor:       actor,
			Method:      model.DetectionMethodRecaptcha,
			ContentType: contentType,
			Reason:      result.DetectionReason(),
		})
	}
	return result
}

func (g *RecaptchaGate) verify(ctx context.Context, token, action, remoteIP string) (RecaptchaResult, error) {
	threshold, err := g.thresholds.RecaptchaThreshold(ctx)
	if err != nil {
		return RecaptchaResult{}, fmt.Errorf("load recaptcha threshold: %w", err)
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		form := map[string]string{
			"secret":   g.cfg.SecretKey,
			"response": token,
		}
		if remoteIP != "" {
			form["remoteip"] = remoteIP
		}
		reply := new(siteverifyReply)
		if err := g.client.PostForm(ctx, g.cfg.VerifyURL, form, reply); err != nil {
			return nil, err
		}
		return reply, nil
	})
	if err != nil {
		return RecaptchaResult{}, fmt.Errorf("recaptcha siteverify: %w", err)
	}
	reply := out.(*siteverifyReply)

	result := RecaptchaResult{Success: true, Threshold: &threshold}
	switch {
	case !reply.Success:
		result.FailureReason = RecaptchaReasonRejected
	case reply.Action != action:
		result.FailureReason = RecaptchaReasonActionMismatch
	case reply.Score == nil:
		result.FailureReason = RecaptchaReasonLowScore
	}

	if reply.Score != nil {
		score, err := udecimal.NewFromFloat64(*reply.Score)
		if err != nil {
			return RecaptchaResult{}, fmt.Errorf("parse recaptcha score %v: %w", *reply.Score, err)
		}
		result.Score = &score
		metrics.RecaptchaScore.WithLabelValues(action).Observe(*reply.Score)
		if result.FailureReason == "" && score.Cmp(threshold) < 0 {
			result.FailureReason = RecaptchaReasonLowScore
		}
	}

	outcome := "passed"
	if result.FailureReason != "" {
		outcome = "blocked"
		result.Success = false
		result.ErrorMessage = g.translator.T(i18n.MsgRecaptchaVerificationFailed, nil)
	}

	ev := logger.Info().
		Str("action", action).
		Str("reply_action", reply.Action).
		Str("threshold", threshold.String()).
		Str("result", outcome)
	if result.Score != nil {
		ev = ev.Str("score", result.Score.String())
	}
	if len(reply.ErrorCodes) > 0 {
		ev = ev.Strs("error_codes", reply.ErrorCodes)
	}
	ev.Msg("[reCAPTCHA] Verification finished")

	metrics.RecaptchaVerificationsTotal.WithLabelValues(action, outcome).Inc()
	return result, nil
}
