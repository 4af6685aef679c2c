// Package metrics 提供审核流水线的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RejectionsTotal 拦截次数，按检测方式与内容种类区分
	RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_rejections_total",
		Help: "Total number of rejected submissions",
	}, []string{"method", "content_type"})

	// ReadonlyRejectionsTotal 只读模式下被拒绝的写请求数
	ReadonlyRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moderation_readonly_rejections_total",
		Help: "Total number of mutating requests rejected during readonly mode",
	})

	// RecaptchaVerificationsTotal reCAPTCHA 校验结果，result = passed, blocked, token_missing, error, skipped
	RecaptchaVerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_recaptcha_verifications_total",
		Help: "Total number of reCAPTCHA verifications by result",
	}, []string{"action", "result"})

	// RecaptchaScore reCAPTCHA 返回分数分布
	RecaptchaScore = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moderation_recaptcha_score",
		Help:    "Distribution of reCAPTCHA scores",
		Buckets: []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1},
	}, []string{"action"})

	// CommentTransitionsTotal 评论状态迁移次数
	CommentTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_comment_transitions_total",
		Help: "Total number of comment status transitions",
	}, []string{"kind", "to"})

	// DesignationsTotal 垃圾认定处理的项目数，result = success, failed
	DesignationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_spam_designations_total",
		Help: "Total number of projects processed by spam designation",
	}, []string{"result"})

	// JobRunsTotal 延迟任务执行次数
	JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_job_runs_total",
		Help: "Total number of deferred job runs",
	}, []string{"job", "result"})
)

func init() {
	prometheus.MustRegister(
		RejectionsTotal,
		ReadonlyRejectionsTotal,
		RecaptchaVerificationsTotal,
		RecaptchaScore,
		CommentTransitionsTotal,
		DesignationsTotal,
		JobRunsTotal,
	)
}

// Handler 返回 Prometheus 指标 HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
