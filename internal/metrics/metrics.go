// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordRateLimitRejected(policy string)
	RecordSetupTokenIssued()
	RecordSetupTokenConsumed()
	RecordSetupTokensPurged(count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess       prometheus.Counter
	loginFail          prometheus.Counter
	rateLimitRejected  *prometheus.CounterVec
	setupTokenIssued   prometheus.Counter
	setupTokenConsumed prometheus.Counter
	setupTokensPurged  prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classhub_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classhub_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classhub_rate_limit_rejected_total",
			Help: "レート制限による拒否の合計数（ポリシー別）",
		}, []string{"policy"}),
		setupTokenIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classhub_setup_tokens_issued_total",
			Help: "発行されたセットアップトークンの合計数",
		}),
		setupTokenConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classhub_setup_tokens_consumed_total",
			Help: "消費されたセットアップトークンの合計数",
		}),
		setupTokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classhub_setup_tokens_purged_total",
			Help: "クリーンアップジョブで削除された期限切れトークンの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classhub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.rateLimitRejected,
		c.setupTokenIssued,
		c.setupTokenConsumed,
		c.setupTokensPurged,
		c.httpStatus,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFail.Inc()
}

// RecordRateLimitRejected はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimitRejected(policy string) {
	c.rateLimitRejected.WithLabelValues(policy).Inc()
}

// RecordSetupTokenIssued はセットアップトークンの発行を記録する。
func (c *Collector) RecordSetupTokenIssued() {
	c.setupTokenIssued.Inc()
}

// RecordSetupTokenConsumed はセットアップトークンの消費を記録する。
func (c *Collector) RecordSetupTokenConsumed() {
	c.setupTokenConsumed.Inc()
}

// RecordSetupTokensPurged はクリーンアップで削除された期限切れトークン数を記録する。
func (c *Collector) RecordSetupTokensPurged(count int64) {
	c.setupTokensPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
