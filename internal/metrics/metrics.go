// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやミドルウェアから利用する。
type MetricsCollector interface {
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string, reason string)
	RecordTokenRefresh()
	RecordSessionRevoked()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(path string, duration time.Duration)
	RecordPostsCreated(count int)
	RecordCommentsCreated(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    *prometheus.CounterVec
	loginFail       *prometheus.CounterVec
	tokenRefresh    prometheus.Counter
	sessionRevoked  prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	postsCreated    prometheus.Counter
	commentsCreated prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sns_login_success_total",
			Help: "ログイン成功の合計数（プロバイダ別）",
		}, []string{"provider"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sns_login_fail_total",
			Help: "ログイン失敗の合計数（プロバイダ別）",
		}, []string{"provider"}),
		tokenRefresh: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sns_token_refresh_total",
			Help: "アクセストークン再発行の合計数",
		}),
		sessionRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sns_session_revoked_total",
			Help: "セッション失効（ログアウト・退会）の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sns_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sns_request_latency_seconds",
			Help:    "リクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sns_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sns_comments_created_total",
			Help: "作成されたコメントの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.tokenRefresh,
		c.sessionRevoked,
		c.httpStatus,
		c.requestLatency,
		c.postsCreated,
		c.commentsCreated,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(provider string) {
	c.loginSuccess.WithLabelValues(provider).Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure(provider string, reason string) {
	c.loginFail.WithLabelValues(provider).Inc()
}

// RecordTokenRefresh はアクセストークンの再発行を記録する。
func (c *Collector) RecordTokenRefresh() {
	c.tokenRefresh.Inc()
}

// RecordSessionRevoked はセッションの失効を記録する。
func (c *Collector) RecordSessionRevoked() {
	c.sessionRevoked.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(path string, duration time.Duration) {
	c.requestLatency.WithLabelValues(path).Observe(duration.Seconds())
}

// RecordPostsCreated は作成された投稿数を記録する。
func (c *Collector) RecordPostsCreated(count int) {
	c.postsCreated.Add(float64(count))
}

// RecordCommentsCreated は作成されたコメント数を記録する。
func (c *Collector) RecordCommentsCreated(count int) {
	c.commentsCreated.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
