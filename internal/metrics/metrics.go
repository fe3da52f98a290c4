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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string, stage string)
	RecordHTTPStatus(statusCode int)
	RecordOAuthExchangeLatency(provider string, duration time.Duration)
	RecordItemMutation(operation string)
	RecordSessionsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    *prometheus.CounterVec
	loginFail       *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	exchangeLatency *prometheus.HistogramVec
	itemMutations   *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propsdb_login_success_total",
			Help: "プロバイダー別のログイン成功の合計数",
		}, []string{"provider"}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propsdb_login_fail_total",
			Help: "プロバイダー・失敗段階別のログイン失敗の合計数",
		}, []string{"provider", "stage"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propsdb_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propsdb_oauth_exchange_latency_seconds",
			Help:    "OAuthコード交換とプロフィール取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		itemMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "propsdb_item_mutations_total",
			Help: "操作種別ごとのアイテム変更の合計数",
		}, []string{"operation"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "propsdb_sessions_cleaned_total",
			Help: "クリーンアップワーカーが削除した期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.httpStatus,
		c.exchangeLatency,
		c.itemMutations,
		c.sessionsCleaned,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess(provider string) {
	c.loginSuccess.WithLabelValues(provider).Inc()
}

// RecordLoginFailure はログイン失敗を失敗段階（state, exchange, profile, internal）付きで記録する。
func (c *Collector) RecordLoginFailure(provider string, stage string) {
	c.loginFail.WithLabelValues(provider, stage).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordOAuthExchangeLatency はOAuthコード交換のレイテンシを記録する。
func (c *Collector) RecordOAuthExchangeLatency(provider string, duration time.Duration) {
	c.exchangeLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordItemMutation はアイテムの変更操作（create, update, delete）を記録する。
func (c *Collector) RecordItemMutation(operation string) {
	c.itemMutations.WithLabelValues(operation).Inc()
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
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

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
