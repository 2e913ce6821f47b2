// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// パイプラインやサービス層から利用する。
type MetricsCollector interface {
	RecordPassSuccess(pass string)
	RecordPassFailure(pass string)
	RecordPassLatency(pass string, duration time.Duration)
	RecordLLMRetry()
	RecordParseFallback(pass string)
	RecordPublishSuccess()
	RecordPublishFailure()
	RecordNotifySuccess(provider string)
	RecordNotifyFailure()
	RecordAlertDetected()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	passSuccess   *prometheus.CounterVec
	passFail      *prometheus.CounterVec
	passLatency   *prometheus.HistogramVec
	llmRetry      prometheus.Counter
	parseFallback *prometheus.CounterVec
	publishOK     prometheus.Counter
	publishFail   prometheus.Counter
	notifyOK      *prometheus.CounterVec
	notifyFail    prometheus.Counter
	alertDetected prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		passSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogengine_pass_success_total",
			Help: "パイプラインパス成功の合計数",
		}, []string{"pass"}),
		passFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogengine_pass_fail_total",
			Help: "パイプラインパス失敗の合計数",
		}, []string{"pass"}),
		passLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogengine_pass_latency_seconds",
			Help:    "パイプラインパスのレイテンシ（秒）",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pass"}),
		llmRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogengine_llm_retry_total",
			Help: "生成サービスのレート制限リトライの合計数",
		}),
		parseFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogengine_parse_fallback_total",
			Help: "構造化レスポンスのパース失敗によるフォールバックの合計数",
		}, []string{"pass"}),
		publishOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogengine_publish_success_total",
			Help: "公開先へのプッシュ成功の合計数",
		}),
		publishFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogengine_publish_fail_total",
			Help: "公開先へのプッシュ失敗の合計数",
		}),
		notifyOK: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogengine_notify_success_total",
			Help: "通知送信成功のプロバイダ別合計数",
		}, []string{"provider"}),
		notifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogengine_notify_fail_total",
			Help: "全プロバイダで失敗した通知の合計数",
		}),
		alertDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogengine_alert_detected_total",
			Help: "検出されたニュースアラートの合計数",
		}),
	}

	reg.MustRegister(
		c.passSuccess,
		c.passFail,
		c.passLatency,
		c.llmRetry,
		c.parseFallback,
		c.publishOK,
		c.publishFail,
		c.notifyOK,
		c.notifyFail,
		c.alertDetected,
	)

	return c
}

// RecordPassSuccess はパス成功を記録する。
func (c *Collector) RecordPassSuccess(pass string) {
	c.passSuccess.WithLabelValues(pass).Inc()
}

// RecordPassFailure はパス失敗を記録する。
func (c *Collector) RecordPassFailure(pass string) {
	c.passFail.WithLabelValues(pass).Inc()
}

// RecordPassLatency はパスのレイテンシを記録する。
func (c *Collector) RecordPassLatency(pass string, duration time.Duration) {
	c.passLatency.WithLabelValues(pass).Observe(duration.Seconds())
}

// RecordLLMRetry は生成サービスのリトライを記録する。
func (c *Collector) RecordLLMRetry() {
	c.llmRetry.Inc()
}

// RecordParseFallback はパースフォールバックの発生を記録する。
func (c *Collector) RecordParseFallback(pass string) {
	c.parseFallback.WithLabelValues(pass).Inc()
}

// RecordPublishSuccess は公開成功を記録する。
func (c *Collector) RecordPublishSuccess() {
	c.publishOK.Inc()
}

// RecordPublishFailure は公開失敗を記録する。
func (c *Collector) RecordPublishFailure() {
	c.publishFail.Inc()
}

// RecordNotifySuccess は通知成功をプロバイダ別に記録する。
func (c *Collector) RecordNotifySuccess(provider string) {
	c.notifyOK.WithLabelValues(provider).Inc()
}

// RecordNotifyFailure は通知の最終失敗を記録する。
func (c *Collector) RecordNotifyFailure() {
	c.notifyFail.Inc()
}

// RecordAlertDetected はニュースアラートの検出を記録する。
func (c *Collector) RecordAlertDetected() {
	c.alertDetected.Inc()
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
