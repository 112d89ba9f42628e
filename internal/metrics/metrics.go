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
// 検証フロー、バックエンドクライアント、ワーカーから利用する。
type MetricsCollector interface {
	RecordVerification(outcome string)
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
	RecordUnauthorized()
	RecordStoragePurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	verification   *prometheus.CounterVec
	backendStatus  *prometheus.CounterVec
	backendLatency prometheus.Histogram
	unauthorized   prometheus.Counter
	storagePurged  prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		verification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_verification_total",
			Help: "マジックリンク検証の結果別の合計数",
		}, []string{"outcome"}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_backend_status_total",
			Help: "バックエンドAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "console_backend_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_unauthorized_total",
			Help: "401応答によりセッションを破棄した合計数",
		}),
		storagePurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "console_storage_purged_total",
			Help: "アイドル状態のブラウザストレージから削除したキーの合計数",
		}),
	}

	reg.MustRegister(
		c.verification,
		c.backendStatus,
		c.backendLatency,
		c.unauthorized,
		c.storagePurged,
	)

	return c
}

// RecordVerification は検証結果を記録する。
func (c *Collector) RecordVerification(outcome string) {
	c.verification.WithLabelValues(outcome).Inc()
}

// RecordBackendStatus はバックエンドのHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はバックエンド呼び出しのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(duration time.Duration) {
	c.backendLatency.Observe(duration.Seconds())
}

// RecordUnauthorized は401によるセッション破棄を記録する。
func (c *Collector) RecordUnauthorized() {
	c.unauthorized.Inc()
}

// RecordStoragePurged は削除したキー数を記録する。
func (c *Collector) RecordStoragePurged(count int64) {
	c.storagePurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
