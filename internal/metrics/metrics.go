// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// コーディネーターとリモートクライアントから利用する。
type MetricsCollector interface {
	RecordRefreshSuccess()
	RecordRefreshFailure(kind string)
	RecordBookmarkSync(result string)
	RecordRemoteLatency(operation string, seconds float64)
	RecordHTTPStatus(operation string, statusCode int)
	SetDirtyArticles(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	refreshSuccess prometheus.Counter
	refreshFail    *prometheus.CounterVec
	bookmarkSync   *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
	dirtyArticles  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orbit_refresh_success_total",
			Help: "記事一覧更新成功の合計数",
		}),
		refreshFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_refresh_fail_total",
			Help: "記事一覧更新失敗の合計数（エラー分類別）",
		}, []string{"kind"}),
		bookmarkSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_bookmark_sync_total",
			Help: "ブックマーク同期結果の合計数（confirmed/deferred/rolled_back/rejected）",
		}, []string{"result"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orbit_remote_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbit_remote_http_status_total",
			Help: "リモートAPIのHTTPステータスコード別レスポンス数",
		}, []string{"operation", "status_code"}),
		dirtyArticles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orbit_dirty_articles",
			Help: "リモート未確認のブックマーク変更を持つ記事数",
		}),
	}

	reg.MustRegister(
		c.refreshSuccess,
		c.refreshFail,
		c.bookmarkSync,
		c.remoteLatency,
		c.httpStatus,
		c.dirtyArticles,
	)

	return c
}

// RecordRefreshSuccess は記事一覧更新の成功を記録する。
func (c *Collector) RecordRefreshSuccess() {
	c.refreshSuccess.Inc()
}

// RecordRefreshFailure は記事一覧更新の失敗をエラー分類付きで記録する。
func (c *Collector) RecordRefreshFailure(kind string) {
	c.refreshFail.WithLabelValues(kind).Inc()
}

// RecordBookmarkSync はブックマーク同期の結果を記録する。
func (c *Collector) RecordBookmarkSync(result string) {
	c.bookmarkSync.WithLabelValues(result).Inc()
}

// RecordRemoteLatency はリモートAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordRemoteLatency(operation string, seconds float64) {
	c.remoteLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordHTTPStatus はリモートAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(operation string, statusCode int) {
	c.httpStatus.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}

// SetDirtyArticles は現在のdirty記事数を記録する。
func (c *Collector) SetDirtyArticles(count int) {
	c.dirtyArticles.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// インターフェースの実装を強制する
var _ MetricsCollector = (*Collector)(nil)
