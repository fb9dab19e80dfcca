// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/jobtracker/internal/repository"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、ストアのデコレータ、認証サービスから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	ObserveStoreOperation(backend, op string, duration time.Duration, err error)
	ObserveLogin(provider string, success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	logins       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_http_requests_total",
			Help: "ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobtracker_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_store_operations_total",
			Help: "レコードストア操作の結果別の合計数",
		}, []string{"backend", "op", "result"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobtracker_store_operation_duration_seconds",
			Help:    "レコードストア操作のレイテンシ（秒）",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"backend", "op"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobtracker_logins_total",
			Help: "プロバイダ別のログイン試行数",
		}, []string{"provider", "result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.storeOps,
		c.storeLatency,
		c.logins,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果とレイテンシを記録する。
// routeにはchiのルートパターンを渡し、ラベルのカーディナリティを抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveStoreOperation はストア操作の結果を記録する。
// ErrNotFoundは障害ではないためnot_foundとして区別する。
func (c *Collector) ObserveStoreOperation(backend, op string, duration time.Duration, err error) {
	result := "ok"
	switch {
	case errors.Is(err, repository.ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	c.storeOps.WithLabelValues(backend, op, result).Inc()
	c.storeLatency.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// ObserveLogin はOAuthログインの成否を記録する。
func (c *Collector) ObserveLogin(provider string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.logins.WithLabelValues(provider, result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector         = (*Collector)(nil)
	_ repository.StoreObserver = (*Collector)(nil)
)
