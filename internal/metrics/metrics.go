// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Collector はPrometheusメトリクスを収集する実装。
// apiclient.Metrics と guard.Observer を満たす。
type Collector struct {
	apiRequests       *prometheus.CounterVec
	apiLatency        *prometheus.HistogramVec
	unauthorized      prometheus.Counter
	guardDecisions    *prometheus.CounterVec
	countdownRedirect *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "リモートAPIへのリクエスト数（メソッド・ステータス別）",
		}, []string{"method", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "リモートAPIのレイテンシ（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_unauthorized_total",
			Help:      "リモートAPIが401を返した回数",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "ルートガードの判定数（状態別）",
		}, []string{"state"}),
		countdownRedirect: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_redirects_total",
			Help:      "ルートガードによる遷移数（理由別）",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.unauthorized,
		c.guardDecisions,
		c.countdownRedirect,
	)

	return c
}

// RegisterActiveVisitors は保持中の訪問者ワークスペース数をゲージとして登録する。
func RegisterActiveVisitors(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_visitors",
		Help:      "メモリ上に保持している訪問者ワークスペース数",
	}, func() float64 { return float64(count()) }))
}

// ObserveAPIRequest はリモートAPIへのリクエスト1件を記録する。
// statusが0の場合は通信エラーとして記録する。
func (c *Collector) ObserveAPIRequest(method string, status int, duration time.Duration) {
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(method, label).Inc()
	c.apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveUnauthorized は401の通知を記録する。
func (c *Collector) ObserveUnauthorized() {
	c.unauthorized.Inc()
}

// ObserveGuardDecision はルートガードの判定を記録する。
func (c *Collector) ObserveGuardDecision(state string) {
	c.guardDecisions.WithLabelValues(state).Inc()
}

// ObserveCountdownRedirect はルートガードによる遷移を記録する。
func (c *Collector) ObserveCountdownRedirect(reason string) {
	c.countdownRedirect.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
