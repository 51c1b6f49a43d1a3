package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics records ledger operation activity exposed on /metrics.
type StorefrontMetrics struct {
	requests *prometheus.CounterVec
	payments *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	storefrontOnce sync.Once
	storefrontReg  *StorefrontMetrics
)

// Storefront returns the lazily-initialised metrics registry used to record
// storefront RPC activity.
func Storefront() *StorefrontMetrics {
	storefrontOnce.Do(func() {
		storefrontReg = &StorefrontMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payway",
				Subsystem: "storefront",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "payway",
				Subsystem: "storefront",
				Name:      "payments_total",
				Help:      "Total recorded payments segmented by settlement currency.",
			}, []string{"currency"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "payway",
				Subsystem: "storefront",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(storefrontReg.requests, storefrontReg.payments, storefrontReg.latency)
	})
	return storefrontReg
}

// ObserveRequest records one handled RPC call.
func (m *StorefrontMetrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObservePayment records one settled payment.
func (m *StorefrontMetrics) ObservePayment(currency string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(currency).Inc()
}
