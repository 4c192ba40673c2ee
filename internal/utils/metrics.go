package utils

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tracks messaging metrics across the system on a private prometheus registry.
type MetricsCollector struct {
	registry *prometheus.Registry

	envelopes         *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	deliveries        prometheus.Counter
	deliveryFailures  prometheus.Counter
	connections       prometheus.Gauge
	operationLatency  *prometheus.HistogramVec
	requestCount      prometheus.Counter
	requestErrorCount prometheus.Counter

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		registry: prometheus.NewRegistry(),
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "messaging",
			Name:      "envelopes_received_total",
			Help:      "Inbound socket envelopes by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "messaging",
			Name:      "envelopes_dropped_total",
			Help:      "Inbound socket envelopes dropped without effect, by reason.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "messaging",
			Name:      "deliveries_total",
			Help:      "Outbound envelopes queued on live connections.",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "messaging",
			Name:      "delivery_failures_total",
			Help:      "Outbound envelopes that could not be queued on a connection.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "messaging",
			Name:      "connections",
			Help:      "Authenticated connections in the registry.",
		}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Message store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		requestCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "REST requests served.",
		}),
		requestErrorCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "http",
			Name:      "request_errors_total",
			Help:      "REST requests answered with a 5xx status.",
		}),
		systemStartTime: time.Now(),
	}

	mc.registry.MustRegister(
		mc.envelopes,
		mc.dropped,
		mc.deliveries,
		mc.deliveryFailures,
		mc.connections,
		mc.operationLatency,
		mc.requestCount,
		mc.requestErrorCount,
	)
	return mc
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.requestCount.Inc()
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.requestErrorCount.Inc()
}

func (mc *MetricsCollector) IncrementEnvelopes(envelopeType string) {
	mc.envelopes.WithLabelValues(envelopeType).Inc()
}

func (mc *MetricsCollector) IncrementDropped(reason string) {
	mc.dropped.WithLabelValues(reason).Inc()
}

func (mc *MetricsCollector) AddDeliveries(n int) {
	mc.deliveries.Add(float64(n))
}

func (mc *MetricsCollector) IncrementDeliveryFailures() {
	mc.deliveryFailures.Inc()
}

func (mc *MetricsCollector) SetConnections(n int) {
	mc.connections.Set(float64(n))
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.operationLatency.WithLabelValues(operationName).Observe(duration.Seconds())
}

func (mc *MetricsCollector) Uptime() time.Duration {
	return time.Since(mc.systemStartTime)
}

// Registry exposes the underlying registry, mostly for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the collected metrics in the prometheus text format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
}
