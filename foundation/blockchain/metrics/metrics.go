// Package metrics defines the prometheus collectors of the consensus core.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "blacksilk"

// Metrics contains the collectors exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	height         prometheus.Gauge
	blocksAccepted prometheus.Counter
	blocksRejected *prometheus.CounterVec
	txsAccepted    prometheus.Counter
	txsRejected    *prometheus.CounterVec
	mempoolSize    prometheus.Gauge
	peers          prometheus.Gauge
	powDuration    prometheus.Histogram
	powVerdicts    *prometheus.CounterVec
	blacklisted    prometheus.Gauge
	requests       *prometheus.CounterVec
	panics         prometheus.Counter
}

// New constructs the collectors and registers them, along with the Go
// runtime and process collectors, in a private registry.
func New() *Metrics {
	m := Metrics{
		registry: prometheus.NewRegistry(),

		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "height",
			Help:      "Height of the chain tip.",
		}),
		blocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "blocks_accepted_total",
			Help:      "Number of blocks appended to the chain.",
		}),
		blocksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "chain",
			Name:      "blocks_rejected_total",
			Help:      "Number of blocks rejected, by reason category.",
		}, []string{"category"}),
		txsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mempool",
			Name:      "txs_accepted_total",
			Help:      "Number of transactions admitted to the mempool.",
		}),
		txsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "mempool",
			Name:      "txs_rejected_total",
			Help:      "Number of transactions rejected, by reason category.",
		}, []string{"category"}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "mempool",
			Name:      "size",
			Help:      "Number of pending transactions.",
		}),
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "p2p",
			Name:      "peers",
			Help:      "Number of connected peers.",
		}),
		powDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "pow",
			Name:      "verify_duration_seconds",
			Help:      "Time spent executing the proof-of-work program.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		powVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "pow",
			Name:      "verdicts_total",
			Help:      "Number of proof-of-work verifications, by classification.",
		}, []string{"class"}),
		blacklisted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "pow",
			Name:      "blacklisted_peers",
			Help:      "Number of peers blacklisted by the proof-of-work verifier.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of api requests, by status code class.",
		}, []string{"code"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "panics_total",
			Help:      "Number of api handlers that panicked.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.height,
		m.blocksAccepted,
		m.blocksRejected,
		m.txsAccepted,
		m.txsRejected,
		m.mempoolSize,
		m.peers,
		m.powDuration,
		m.powVerdicts,
		m.blacklisted,
		m.requests,
		m.panics,
	)

	return &m
}

// Handler returns the http handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// BlockAccepted records a block appended at height.
func (m *Metrics) BlockAccepted(height uint64) {
	if m == nil {
		return
	}
	m.blocksAccepted.Inc()
	m.height.Set(float64(height))
}

// SetHeight records the height of the chain tip.
func (m *Metrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// BlockRejected records a rejected block.
func (m *Metrics) BlockRejected(category string) {
	if m == nil {
		return
	}
	m.blocksRejected.WithLabelValues(label(category)).Inc()
}

// TxAccepted records a transaction admitted to the mempool.
func (m *Metrics) TxAccepted() {
	if m == nil {
		return
	}
	m.txsAccepted.Inc()
}

// TxRejected records a rejected transaction.
func (m *Metrics) TxRejected(category string) {
	if m == nil {
		return
	}
	m.txsRejected.WithLabelValues(label(category)).Inc()
}

// SetMempoolSize records the number of pending transactions.
func (m *Metrics) SetMempoolSize(n int) {
	if m == nil {
		return
	}
	m.mempoolSize.Set(float64(n))
}

// SetPeers records the number of connected peers.
func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

// PoWVerified records a proof-of-work classification and how long the
// program ran.
func (m *Metrics) PoWVerified(class string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.powVerdicts.WithLabelValues(label(class)).Inc()
	if elapsed > 0 {
		m.powDuration.Observe(elapsed.Seconds())
	}
}

// SetBlacklisted records the number of blacklisted peers.
func (m *Metrics) SetBlacklisted(n int) {
	if m == nil {
		return
	}
	m.blacklisted.Set(float64(n))
}

// Request records a completed api request by status code class.
func (m *Metrics) Request(statusCode int) {
	if m == nil {
		return
	}
	code := "other"
	if statusCode >= 100 && statusCode < 600 {
		code = strconv.Itoa(statusCode/100) + "xx"
	}
	m.requests.WithLabelValues(code).Inc()
}

// Panic records an api handler that panicked.
func (m *Metrics) Panic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

func label(s string) string {
	if s == "" {
		return "other"
	}
	return s
}
