package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "igniterx"

var (
	providerOnce     sync.Once
	providerRegistry *ProviderMetrics

	middlemanOnce     sync.Once
	middlemanRegistry *MiddlemanMetrics
)

// ProviderMetrics tracks reconciliation, remediation and allocation.
type ProviderMetrics struct {
	transitions  *prometheus.CounterVec
	staleUpdates prometheus.Counter
	findings     *prometheus.CounterVec
	remediations *prometheus.CounterVec
	allocated    *prometheus.CounterVec
	allocLatency prometheus.Histogram
}

// Provider returns the lazily registered provider metrics.
func Provider() *ProviderMetrics {
	providerOnce.Do(func() {
		providerRegistry = &ProviderMetrics{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "transitions_total",
				Help:      "Key state transitions applied by supplier status reconciliation.",
			}, []string{"from", "to"}),
			staleUpdates: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "reconcile",
				Name:      "stale_updates_total",
				Help:      "Key updates dropped because the row was refreshed at a later height.",
			}),
			findings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remediation",
				Name:      "findings_total",
				Help:      "Remediation findings recorded, by reason.",
			}, []string{"reason"}),
			remediations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "remediation",
				Name:      "attempts_total",
				Help:      "Corrective stakes attempted, by outcome.",
			}, []string{"outcome"}),
			allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "allocation",
				Name:      "keys_total",
				Help:      "Keys handed out by the allocation engine, by origin.",
			}, []string{"origin"}),
			allocLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "allocation",
				Name:      "duration_seconds",
				Help:      "Latency of committed allocations.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			providerRegistry.transitions,
			providerRegistry.staleUpdates,
			providerRegistry.findings,
			providerRegistry.remediations,
			providerRegistry.allocated,
			providerRegistry.allocLatency,
		)
	})
	return providerRegistry
}

func (m *ProviderMetrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.transitions.WithLabelValues(label(from), label(to)).Inc()
}

func (m *ProviderMetrics) RecordStaleUpdate() {
	if m == nil {
		return
	}
	m.staleUpdates.Inc()
}

func (m *ProviderMetrics) RecordFinding(reason string) {
	if m == nil {
		return
	}
	m.findings.WithLabelValues(label(reason)).Inc()
}

// RecordRemediation counts a corrective stake; outcome is success, failure or error.
func (m *ProviderMetrics) RecordRemediation(outcome string) {
	if m == nil {
		return
	}
	m.remediations.WithLabelValues(label(outcome)).Inc()
}

// RecordAllocation counts reserved and generated keys of one committed allocation.
func (m *ProviderMetrics) RecordAllocation(reserved, generated int, d time.Duration) {
	if m == nil {
		return
	}
	m.allocated.WithLabelValues("reserved").Add(float64(reserved))
	m.allocated.WithLabelValues("generated").Add(float64(generated))
	m.allocLatency.Observe(d.Seconds())
}

// MiddlemanMetrics tracks transaction execution.
type MiddlemanMetrics struct {
	transactions *prometheus.CounterVec
	waitBlocks   prometheus.Histogram
	notify       *prometheus.CounterVec
}

// Middleman returns the lazily registered middleman metrics.
func Middleman() *MiddlemanMetrics {
	middlemanOnce.Do(func() {
		middlemanRegistry = &MiddlemanMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transactions",
				Name:      "finished_total",
				Help:      "Transactions driven to a terminal status, by type and status.",
			}, []string{"type", "status"}),
			waitBlocks: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transactions",
				Name:      "inclusion_wait_seconds",
				Help:      "Time spent waiting for the block after submission.",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 900, 1800},
			}),
			notify: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "published_total",
				Help:      "Provider notifications published, by kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			middlemanRegistry.transactions,
			middlemanRegistry.waitBlocks,
			middlemanRegistry.notify,
		)
	})
	return middlemanRegistry
}

func (m *MiddlemanMetrics) RecordTransaction(txType, status string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(label(txType), label(status)).Inc()
}

func (m *MiddlemanMetrics) ObserveWait(d time.Duration) {
	if m == nil {
		return
	}
	m.waitBlocks.Observe(d.Seconds())
}

func (m *MiddlemanMetrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.notify.WithLabelValues(label(kind)).Inc()
}

func label(v string) string {
	if v = strings.TrimSpace(v); v == "" {
		return "unspecified"
	}
	return v
}
