package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// KernelMetrics tracks gate and ledger activity for a single kernel
// instance. It is safe for concurrent use.
type KernelMetrics struct {
	decisions    *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	ledgerDepth  prometheus.Gauge
	ledgerErrors *prometheus.CounterVec
}

var (
	kernelMetricsOnce sync.Once
	kernelRegistry    *KernelMetrics
)

// Metrics returns the process-wide lazily-initialised kernel metrics
// registry and registers its collectors with the default Prometheus
// registerer exactly once.
func Metrics() *KernelMetrics {
	kernelMetricsOnce.Do(func() {
		kernelRegistry = &KernelMetrics{
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "kernel",
				Subsystem: "gate",
				Name:      "decisions_total",
				Help:      "Total commitment gate decisions segmented by final outcome.",
			}, []string{"outcome"}),
			stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "kernel",
				Subsystem: "gate",
				Name:      "stage_duration_seconds",
				Help:      "Latency distribution for each gate pipeline stage.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stage"}),
			ledgerDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "kernel",
				Subsystem: "ledger",
				Name:      "depth",
				Help:      "Number of entries currently held in the ledger.",
			}),
			ledgerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "kernel",
				Subsystem: "ledger",
				Name:      "append_errors_total",
				Help:      "Count of ledger append attempts rejected, segmented by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			kernelRegistry.decisions,
			kernelRegistry.stageLatency,
			kernelRegistry.ledgerDepth,
			kernelRegistry.ledgerErrors,
		)
	})
	return kernelRegistry
}

// ObserveDecision records a completed gate decision.
func (m *KernelMetrics) ObserveDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

// ObserveStage records the latency of a single pipeline stage.
func (m *KernelMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// SetLedgerDepth reports the current number of entries in the ledger.
func (m *KernelMetrics) SetLedgerDepth(n int) {
	if m == nil {
		return
	}
	m.ledgerDepth.Set(float64(n))
}

// ObserveLedgerError records a rejected ledger append, segmented by reason.
func (m *KernelMetrics) ObserveLedgerError(reason string) {
	if m == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(reason).Inc()
}
