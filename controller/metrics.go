package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dataplane-sh/chunkctl/internal/percentile"
)

// Metrics publishes the progress-counter buckets (spec §3 Progress counter)
// and dispatch-cycle latency as real Prometheus collectors, exercising
// `github.com/prometheus/client_golang` the way Sumatoshi-tech-codefang's
// observability package wires a registry directly rather than hand-rolling
// a metrics sink — the "enriched observability" ambient concern every
// production controller service carries even though spec §1 places
// cluster-node heartbeat transport and scheduling fairness out of scope for
// the scheduling *logic* itself.
type Metrics struct {
	registry *prometheus.Registry

	jobsByBucket   *prometheus.GaugeVec
	dataWeight     *prometheus.GaugeVec
	dispatchLatency *prometheus.HistogramVec

	dispatchTracker *percentile.Tracker
}

// NewMetrics constructs a Metrics instance with its own Prometheus registry
// (one per operation attempt, matching Sumatoshi-tech-codefang's
// PrometheusHandler doc comment: "each call creates an independent registry
// to avoid collector conflicts").
func NewMetrics(operationID string) *Metrics {
	registry := prometheus.NewRegistry()

	jobsByBucket := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chunkctl",
		Subsystem: "controller",
		Name:      "jobs",
		Help:      "Job counts by progress-counter bucket (spec §3).",
		ConstLabels: prometheus.Labels{
			"operation_id": operationID,
		},
	}, []string{"bucket"})

	dataWeight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chunkctl",
		Subsystem: "controller",
		Name:      "data_weight_bytes",
		Help:      "Pending/total data weight tracked by a task's chunk pool.",
		ConstLabels: prometheus.Labels{
			"operation_id": operationID,
		},
	}, []string{"kind"})

	dispatchLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chunkctl",
		Subsystem: "controller",
		Name:      "dispatch_cycle_seconds",
		Help:      "Wall-clock duration of one scheduler dispatch cycle (spec §4.8).",
		Buckets:   prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{
			"operation_id": operationID,
		},
	}, []string{"outcome"})

	registry.MustRegister(jobsByBucket, dataWeight, dispatchLatency)

	return &Metrics{
		registry:        registry,
		jobsByBucket:    jobsByBucket,
		dataWeight:      dataWeight,
		dispatchLatency: dispatchLatency,
		dispatchTracker: percentile.NewTracker(),
	}
}

// Registry returns the Prometheus registry a host process can serve via
// promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveProgress records the seven progress-counter buckets.
func (m *Metrics) ObserveProgress(pending, running, completed, failed, aborted, lost, suspended int64) {
	m.jobsByBucket.WithLabelValues("pending").Set(float64(pending))
	m.jobsByBucket.WithLabelValues("running").Set(float64(running))
	m.jobsByBucket.WithLabelValues("completed").Set(float64(completed))
	m.jobsByBucket.WithLabelValues("failed").Set(float64(failed))
	m.jobsByBucket.WithLabelValues("aborted").Set(float64(aborted))
	m.jobsByBucket.WithLabelValues("lost").Set(float64(lost))
	m.jobsByBucket.WithLabelValues("suspended").Set(float64(suspended))
}

// ObserveDataWeight records pending vs total data weight.
func (m *Metrics) ObserveDataWeight(pending, total int64) {
	m.dataWeight.WithLabelValues("pending").Set(float64(pending))
	m.dataWeight.WithLabelValues("total").Set(float64(total))
}

// ObserveDispatch records how long one dispatch cycle took, and whether it
// actually scheduled a job, into both the Prometheus histogram and the
// in-process P-Square tracker (the latter backs DispatchLatencyP99 for
// callers that want a quantile without scraping /metrics).
func (m *Metrics) ObserveDispatch(d time.Duration, scheduled bool) {
	outcome := "idle"
	if scheduled {
		outcome = "scheduled"
	}
	seconds := d.Seconds()
	m.dispatchLatency.WithLabelValues(outcome).Observe(seconds)
	m.dispatchTracker.Observe(seconds)
}

// DispatchLatencyP99 returns the P-Square-estimated 99th percentile
// dispatch-cycle latency observed so far.
func (m *Metrics) DispatchLatencyP99() float64 { return m.dispatchTracker.P99() }
