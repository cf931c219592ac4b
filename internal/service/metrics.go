package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hugo-lorenzo-mato/helix/internal/core"
)

const metricsNamespace = "helix"

// Outcome labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	OutcomeSucceeded = "succeeded"
	OutcomeRerouted  = "rerouted"
	OutcomeAborted   = "aborted"
	OutcomeCanceled  = "canceled"

	OutcomeMisconfigured = "misconfigured"
)

// Metrics holds Prometheus instruments for workflow execution.
//
// Exposed series:
//   - helix_phase_attempts_total{phase,result}
//   - helix_phase_duration_seconds{phase}
//   - helix_phase_retries_total{phase}
//   - helix_workflow_reroutes_total{phase}
//   - helix_workflow_runs_total{outcome}
//   - helix_checkpoint_writes_total{result}
type Metrics struct {
	PhaseAttempts    *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	PhaseRetries     *prometheus.CounterVec
	Reroutes         *prometheus.CounterVec
	Runs             *prometheus.CounterVec
	CheckpointWrites *prometheus.CounterVec
}

// NewMetrics creates the instruments and registers them with reg.
// A nil registerer creates unregistered instruments, which keeps tests and
// one-shot CLI runs free of global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PhaseAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "phase",
				Name:      "attempts_total",
				Help:      "Phase collaborator invocations by outcome",
			},
			[]string{"phase", "result"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "phase",
				Name:      "duration_seconds",
				Help:      "Duration of a single phase attempt",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43m
			},
			[]string{"phase"},
		),
		PhaseRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "phase",
				Name:      "retries_total",
				Help:      "Same-phase retries granted",
			},
			[]string{"phase"},
		),
		Reroutes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "workflow",
				Name:      "reroutes_total",
				Help:      "Runs switched to an alternative path, by failed phase",
			},
			[]string{"phase"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Finished runs by outcome",
			},
			[]string{"outcome"},
		),
		CheckpointWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "checkpoint",
				Name:      "writes_total",
				Help:      "Checkpoint writes by result",
			},
			[]string{"result"},
		),
	}
}

// RecordAttempt records one phase attempt.
func (m *Metrics) RecordAttempt(phase core.Phase, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.PhaseAttempts.WithLabelValues(string(phase), result).Inc()
	m.PhaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

// RecordRetry records a granted retry.
func (m *Metrics) RecordRetry(phase core.Phase) {
	if m == nil {
		return
	}
	m.PhaseRetries.WithLabelValues(string(phase)).Inc()
}

// RecordReroute records a switch to an alternative path.
func (m *Metrics) RecordReroute(failed core.Phase) {
	if m == nil {
		return
	}
	m.Reroutes.WithLabelValues(string(failed)).Inc()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

// RecordCheckpoint records a checkpoint write.
func (m *Metrics) RecordCheckpoint(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.CheckpointWrites.WithLabelValues(result).Inc()
}
