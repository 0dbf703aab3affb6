// Package metrics exposes the supervisor's Prometheus instrumentation:
// probe outcomes, fix attempts, SLA violations, and circuit-breaker state
// transitions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesExecutedTotal counts every endpoint probe attempt, labeled by
	// endpoint and outcome (success, failure, breaker_open).
	ProbesExecutedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "probes_executed_total",
		Help: "Total number of endpoint probes executed.",
	}, []string{"endpoint", "outcome"})

	// ProbeDuration records endpoint probe latency.
	ProbeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "probe_duration_seconds",
		Help:    "Duration of individual endpoint probes.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// SessionsCompletedTotal counts completed probe sessions, labeled by
	// overall verdict (excellent, good, fair, poor, critical, error).
	SessionsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessions_completed_total",
		Help: "Total number of probe sessions completed, by verdict.",
	}, []string{"verdict"})

	// SessionDuration records full probe-session wall-clock time.
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_duration_seconds",
		Help:    "Duration of a full probe session.",
		Buckets: prometheus.DefBuckets,
	})

	// BreakerStateTransitionsTotal counts circuit-breaker state changes.
	BreakerStateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_state_transitions_total",
		Help: "Total number of circuit breaker state transitions.",
	}, []string{"endpoint", "from_state", "to_state"})

	// BreakerOpenGauge reports 1 while the given endpoint's breaker is open.
	BreakerOpenGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_open",
		Help: "1 if the circuit breaker for this endpoint is currently open.",
	}, []string{"endpoint"})

	// FixesAttemptedTotal counts auto-fix attempts, labeled by pattern key
	// and outcome.
	FixesAttemptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixes_attempted_total",
		Help: "Total number of auto-fix attempts.",
	}, []string{"pattern_key", "outcome"})

	// FixSuccessRate mirrors the knowledge store's per-pattern success rate.
	FixSuccessRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fix_success_rate",
		Help: "Historical success rate for a fix pattern, 0.0-1.0.",
	}, []string{"pattern_key"})

	// SLAViolationsTotal counts individual performance samples exceeding the
	// SLA threshold.
	SLAViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sla_violations_total",
		Help: "Total number of performance samples that violated the SLA threshold.",
	}, []string{"endpoint"})

	// SLAComplianceRatio reports the SLA monitor's latest compliance
	// fraction per tick.
	SLAComplianceRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sla_compliance_ratio",
		Help: "Fraction of the latest SLA-monitor tick's samples within the SLA threshold.",
	})

	// AlertsDispatchedTotal counts alerts sent to the external sink, labeled
	// by severity.
	AlertsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_dispatched_total",
		Help: "Total number of alerts dispatched, by severity.",
	}, []string{"severity"})

	// AlertsDedupedTotal counts alerts suppressed by the dispatcher's
	// dedup set.
	AlertsDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_deduped_total",
		Help: "Total number of alerts suppressed as duplicates.",
	})

	// CoordinationPeersConnected reports the number of peers currently
	// attached to the coordination bus.
	CoordinationPeersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coordination_peers_connected",
		Help: "Number of peer agents currently connected to the coordination bus.",
	})

	// CoordinationMessagesTotal counts bus messages, labeled by type and
	// direction (inbound, outbound).
	CoordinationMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coordination_messages_total",
		Help: "Total number of coordination bus messages, by type and direction.",
	}, []string{"message_type", "direction"})
)

// RecordProbe records the outcome and duration of a single endpoint probe.
func RecordProbe(endpoint, outcome string, duration time.Duration) {
	ProbesExecutedTotal.WithLabelValues(endpoint, outcome).Inc()
	ProbeDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSession records the verdict and duration of a completed probe
// session.
func RecordSession(verdict string, duration time.Duration) {
	SessionsCompletedTotal.WithLabelValues(verdict).Inc()
	SessionDuration.Observe(duration.Seconds())
}

// RecordBreakerTransition records a circuit breaker state change and
// updates the open-state gauge.
func RecordBreakerTransition(endpoint, fromState, toState string) {
	BreakerStateTransitionsTotal.WithLabelValues(endpoint, fromState, toState).Inc()
	if toState == "open" {
		BreakerOpenGauge.WithLabelValues(endpoint).Set(1)
	} else {
		BreakerOpenGauge.WithLabelValues(endpoint).Set(0)
	}
}

// RecordFixAttempt records an auto-fix attempt's outcome and refreshes the
// pattern's success-rate gauge.
func RecordFixAttempt(patternKey, outcome string, successRate float64) {
	FixesAttemptedTotal.WithLabelValues(patternKey, outcome).Inc()
	FixSuccessRate.WithLabelValues(patternKey).Set(successRate)
}

// RecordSLASample records a single performance sample's SLA outcome.
func RecordSLASample(endpoint string, withinSLA bool) {
	if !withinSLA {
		SLAViolationsTotal.WithLabelValues(endpoint).Inc()
	}
}

// SetSLACompliance reports the latest tick's compliance ratio.
func SetSLACompliance(ratio float64) {
	SLAComplianceRatio.Set(ratio)
}

// RecordAlert records a dispatched alert at the given severity.
func RecordAlert(severity string) {
	AlertsDispatchedTotal.WithLabelValues(severity).Inc()
}

// RecordAlertDeduped records a suppressed duplicate alert.
func RecordAlertDeduped() {
	AlertsDedupedTotal.Inc()
}

// SetCoordinationPeers reports the current peer connection count.
func SetCoordinationPeers(count int) {
	CoordinationPeersConnected.Set(float64(count))
}

// RecordCoordinationMessage records a bus message by type and direction.
func RecordCoordinationMessage(messageType, direction string) {
	CoordinationMessagesTotal.WithLabelValues(messageType, direction).Inc()
}

// Timer measures elapsed wall-clock time for a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the time elapsed since the timer was created.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
