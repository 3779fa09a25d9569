package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting decision-engine
// metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Decision outcomes by verdict and deciding rule
//   - Decision latency for the full pipeline
//   - Injection scan hits by severity
//   - Pending human approvals and their resolutions
//   - Audit sink write failures (swallowed, but counted)
type Metrics struct {
	// DecisionCounter counts pipeline decisions.
	// Labels: verdict (allow|deny|require_approval), rule
	DecisionCounter *prometheus.CounterVec

	// DecisionDuration measures full pipeline latency in seconds.
	// Labels: verdict
	DecisionDuration *prometheus.HistogramVec

	// ScanCounter counts injection scans that produced at least one match.
	// Labels: severity (low|medium|high|critical)
	ScanCounter *prometheus.CounterVec

	// PendingApprovals gauges tool calls currently awaiting a human verdict.
	PendingApprovals prometheus.Gauge

	// ApprovalResolutions counts resolved approvals.
	// Labels: outcome (approved|denied|timeout)
	ApprovalResolutions *prometheus.CounterVec

	// AuditFailures counts audit sink write failures. Failures never change
	// a verdict, so this counter is the only place they surface.
	AuditFailures prometheus.Counter
}

// NewMetrics creates the metric set registered against reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DecisionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_decisions_total",
				Help: "Total pipeline decisions by verdict and deciding rule",
			},
			[]string{"verdict", "rule"},
		),
		DecisionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_decision_duration_seconds",
				Help:    "Full decision pipeline latency in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"verdict"},
		),
		ScanCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_injection_scans_total",
				Help: "Injection scans with at least one match, by max severity",
			},
			[]string{"severity"},
		),
		PendingApprovals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "warden_pending_approvals",
				Help: "Tool calls currently awaiting a human verdict",
			},
		),
		ApprovalResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_approval_resolutions_total",
				Help: "Resolved approval requests by outcome",
			},
			[]string{"outcome"},
		),
		AuditFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_audit_failures_total",
				Help: "Audit sink write failures (logged and swallowed)",
			},
		),
	}
}
