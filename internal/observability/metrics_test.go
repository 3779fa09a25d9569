package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.DecisionCounter.WithLabelValues("deny", "critical_risk").Inc()
	m.DecisionDuration.WithLabelValues("deny").Observe(0.002)
	m.ScanCounter.WithLabelValues("critical").Inc()
	m.PendingApprovals.Inc()
	m.ApprovalResolutions.WithLabelValues("approved").Inc()
	m.AuditFailures.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"warden_decisions_total",
		"warden_decision_duration_seconds",
		"warden_injection_scans_total",
		"warden_pending_approvals",
		"warden_approval_resolutions_total",
		"warden_audit_failures_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewMetricsIndependentRegistries(t *testing.T) {
	// Two engines in one process must not collide on registration.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}
