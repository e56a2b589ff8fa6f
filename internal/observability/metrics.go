package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CounterAdjustments counts counter adjustments by outcome
	// (applied, dropped, failed).
	CounterAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelhub_counter_adjust_total",
		Help: "Denormalized counter adjustments by entity, field and outcome",
	}, []string{"kind", "field", "outcome"})

	// RetryAttempts counts re-attempts made by the shared retry policy.
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelhub_retry_attempts_total",
		Help: "Retries of transient store errors by operation",
	}, []string{"op"})

	// CascadeBranchFailures counts cascade branches abandoned after retries.
	CascadeBranchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelhub_cascade_branch_failures_total",
		Help: "Cascade branches that failed after retries",
	}, []string{"root", "branch"})

	// CascadeDuration records wall time of a whole cascade.
	CascadeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelhub_cascade_duration_seconds",
		Help:    "Duration of cascading deletes by root entity kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"root"})

	// CascadeRowsRemoved counts rows deleted by cascades.
	CascadeRowsRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelhub_cascade_rows_removed_total",
		Help: "Rows removed by cascading deletes by entity kind",
	}, []string{"kind"})

	// AuditDiscrepancies is the number of drifted counters seen by the last audit.
	AuditDiscrepancies = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelhub_audit_discrepancies",
		Help: "Counter discrepancies found by the most recent audit",
	}, []string{"kind", "field"})

	// AuditOrphans is the number of orphaned rows seen by the last audit.
	AuditOrphans = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reelhub_audit_orphans",
		Help: "Orphaned rows found by the most recent audit",
	}, []string{"kind"})

	// ActiveWebSockets is the number of open notification streams.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelhub_websockets_active",
		Help: "Open notification websocket connections",
	})

	// WebSocketDrops counts events not delivered to a websocket client.
	WebSocketDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelhub_websocket_drops_total",
		Help: "Notification events dropped by reason (full, closed)",
	}, []string{"reason"})
)

// ObserveCascade returns a func that records the cascade duration for root.
func ObserveCascade(root string) func() {
	start := time.Now()
	return func() {
		CascadeDuration.WithLabelValues(root).Observe(time.Since(start).Seconds())
	}
}
