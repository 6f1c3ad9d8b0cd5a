// Package metrics holds the Prometheus collectors of the daemon. They count
// operations (probes, privileged reads, snapshots); telemetry values
// themselves are never recorded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "droidbatt"

// ProbeRuns counts finished privilege probes by kind (detect, elevate)
// and outcome (granted, denied).
var ProbeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "privilege_probes_total",
	Help:      "Finished privilege probes.",
}, []string{"kind", "result"})

// ProbeStrategyHits counts which strategy proved root access.
var ProbeStrategyHits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "privilege_probe_strategy_hits_total",
	Help:      "Strategies that proved root access.",
}, []string{"strategy"})

// PrivilegedReads counts privileged sysfs reads by node and outcome
// (ok, unavailable, failed).
var PrivilegedReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "privileged_reads_total",
	Help:      "Privileged sysfs reads.",
}, []string{"node", "result"})

// Snapshots counts battery snapshot compositions by outcome (ok, error).
var Snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "battery_snapshots_total",
	Help:      "Battery snapshot compositions.",
}, []string{"result"})

// SnapshotLatency tracks how long composing a snapshot takes.
var SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "battery_snapshot_duration_seconds",
	Help:      "Time spent composing a battery snapshot.",
	Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
})
