// Package metrics exposes autopilotd's runtime state as Prometheus
// gauges/counters, additive to the plain JSON `status` output (spec.md
// §6): supervisor uptime/restarts, pool occupancy, marketplace job
// counts, and trajectory APM. Grounded in the cuemby-warren and
// IAmSoThirsty example repos' use of prometheus/client_golang for
// daemon-state metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors autopilotd writes to its metrics.prom
// text snapshot, which the `metrics` subcommand prints.
type Registry struct {
	Registerer prometheus.Registerer

	SupervisorUptimeSeconds prometheus.Gauge
	SupervisorRestartsTotal prometheus.Counter
	SupervisorFailures      prometheus.Gauge

	PoolAgents prometheus.Gauge

	MarketplaceJobsSubmitted prometheus.Counter
	MarketplaceJobsCompleted prometheus.Counter
	MarketplaceJobsFailed    prometheus.Counter

	TrajectoryAPM prometheus.Gauge
}

// NewRegistry constructs and registers all collectors against reg.
func NewRegistry(reg *prometheus.Registry) *Registry {
	r := &Registry{
		Registerer: reg,
		SupervisorUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilotd",
			Subsystem: "supervisor",
			Name:      "uptime_seconds",
			Help:      "Seconds the current worker process has been running.",
		}),
		SupervisorRestartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autopilotd",
			Subsystem: "supervisor",
			Name:      "restarts_total",
			Help:      "Total worker restarts since daemon start.",
		}),
		SupervisorFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilotd",
			Subsystem: "supervisor",
			Name:      "consecutive_failures",
			Help:      "Current consecutive worker failure count.",
		}),
		PoolAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilotd",
			Subsystem: "pool",
			Name:      "agents",
			Help:      "Number of agents currently registered in the pool.",
		}),
		MarketplaceJobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autopilotd",
			Subsystem: "marketplace",
			Name:      "jobs_submitted_total",
			Help:      "Total marketplace jobs submitted.",
		}),
		MarketplaceJobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autopilotd",
			Subsystem: "marketplace",
			Name:      "jobs_completed_total",
			Help:      "Total marketplace jobs completed.",
		}),
		MarketplaceJobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autopilotd",
			Subsystem: "marketplace",
			Name:      "jobs_failed_total",
			Help:      "Total marketplace jobs failed.",
		}),
		TrajectoryAPM: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autopilotd",
			Subsystem: "trajectory",
			Name:      "apm",
			Help:      "Current actions-per-minute over the tracker's sliding window.",
		}),
	}

	reg.MustRegister(
		r.SupervisorUptimeSeconds,
		r.SupervisorRestartsTotal,
		r.SupervisorFailures,
		r.PoolAgents,
		r.MarketplaceJobsSubmitted,
		r.MarketplaceJobsCompleted,
		r.MarketplaceJobsFailed,
		r.TrajectoryAPM,
	)

	return r
}
