// Package metrics exposes Prometheus collectors for the shim's lifecycle
// operations.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Lifecycle tracks instance lifecycle operations.
type Lifecycle struct {
	Started    prometheus.Counter
	Reaped     prometheus.Counter
	Dispatches *prometheus.CounterVec
	Kills      *prometheus.CounterVec
	Deletes    prometheus.Counter
}

// NewLifecycle creates and registers the lifecycle collectors.
func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	l := &Lifecycle{
		Started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shimrun_instances_started_total",
			Help: "Instances whose init process was launched",
		}),
		Reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shimrun_exits_reaped_total",
			Help: "Init process exits observed by the reaper",
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shimrun_dispatches_total",
			Help: "Executor dispatches by outcome",
		}, []string{"outcome"}),
		Kills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shimrun_kills_total",
			Help: "Kill requests by result",
		}, []string{"result"}), // delivered, not_running, error
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shimrun_deletes_total",
			Help: "Delete requests",
		}),
	}
	reg.MustRegister(l.Started, l.Reaped, l.Dispatches, l.Kills, l.Deletes)
	return l
}
