// Package metrics exposes Prometheus collectors for discovery activity.
//
// All methods are safe to call on a nil *Metrics, so components can record
// unconditionally whether or not metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mdnswatch"

// Metrics groups the collectors recorded by the finder and trackers.
type Metrics struct {
	eventsRouted  *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	queryFailures *prometheus.CounterVec
	sweeps        prometheus.Counter
	hosts         *prometheus.GaugeVec
	conflicts     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_routed_total",
			Help:      "Protocol events delivered to a tracker.",
		}, []string{"kind", "service"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Protocol events for service types nobody tracks.",
		}, []string{"kind"}),
		queryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Service queries the engine failed to send.",
		}, []string{"service"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Completed expiry sweeps across all trackers.",
		}),
		hosts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "matched_hosts",
			Help:      "Hosts currently published per service type.",
		}, []string{"service"}),
		conflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conflicting_hosts",
			Help:      "Other machines currently advertising our own service.",
		}),
	}
	reg.MustRegister(m.eventsRouted, m.eventsDropped, m.queryFailures, m.sweeps, m.hosts, m.conflicts)
	return m
}

// EventRouted counts an event delivered to the tracker for service.
func (m *Metrics) EventRouted(kind, service string) {
	if m == nil {
		return
	}
	m.eventsRouted.WithLabelValues(kind, service).Inc()
}

// EventDropped counts an event no tracker was registered for.
func (m *Metrics) EventDropped(kind string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(kind).Inc()
}

// QueryFailed counts a failed query for service.
func (m *Metrics) QueryFailed(service string) {
	if m == nil {
		return
	}
	m.queryFailures.WithLabelValues(service).Inc()
}

// SweepCompleted counts one sweep cycle.
func (m *Metrics) SweepCompleted() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}

// SetHosts records the published host count for service.
func (m *Metrics) SetHosts(service string, n int) {
	if m == nil {
		return
	}
	m.hosts.WithLabelValues(service).Set(float64(n))
}

// SetConflicts records the number of conflicting hosts.
func (m *Metrics) SetConflicts(n int) {
	if m == nil {
		return
	}
	m.conflicts.Set(float64(n))
}
