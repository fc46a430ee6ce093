package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EventRouted("discovered", "_svc._tcp")
	m.EventRouted("discovered", "_svc._tcp")
	m.EventDropped("answer")
	m.QueryFailed("_svc._tcp")
	m.SweepCompleted()
	m.SetHosts("_svc._tcp", 3)
	m.SetConflicts(1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsRouted.WithLabelValues("discovered", "_svc._tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues("answer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryFailures.WithLabelValues("_svc._tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.hosts.WithLabelValues("_svc._tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventRouted("discovered", "_svc._tcp")
		m.EventDropped("answer")
		m.QueryFailed("_svc._tcp")
		m.SweepCompleted()
		m.SetHosts("_svc._tcp", 1)
		m.SetConflicts(0)
	})
}

func TestMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
