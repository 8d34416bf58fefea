package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRecompute(nil)
	m.ObserveRecompute(errors.New("bad interval"))
	m.ObserveRecompute(nil)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecomputeTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecomputeTotal.WithLabelValues(ResultError)))

	m.ObserveNotice("smtp", ResultSuccess)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NoticesTotal.WithLabelValues("smtp", ResultSuccess)))

	m.SetStatusCounts(map[string]int{"Overdue": 2, "Healthy": 5})
	m.SetStatusCounts(map[string]int{"Overdue": 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MachinesByStatus.WithLabelValues("Overdue")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.MachinesByStatus), "previous bands are cleared")

	m.ObserveSweep(150 * time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.SweepDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRecompute(nil)
		m.ObserveNotice("push", ResultError)
		m.SetStatusCounts(map[string]int{"Warning": 1})
		m.ObserveSweep(time.Second)
	})
}
