package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics bundles the scheduler metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecomputeTotal   *prometheus.CounterVec
	NoticesTotal     *prometheus.CounterVec
	MachinesByStatus *prometheus.GaugeVec
	SweepDuration    prometheus.Histogram
}

// New constructs the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecomputeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greenhouse_schedule_recompute_total",
				Help: "Schedule recomputations on machine writes by result",
			},
			[]string{"result"},
		),
		NoticesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greenhouse_notices_total",
				Help: "Due-soon notices by channel and result",
			},
			[]string{"channel", "result"},
		),
		MachinesByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "greenhouse_machines_by_status",
				Help: "Machines per status band at the last sweep",
			},
			[]string{"status"},
		),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "greenhouse_sweep_duration_seconds",
			Help:    "Maintenance sweep duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.RecomputeTotal,
		m.NoticesTotal,
		m.MachinesByStatus,
		m.SweepDuration,
	)
	return m
}

// ObserveRecompute records the outcome of a schedule recomputation.
func (m *Metrics) ObserveRecompute(err error) {
	if m == nil {
		return
	}
	m.RecomputeTotal.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveNotice records a notice delivery attempt on a channel.
func (m *Metrics) ObserveNotice(channel, result string) {
	if m == nil {
		return
	}
	m.NoticesTotal.WithLabelValues(channel, result).Inc()
}

// SetStatusCounts replaces the per-band gauge values.
func (m *Metrics) SetStatusCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.MachinesByStatus.Reset()
	for status, n := range counts {
		m.MachinesByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// ObserveSweep records how long a sweep took.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
