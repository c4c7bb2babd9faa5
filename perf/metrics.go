package perf

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a Multiplexer reports through.
// Unlike the teacher's recordMetrics, which registers straight onto the
// global prometheus registry, Metrics takes a Registerer explicitly so a
// process running more than one Multiplexer (or one under test) can use
// independent registries instead of colliding on metric names.
type Metrics struct {
	samplesTotal *prometheus.CounterVec
	lostTotal    *prometheus.CounterVec
	moreSpace    *prometheus.CounterVec
}

// NewMetrics registers the perf collectors against reg and returns a handle
// for recording observations.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ebpf",
			Subsystem: "perf",
			Name:      "samples_total",
			Help:      "SAMPLE records delivered from the ring buffer, by CPU.",
		}, []string{"cpu"}),
		lostTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ebpf",
			Subsystem: "perf",
			Name:      "lost_total",
			Help:      "Events the kernel reports as dropped via LOST records, by CPU.",
		}, []string{"cpu"}),
		moreSpace: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ebpf",
			Subsystem: "perf",
			Name:      "oversize_records_total",
			Help:      "SAMPLE records larger than the configured buffer size, by CPU.",
		}, []string{"cpu"}),
	}

	reg.MustRegister(m.samplesTotal, m.lostTotal, m.moreSpace)
	return m
}

func (m *Metrics) observe(cpu int, events Events) {
	label := strconv.Itoa(cpu)
	if events.Read > 0 {
		m.samplesTotal.WithLabelValues(label).Add(float64(events.Read))
	}
	if events.Lost > 0 {
		m.lostTotal.WithLabelValues(label).Add(float64(events.Lost))
	}
}

func (m *Metrics) observeOversize(cpu int) {
	m.moreSpace.WithLabelValues(strconv.Itoa(cpu)).Inc()
}
