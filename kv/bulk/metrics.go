package bulk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments of the engine. A nil *Metrics is
// valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	Generations prometheus.Counter
	Retries     prometheus.Counter
	Items       prometheus.Counter
	Step        prometheus.Gauge
	Cooldown    prometheus.Gauge
	GenDuration prometheus.Histogram
}

// NewMetrics builds the instruments and registers them with reg. A nil
// registerer builds unregistered instruments, which is handy in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	const ns = "tinybulk"
	m := &Metrics{
		Generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "generations_total",
			Help:      "Committed generations.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "retries_total",
			Help:      "Internal transaction retries across all generations.",
		}),
		Items: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "items_total",
			Help:      "Items durably processed.",
		}),
		Step: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "step",
			Help:      "Current adaptive chunk size.",
		}),
		Cooldown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "cooldown_seconds",
			Help:      "Current inter-generation cooldown.",
		}),
		GenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "generation_duration_seconds",
			Help:      "Wall-clock duration of committed generations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Generations, m.Retries, m.Items, m.Step, m.Cooldown, m.GenDuration)
	}
	return m
}

func (m *Metrics) committed(items int, dur time.Duration) {
	if m == nil {
		return
	}
	m.Generations.Inc()
	m.Items.Add(float64(items))
	m.GenDuration.Observe(dur.Seconds())
}

func (m *Metrics) retried(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Retries.Add(float64(n))
}

func (m *Metrics) tuned(step int, cooldown time.Duration) {
	if m == nil {
		return
	}
	m.Step.Set(float64(step))
	m.Cooldown.Set(cooldown.Seconds())
}
