// Package metrics exposes Prometheus collectors for pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vitals"

// Metrics groups the collectors a run updates. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	cycles      *prometheus.CounterVec
	records     prometheus.Counter
	emptyPages  prometheus.Counter
	runs        *prometheus.CounterVec
	uniqueRows  prometheus.Gauge
	predictions *prometheus.CounterVec
	fetchTime   prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Fetch cycles completed, by mode.",
		}, []string{"mode"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "records_total",
			Help:      "Raw records parsed into rows, duplicates included.",
		}),
		emptyPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "empty_pages_total",
			Help:      "Cycles whose fetch yielded no records.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "finished_total",
			Help:      "Runs finished, by outcome stage (\"ok\" on success).",
		}, []string{"outcome"}),
		uniqueRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "unique_rows",
			Help:      "Distinct rows written by the most recent successful run.",
		}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "predictions_total",
			Help:      "Predicted labels written, by label.",
		}, []string{"label"}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of a single fetch, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.cycles, m.records, m.emptyPages, m.runs, m.uniqueRows, m.predictions, m.fetchTime)
	return m
}

// Cycle records one completed cycle that produced n rows.
func (m *Metrics) Cycle(mode string, n int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(mode).Inc()
	m.records.Add(float64(n))
	if n == 0 {
		m.emptyPages.Inc()
	}
}

// Fetched observes the duration of one fetch.
func (m *Metrics) Fetched(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchTime.Observe(d.Seconds())
}

// RunFinished records a run outcome. outcome is "ok" or the failing stage.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Persisted records the rows and labels of a successful run.
func (m *Metrics) Persisted(labels []string) {
	if m == nil {
		return
	}
	m.uniqueRows.Set(float64(len(labels)))
	for _, l := range labels {
		m.predictions.WithLabelValues(l).Inc()
	}
}
