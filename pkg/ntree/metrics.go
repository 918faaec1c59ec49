package ntree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors a Tree reports to. A nil *Metrics
// records nothing.
type Metrics struct {
	rebuilds        *prometheus.CounterVec
	rebuildDuration prometheus.Histogram
	mutations       *prometheus.CounterVec
	nodes           prometheus.Gauge
	consistent      prometheus.Gauge
}

// NewMetrics creates the tree collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntree",
			Name:      "rebuilds_total",
			Help:      "Interval rebuilds by outcome.",
		}, []string{"outcome"}),
		rebuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ntree",
			Name:      "rebuild_duration_seconds",
			Help:      "Time spent deriving and committing intervals.",
			Buckets:   prometheus.DefBuckets,
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntree",
			Name:      "mutations_total",
			Help:      "Tree mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ntree",
			Name:      "nodes",
			Help:      "Nodes in the published snapshot.",
		}),
		consistent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ntree",
			Name:      "consistent",
			Help:      "1 while the published intervals match the stored structure.",
		}),
	}

	for _, c := range []prometheus.Collector{m.rebuilds, m.rebuildDuration, m.mutations, m.nodes, m.consistent} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRebuild(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.rebuilds.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.rebuildDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) observeMutation(op string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) setState(nodes int, consistent bool) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(nodes))
	if consistent {
		m.consistent.Set(1)
	} else {
		m.consistent.Set(0)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsPrecondition(err):
		return "rejected"
	default:
		return "error"
	}
}
