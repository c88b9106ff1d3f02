package pool

import "github.com/prometheus/client_golang/prometheus"

// gauges tracks the pool's live worker counts and queue depths. A nil
// Registerer disables registration (used by tests that build many pools
// in one process and would otherwise collide on the default registry).
type gauges struct {
	queueDepth *prometheus.GaugeVec
	workers    *prometheus.GaugeVec
}

func newGauges(reg prometheus.Registerer) *gauges {
	g := &gauges{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "molap",
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Number of jobs waiting in each pool queue.",
		}, []string{"queue"}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "molap",
			Subsystem: "pool",
			Name:      "workers",
			Help:      "Number of live worker goroutines, by pool.",
		}, []string{"pool"}),
	}
	if reg != nil {
		reg.MustRegister(g.queueDepth, g.workers)
	}
	return g
}

func (g *gauges) setQueueDepth(normal, high int) {
	g.queueDepth.WithLabelValues("normal").Set(float64(normal))
	g.queueDepth.WithLabelValues("high").Set(float64(high))
}

func (g *gauges) setWorkers(normal, high int) {
	g.workers.WithLabelValues("normal").Set(float64(normal))
	g.workers.WithLabelValues("high").Set(float64(high))
}
