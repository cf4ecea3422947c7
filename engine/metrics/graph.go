// package metrics holds the Prometheus collectors for the render graph and the frame loop, plus the /metrics endpoint.
// Every recorder method is safe to call on a nil receiver so components can run without metrics wired in.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oxy"

// Graph records render graph activity.
type Graph struct {
	nodes      prometheus.Gauge
	executions *prometheus.CounterVec
	skips      *prometheus.CounterVec
	traversal  prometheus.Histogram
	resizes    prometheus.Counter
}

// NewGraph creates the render graph collectors and registers them with reg.
//
// Parameters:
//   - reg: the registerer the collectors are added to, prometheus.DefaultRegisterer when nil
//
// Returns:
//   - *Graph: the graph recorder
func NewGraph(reg prometheus.Registerer) *Graph {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Graph{
		nodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "nodes",
			Help:      "Number of nodes in the render graph",
		}),
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "node_executions_total",
			Help:      "Total number of node executions by node label",
		}, []string{"node"}),
		skips: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "node_skips_total",
			Help:      "Total number of traversals that skipped a node because its input was not bound",
		}, []string{"node"}),
		traversal: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "traversal_duration_seconds",
			Help:      "Time spent recording and submitting every node of one traversal",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		resizes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "resizes_total",
			Help:      "Total number of ping/pong target reallocations",
		}),
	}
}

func (g *Graph) SetNodes(n int) {
	if g == nil {
		return
	}
	g.nodes.Set(float64(n))
}

func (g *Graph) ObserveExecution(node string) {
	if g == nil {
		return
	}
	g.executions.WithLabelValues(node).Inc()
}

func (g *Graph) ObserveSkip(node string) {
	if g == nil {
		return
	}
	g.skips.WithLabelValues(node).Inc()
}

func (g *Graph) ObserveTraversal(d time.Duration) {
	if g == nil {
		return
	}
	g.traversal.Observe(d.Seconds())
}

func (g *Graph) ObserveResize() {
	if g == nil {
		return
	}
	g.resizes.Inc()
}
