package render_graph

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"go.uber.org/zap"
)

// RenderGraphBuilderOption is a functional option applied to a render graph during construction via NewRenderGraph.
type RenderGraphBuilderOption func(*renderGraph)

// WithLogger sets the logger the graph reports appends, skips and resizes on.
//
// Parameters:
//   - logger: the logger to use, ignored when nil
//
// Returns:
//   - RenderGraphBuilderOption: a function that applies the logger option to a render graph
func WithLogger(logger *zap.Logger) RenderGraphBuilderOption {
	return func(g *renderGraph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the recorder for node counts, executions, skips and traversal durations.
//
// Parameters:
//   - m: the graph metrics recorder, nil disables recording
//
// Returns:
//   - RenderGraphBuilderOption: a function that applies the metrics option to a render graph
func WithMetrics(m *metrics.Graph) RenderGraphBuilderOption {
	return func(g *renderGraph) {
		g.metrics = m
	}
}

// WithStrictBinding makes AddNode reject nodes that report Ready() == false after the wiring step,
// instead of appending them and skipping them during traversal.
//
// Parameters:
//   - strict: whether not-ready nodes are rejected at append time
//
// Returns:
//   - RenderGraphBuilderOption: a function that applies the strict binding option to a render graph
func WithStrictBinding(strict bool) RenderGraphBuilderOption {
	return func(g *renderGraph) {
		g.strict = strict
	}
}

// WithMaxNodes caps the number of nodes the graph accepts. Zero or less means no cap.
//
// Parameters:
//   - n: the maximum node count, including the base node
//
// Returns:
//   - RenderGraphBuilderOption: a function that applies the node cap option to a render graph
func WithMaxNodes(n int) RenderGraphBuilderOption {
	return func(g *renderGraph) {
		g.maxNodes = n
	}
}

// WithTargetLabels overrides the debug labels of the offscreen pair. Empty labels keep the defaults.
//
// Parameters:
//   - ping: the label of target 0
//   - pong: the label of target 1
//
// Returns:
//   - RenderGraphBuilderOption: a function that applies the label option to a render graph
func WithTargetLabels(ping, pong string) RenderGraphBuilderOption {
	return func(g *renderGraph) {
		if ping != "" {
			g.labels[0] = ping
		}
		if pong != "" {
			g.labels[1] = pong
		}
	}
}
