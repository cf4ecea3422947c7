package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
)

// NewRenderGraph builds the library's base node and creates a render graph starting with it.
//
// Parameters:
//   - dev: the device handle used to allocate the ping/pong targets
//   - cfg: the surface configuration
//   - lib: the pass library
//   - options: options passed through to render_graph.NewRenderGraph
//
// Returns:
//   - render_graph.RenderGraph: the graph with the base node at index 0
//   - error: an error if the base node or the graph cannot be created
func NewRenderGraph(dev render_graph.Device, cfg render_graph.SurfaceConfig, lib Library, options ...render_graph.RenderGraphBuilderOption) (render_graph.RenderGraph, error) {
	base, err := lib.NewBaseNode()
	if err != nil {
		return nil, fmt.Errorf("failed to build base node: %w", err)
	}
	return render_graph.NewRenderGraph(dev, cfg, base, options...)
}

// AppendKind builds a node of kind and appends it to g, wired to the previous output when the kind samples one.
//
// Parameters:
//   - g: the render graph
//   - dev: the device handle used to bind the node's input
//   - lib: the pass library
//   - kind: the pass kind
//
// Returns:
//   - render_graph.RenderNode: the appended node
//   - error: an error if the kind is unknown or the graph rejects the node
func AppendKind(g render_graph.RenderGraph, dev render_graph.Device, lib Library, kind Kind) (render_graph.RenderNode, error) {
	node, err := lib.NewNode(kind)
	if err != nil {
		return nil, err
	}
	if err := g.AddNode(dev, node, lib.Samples(kind)); err != nil {
		if r, ok := node.(interface{ Release() }); ok {
			r.Release()
		}
		return nil, err
	}
	return node, nil
}
