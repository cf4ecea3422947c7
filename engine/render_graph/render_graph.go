// package render_graph holds an ordered, append-only sequence of render passes that chain their outputs through a
// pair of offscreen targets ("ping" and "pong"), with the last pass writing the presentation target.
//
// The node at index i writes targets[i%2] unless it is the last node, which writes the presentation target.
// A node appended with wiring samples targets[(len-1)%2], the target the previous last node writes once the new node follows it.
package render_graph

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"go.uber.org/zap"
)

const (
	defaultPingLabel = "ping_texture"
	defaultPongLabel = "pong_texture"
)

// renderGraph is the implementation of the RenderGraph interface.
type renderGraph struct {
	mu sync.Mutex

	nodes   []RenderNode
	inputs  map[int]int
	targets [2]FrameTarget
	cfg     SurfaceConfig
	labels  [2]string

	logger   *zap.Logger
	metrics  *metrics.Graph
	strict   bool
	maxNodes int
}

// RenderGraph drives an ordered list of render nodes every frame.
//
// Nodes are only ever appended. AddNode, Resize and Traverse are serialized, so a node can never be appended
// while a traversal is in flight.
type RenderGraph interface {
	// AddNode appends node at position Len().
	// When wire is true the node's input is bound to the target the current last node will write once
	// the new node follows it, targets[(Len()-1)%2], before the node is appended.
	//
	// Parameters:
	//   - dev: the device handle used to bind the node's input
	//   - node: the node to append
	//   - wire: whether to bind the node's input to the previous output
	//
	// Returns:
	//   - error: an error if the node is nil or already in the graph, cannot be wired, is rejected by strict binding,
	//     or the graph is full
	AddNode(dev Device, node RenderNode, wire bool) error

	// Traverse executes every node in insertion order. Each node writes the target ResolveTarget returns for its index.
	// Nodes reporting Ready() == false are skipped for this traversal. The first Execute error stops the traversal.
	//
	// Parameters:
	//   - dev: the device handle passed through to each node
	//   - presentation: the target the last node writes, valid for this call only
	//   - q: the queue each node submits on
	//
	// Returns:
	//   - error: the first node error, wrapped with its index and label
	Traverse(dev Device, presentation FrameTarget, q Queue) error

	// ResolveTarget returns the output target of the node at index i.
	//
	// Parameters:
	//   - i: the node index
	//   - presentation: the presentation target for the current frame
	//
	// Returns:
	//   - FrameTarget: presentation for the last index, targets[i%2] otherwise, nil when i is out of range
	ResolveTarget(i int, presentation FrameTarget) FrameTarget

	// Len returns the number of nodes in the graph. It is at least 1 after construction.
	Len() int

	// Node returns the node at index i, or nil if i is out of range.
	Node(i int) RenderNode

	// InputParity reports which offscreen target the node at index i was wired to.
	//
	// Parameters:
	//   - i: the node index
	//
	// Returns:
	//   - int: 0 for ping, 1 for pong
	//   - bool: false if the node was appended without wiring or i is out of range
	InputParity(i int) (int, bool)

	// Targets returns the current ping/pong pair.
	Targets() [2]FrameTarget

	// SurfaceConfig returns the configuration the current ping/pong pair was allocated with.
	SurfaceConfig() SurfaceConfig

	// Resize replaces the ping/pong pair with targets sized to cfg and re-binds every wired node to the
	// target at its recorded parity. The new pair is allocated before the old pair is released; on allocation
	// failure the graph keeps its old pair. A config equal to the current one is a no-op.
	//
	// Parameters:
	//   - dev: the device handle used to allocate the targets and re-bind inputs
	//   - cfg: the new surface configuration
	//
	// Returns:
	//   - error: an error if cfg is invalid or allocation fails, or the joined re-binding errors
	Resize(dev Device, cfg SurfaceConfig) error

	// Release releases every node that owns GPU state and the ping/pong pair.
	Release()
}

var _ RenderGraph = &renderGraph{}

// NewRenderGraph allocates the ping/pong pair for cfg and appends base as node 0 without wiring.
//
// Parameters:
//   - dev: the device handle used to allocate the offscreen targets
//   - cfg: the surface configuration the targets are sized and formatted after
//   - base: the default node, appended without input
//   - options: functional options applied before allocation
//
// Returns:
//   - RenderGraph: the graph, ready for traversal
//   - error: an error if cfg is invalid, base is nil, or the targets cannot be allocated
func NewRenderGraph(dev Device, cfg SurfaceConfig, base RenderNode, options ...RenderGraphBuilderOption) (RenderGraph, error) {
	if base == nil {
		return nil, ErrNilNode
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	g := &renderGraph{
		inputs: make(map[int]int),
		labels: [2]string{defaultPingLabel, defaultPongLabel},
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(g)
	}

	targets, err := g.allocateTargets(dev, cfg)
	if err != nil {
		return nil, err
	}
	g.targets = targets
	g.cfg = cfg

	if err := g.AddNode(dev, base, false); err != nil {
		g.releaseTargets()
		return nil, fmt.Errorf("failed to add base node: %w", err)
	}

	g.logger.Info("render graph created",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.String("ping", g.labels[0]),
		zap.String("pong", g.labels[1]),
	)
	return g, nil
}

func (g *renderGraph) AddNode(dev Device, node RenderNode, wire bool) error {
	if node == nil {
		return ErrNilNode
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if i := g.indexOf(node); i >= 0 {
		return fmt.Errorf("node %q at index %d: %w", node.Label(), i, ErrNodeAlreadyAdded)
	}
	if g.maxNodes > 0 && len(g.nodes) >= g.maxNodes {
		return fmt.Errorf("%w: %d", ErrGraphFull, g.maxNodes)
	}

	parity := -1
	if wire {
		if len(g.nodes) == 0 {
			return ErrNothingToWire
		}
		binder, ok := node.(InputBinder)
		if !ok {
			return fmt.Errorf("node %q: %w", node.Label(), ErrInputNotSupported)
		}
		parity = (len(g.nodes) - 1) % 2
		if err := binder.BindInput(dev, g.targets[parity]); err != nil {
			return fmt.Errorf("failed to bind input of node %q: %w", node.Label(), err)
		}
	}

	if g.strict && !isReady(node) {
		if r, ok := node.(InputReleaser); ok && parity >= 0 {
			r.ReleaseInput()
		}
		return fmt.Errorf("node %q: %w", node.Label(), ErrNodeNotReady)
	}

	index := len(g.nodes)
	g.nodes = append(g.nodes, node)
	if parity >= 0 {
		g.inputs[index] = parity
	}
	g.metrics.SetNodes(len(g.nodes))

	fields := []zap.Field{zap.Int("index", index), zap.String("node", node.Label())}
	if parity >= 0 {
		fields = append(fields, zap.String("input", g.targets[parity].Label()))
	}
	g.logger.Debug("render node appended", fields...)
	return nil
}

func (g *renderGraph) Traverse(dev Device, presentation FrameTarget, q Queue) error {
	if presentation == nil {
		return ErrNoPresentationTarget
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	defer func() {
		g.metrics.ObserveTraversal(time.Since(start))
	}()

	for i, node := range g.nodes {
		if !isReady(node) {
			g.metrics.ObserveSkip(node.Label())
			g.logger.Debug("render node skipped, input not bound", zap.Int("index", i), zap.String("node", node.Label()))
			continue
		}

		if err := node.Execute(dev, g.resolveTarget(i, presentation), q); err != nil {
			return fmt.Errorf("render node %d (%q): %w", i, node.Label(), err)
		}
		g.metrics.ObserveExecution(node.Label())
	}
	return nil
}

func (g *renderGraph) ResolveTarget(i int, presentation FrameTarget) FrameTarget {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveTarget(i, presentation)
}

func (g *renderGraph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

func (g *renderGraph) Node(i int) RenderNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i < 0 || i >= len(g.nodes) {
		return nil
	}
	return g.nodes[i]
}

func (g *renderGraph) InputParity(i int) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	parity, ok := g.inputs[i]
	return parity, ok
}

func (g *renderGraph) Targets() [2]FrameTarget {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.targets
}

func (g *renderGraph) SurfaceConfig() SurfaceConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

func (g *renderGraph) Resize(dev Device, cfg SurfaceConfig) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cfg == g.cfg {
		return nil
	}

	targets, err := g.allocateTargets(dev, cfg)
	if err != nil {
		return err
	}
	g.releaseTargets()
	g.targets = targets
	g.cfg = cfg
	g.metrics.ObserveResize()

	var errs []error
	for _, index := range common.SortedKeys(g.inputs) {
		node := g.nodes[index]
		releaser, ok := node.(InputReleaser)
		if !ok {
			errs = append(errs, fmt.Errorf("node %d (%q): %w", index, node.Label(), ErrInputNotRebindable))
			continue
		}
		releaser.ReleaseInput()
		if err := node.(InputBinder).BindInput(dev, g.targets[g.inputs[index]]); err != nil {
			errs = append(errs, fmt.Errorf("failed to re-bind input of node %d (%q): %w", index, node.Label(), err))
		}
	}

	g.logger.Info("render graph resized",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("rewired", len(g.inputs)),
	)
	return errors.Join(errs...)
}

func (g *renderGraph) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, node := range g.nodes {
		if r, ok := node.(releaser); ok {
			r.Release()
		}
	}
	g.releaseTargets()
}

func (g *renderGraph) resolveTarget(i int, presentation FrameTarget) FrameTarget {
	if i < 0 || i >= len(g.nodes) {
		return nil
	}
	if i == len(g.nodes)-1 {
		return presentation
	}
	return g.targets[i%2]
}

func (g *renderGraph) allocateTargets(dev Device, cfg SurfaceConfig) ([2]FrameTarget, error) {
	var targets [2]FrameTarget
	for i, label := range g.labels {
		t, err := dev.CreateFrameTarget(label, cfg)
		if err != nil {
			for _, created := range targets[:i] {
				releaseTarget(created)
			}
			return [2]FrameTarget{}, fmt.Errorf("failed to create frame target %q: %w", label, err)
		}
		targets[i] = t
	}
	return targets, nil
}

func (g *renderGraph) releaseTargets() {
	for i, t := range g.targets {
		if t != nil {
			releaseTarget(t)
		}
		g.targets[i] = nil
	}
}

// indexOf returns the index of node if the same pointer is already in the graph, -1 otherwise.
// Nodes held by value are copies and never alias each other.
func (g *renderGraph) indexOf(node RenderNode) int {
	if reflect.TypeOf(node).Kind() != reflect.Pointer {
		return -1
	}
	for i, n := range g.nodes {
		if n == node {
			return i
		}
	}
	return -1
}

func validateConfig(cfg SurfaceConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSurfaceSize, cfg.Width, cfg.Height)
	}
	return nil
}

func isReady(node RenderNode) bool {
	if rc, ok := node.(ReadyChecker); ok {
		return rc.Ready()
	}
	return true
}
