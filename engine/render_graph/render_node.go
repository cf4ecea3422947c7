package render_graph

// RenderNode is one render pass in the graph.
//
// Execute is called once per traversal with the target resolved for the node's position. Implementations
// load the existing contents of the target, store their results, and must not retain the target after returning.
type RenderNode interface {
	// Label returns the debug label of the node, used in logs and metrics.
	Label() string

	// Execute records one render pass writing into out and submits it on q.
	//
	// Parameters:
	//   - dev: the device handle the graph was given
	//   - out: the output target for this traversal
	//   - q: the queue the pass is submitted on
	//
	// Returns:
	//   - error: an error if recording or submission fails
	Execute(dev Device, out FrameTarget, q Queue) error
}

// InputBinder is implemented by nodes that sample exactly one previously rendered target.
type InputBinder interface {
	// BindInput associates in as the sole read input of the node. It is called at most once per binding;
	// a second call without an intervening ReleaseInput returns ErrInputAlreadyBound.
	//
	// Parameters:
	//   - dev: the device handle used to build the binding
	//   - in: the target to sample
	//
	// Returns:
	//   - error: an error if the node is already bound or the binding cannot be created
	BindInput(dev Device, in FrameTarget) error
}

// ReadyChecker is implemented by nodes that can be in a not-yet-executable state.
// Traverse skips a node whose Ready reports false.
type ReadyChecker interface {
	Ready() bool
}

// InputReleaser drops a node's input binding so it can be bound again, e.g. after the ping/pong targets are reallocated.
type InputReleaser interface {
	ReleaseInput()
}
