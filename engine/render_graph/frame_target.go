package render_graph

// SurfaceConfig describes the presentation surface the ping/pong targets are sized and formatted after.
type SurfaceConfig struct {
	// Width is the surface width in pixels.
	Width int
	// Height is the surface height in pixels.
	Height int
	// Format is the backend texture format, opaque to the graph.
	Format uint32
}

// FrameTarget is a 2D color surface a render pass can write into.
//
// Offscreen targets owned by the graph also implement Release. The presentation target handed to Traverse
// belongs to the windowing layer and is never released by the graph.
type FrameTarget interface {
	// Label returns the debug label of the target.
	Label() string

	// Width returns the target width in pixels.
	Width() int

	// Height returns the target height in pixels.
	Height() int
}

// Device allocates the GPU resources the graph owns.
// Node variants may type-assert the same handle to a richer interface for their own pipeline work.
type Device interface {
	// CreateFrameTarget allocates an offscreen color target that can be rendered into and sampled from.
	//
	// Parameters:
	//   - label: the debug label for the target
	//   - cfg: the surface configuration providing size and format
	//
	// Returns:
	//   - FrameTarget: the allocated target
	//   - error: an error if the allocation fails
	CreateFrameTarget(label string, cfg SurfaceConfig) (FrameTarget, error)
}

// CommandBuffer is a recorded unit of GPU work ready for submission.
type CommandBuffer interface {
	Release()
}

// Queue submits recorded command buffers in order.
type Queue interface {
	// Submit hands the command buffers to the GPU in the given order. Submission order is execution order.
	//
	// Parameters:
	//   - commands: the command buffers to submit
	Submit(commands ...CommandBuffer)
}

type releaser interface {
	Release()
}

func releaseTarget(t FrameTarget) {
	if r, ok := t.(releaser); ok {
		r.Release()
	}
}
