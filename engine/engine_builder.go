package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"github.com/Carmen-Shannon/oxy-graph/engine/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithLogger sets the logger for frame loop events.
func WithLogger(logger *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records frames, surface errors and dropped commands to m.
func WithMetrics(m *metrics.Frame) EngineBuilderOption {
	return func(e *engine) {
		e.metrics = m
	}
}

// WithProfiler ticks p once per presented frame.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithKeyBinding appends a pass of kind each time the key is released.
//
// Parameters:
//   - keyCode: the virtual key code, see the common package key constants
//   - kind: the pass kind to append
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithKeyBinding(keyCode int, kind pass.Kind) EngineBuilderOption {
	return func(e *engine) {
		e.bindings[uint32(keyCode)] = kind
	}
}

// WithKeyBindings adds every binding of a key code to pass kind map, as returned by config.Config.KeyBindings.
func WithKeyBindings(bindings map[int]string) EngineBuilderOption {
	return func(e *engine) {
		for code, kind := range bindings {
			e.bindings[uint32(code)] = pass.Kind(kind)
		}
	}
}

// WithMaxSurfaceFailures sets how many consecutive presentation failures end the frame loop. Values < 1 are ignored.
func WithMaxSurfaceFailures(n int) EngineBuilderOption {
	return func(e *engine) {
		if n >= 1 {
			e.maxSurfaceFailures = n
		}
	}
}

// WithFrameLimit caps the frame rate in frames per second. Pass 0 to uncap (default).
//
// Parameters:
//   - fps: maximum frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.frameLimit = 0
			return
		}
		e.frameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithCommandBuffer sets the capacity of the pending command queue. Values < 1 are ignored.
func WithCommandBuffer(n int) EngineBuilderOption {
	return func(e *engine) {
		if n >= 1 {
			e.bufferSize = n
		}
	}
}
