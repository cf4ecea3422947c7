package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"github.com/Carmen-Shannon/oxy-graph/engine/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/profiler"
	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/system_uniform"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"go.uber.org/zap"
)

// minimizedInterval is how long the loop idles per iteration while the window has no extent.
const minimizedInterval = 16 * time.Millisecond

var (
	ErrCommandQueueFull = errors.New("engine command queue is full")
	ErrMissingComponent = errors.New("engine component is nil")
	ErrEngineStopped    = errors.New("engine is stopped")
)

// FrameRenderer is the part of the renderer the frame loop drives. It doubles as the graph's device and queue.
type FrameRenderer interface {
	render_graph.Device
	render_graph.Queue

	// BeginFrame acquires the presentation target of the next frame.
	BeginFrame() (render_graph.FrameTarget, error)

	// Present shows the acquired frame.
	Present()

	// Resize reconfigures the surface.
	Resize(width, height int) error

	// SurfaceConfig returns the configured surface size and format.
	SurfaceConfig() render_graph.SurfaceConfig
}

// Components are the collaborators an Engine drives. All are required.
type Components struct {
	Window   window.Window
	Renderer FrameRenderer
	Graph    render_graph.RenderGraph
	Library  pass.Library
	Globals  system_uniform.SystemUniform
}

// command is a graph mutation applied between traversals.
type command struct {
	kind pass.Kind
}

// engine implements the Engine interface.
// All graph mutation and traversal happens on the window thread inside the update callback.
type engine struct {
	window   window.Window
	renderer FrameRenderer
	graph    render_graph.RenderGraph
	library  pass.Library
	globals  system_uniform.SystemUniform

	logger   *zap.Logger
	metrics  *metrics.Frame
	profiler *profiler.Profiler

	commands   chan command
	bufferSize int
	bindings   map[uint32]pass.Kind

	maxSurfaceFailures int
	surfaceFailures    int
	frameLimit         time.Duration

	start time.Time
	now   func() time.Time
	sleep func(time.Duration)

	quit     chan struct{}
	quitOnce sync.Once
}

// Engine runs the render graph frame loop.
type Engine interface {
	// Window returns the underlying window.
	Window() window.Window

	// Graph returns the render graph the engine traverses.
	Graph() render_graph.RenderGraph

	// AddPass queues the append of a node of kind, wired to the previous output when the kind samples one.
	// The append happens before the next traversal. Safe to call from any goroutine.
	//
	// Parameters:
	//   - kind: the pass kind
	//
	// Returns:
	//   - error: pass.ErrUnknownKind, ErrCommandQueueFull when the command is dropped,
	//     or ErrEngineStopped after Quit
	AddPass(kind pass.Kind) error

	// Run drives the window message loop and renders one frame per iteration.
	// Blocks until the window closes, Quit is called or ctx is cancelled.
	//
	// Parameters:
	//   - ctx: cancelling it stops the loop
	//
	// Returns:
	//   - error: ctx.Err() if the loop stopped because ctx was cancelled, nil otherwise
	Run(ctx context.Context) error

	// Quit stops the frame loop. Safe to call multiple times and from any goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates an Engine driving c and registers its window input callbacks.
//
// Parameters:
//   - c: the window, renderer, graph, pass library and globals uniform
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine, not yet running
//   - error: ErrMissingComponent if a component is nil
func NewEngine(c Components, options ...EngineBuilderOption) (Engine, error) {
	switch {
	case c.Window == nil:
		return nil, fmt.Errorf("%w: window", ErrMissingComponent)
	case c.Renderer == nil:
		return nil, fmt.Errorf("%w: renderer", ErrMissingComponent)
	case c.Graph == nil:
		return nil, fmt.Errorf("%w: graph", ErrMissingComponent)
	case c.Library == nil:
		return nil, fmt.Errorf("%w: library", ErrMissingComponent)
	case c.Globals == nil:
		return nil, fmt.Errorf("%w: globals", ErrMissingComponent)
	}

	e := &engine{
		window:             c.Window,
		renderer:           c.Renderer,
		graph:              c.Graph,
		library:            c.Library,
		globals:            c.Globals,
		logger:             zap.NewNop(),
		bufferSize:         16,
		bindings:           make(map[uint32]pass.Kind),
		maxSurfaceFailures: 5,
		now:                time.Now,
		sleep:              time.Sleep,
		quit:               make(chan struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	e.commands = make(chan command, e.bufferSize)

	cfg := e.renderer.SurfaceConfig()
	e.globals.SetScreen(cfg.Width, cfg.Height)

	e.window.SetKeyUpCallback(e.onKeyUp)
	e.window.SetMouseMoveCallback(e.globals.SetMouse)
	e.window.SetResizeCallback(e.onResize)
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Graph() render_graph.RenderGraph {
	return e.graph
}

func (e *engine) AddPass(kind pass.Kind) error {
	select {
	case <-e.quit:
		return ErrEngineStopped
	default:
	}
	if !e.library.Has(kind) {
		return fmt.Errorf("%w: %q", pass.ErrUnknownKind, kind)
	}
	select {
	case e.commands <- command{kind: kind}:
		return nil
	default:
		e.metrics.ObserveDroppedCommand()
		e.logger.Warn("graph command dropped", zap.String("kind", string(kind)), zap.Int("buffer", cap(e.commands)))
		return ErrCommandQueueFull
	}
}

func (e *engine) Run(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-loopCtx.Done():
			e.Quit()
		case <-e.quit:
		}
	}()

	e.start = e.now()
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quit:
			e.window.RequestClose()
			return
		default:
		}
		e.frame()
	})

	e.logger.Info("frame loop started", zap.Int("nodes", e.graph.Len()))
	e.window.ProcessMessages()
	e.Quit()
	e.logger.Info("frame loop stopped")

	return ctx.Err()
}

func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quit)
		e.window.RequestClose()
	})
}

// frame renders one frame: drain commands, update globals, acquire, traverse, present.
func (e *engine) frame() {
	start := e.now()

	e.drainCommands()

	e.globals.SetTime(float32(start.Sub(e.start).Seconds()))
	e.globals.Flush()

	if e.window.Width() <= 0 || e.window.Height() <= 0 {
		e.sleep(minimizedInterval)
		return
	}

	target, err := e.renderer.BeginFrame()
	if err != nil {
		e.handleSurfaceError(err)
		return
	}
	e.surfaceFailures = 0

	if err := e.graph.Traverse(e.renderer, target, e.renderer); err != nil {
		e.logger.Error("frame traversal failed", zap.Error(err))
	}
	e.renderer.Present()

	elapsed := e.now().Sub(start)
	e.metrics.ObserveFrame(elapsed)
	if e.profiler != nil {
		e.profiler.Tick()
	}

	if e.frameLimit > 0 {
		if remaining := e.frameLimit - elapsed; remaining > 0 {
			e.sleep(remaining)
		}
	}
}

// drainCommands applies every queued command without blocking.
func (e *engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.apply(cmd)
		default:
			return
		}
	}
}

func (e *engine) apply(cmd command) {
	node, err := pass.AppendKind(e.graph, e.renderer, e.library, cmd.kind)
	if err != nil {
		e.logger.Warn("failed to append pass", zap.String("kind", string(cmd.kind)), zap.Error(err))
		return
	}
	e.logger.Info("pass appended",
		zap.String("kind", string(cmd.kind)),
		zap.String("node", node.Label()),
		zap.Int("nodes", e.graph.Len()),
	)
}

// handleSurfaceError reconfigures the surface at its current size. Out of memory quits at once, an outdated
// surface is retried without counting, and any other error quits after too many consecutive failures.
func (e *engine) handleSurfaceError(err error) {
	e.metrics.ObserveSurfaceError()

	switch {
	case errors.Is(err, renderer.ErrSurfaceOutOfMemory):
		e.logger.Error("presentation target out of memory, quitting", zap.Error(err))
		e.Quit()
		return
	case errors.Is(err, renderer.ErrSurfaceOutdated):
		e.logger.Debug("presentation target outdated, reconfiguring surface", zap.Error(err))
		e.reconfigureSurface()
		return
	}

	e.surfaceFailures++
	if e.surfaceFailures >= e.maxSurfaceFailures {
		e.logger.Error("presentation target unavailable, quitting",
			zap.Int("consecutive_failures", e.surfaceFailures),
			zap.Error(err),
		)
		e.Quit()
		return
	}

	e.logger.Warn("failed to acquire presentation target, reconfiguring surface",
		zap.Int("consecutive_failures", e.surfaceFailures),
		zap.Error(err),
	)
	e.reconfigureSurface()
}

func (e *engine) reconfigureSurface() {
	cfg := e.renderer.SurfaceConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return
	}
	if err := e.renderer.Resize(cfg.Width, cfg.Height); err != nil {
		e.logger.Error("failed to reconfigure surface", zap.Error(err))
	}
}

func (e *engine) onKeyUp(keyCode uint32) {
	kind, ok := e.bindings[keyCode]
	if !ok {
		return
	}
	if err := e.AddPass(kind); err != nil {
		e.logger.Warn("key binding ignored", zap.Uint32("key", keyCode), zap.Error(err))
	}
}

// onResize resizes the surface, the graph's targets and the screen globals. Zero sizes (minimized) are ignored.
func (e *engine) onResize(width, height int) {
	if width <= 0 || height <= 0 {
		e.logger.Debug("ignoring empty resize", zap.Int("width", width), zap.Int("height", height))
		return
	}
	if err := e.renderer.Resize(width, height); err != nil {
		e.logger.Error("failed to resize surface", zap.Error(err))
		return
	}
	cfg := e.renderer.SurfaceConfig()
	if err := e.graph.Resize(e.renderer, cfg); err != nil {
		e.logger.Error("failed to resize render graph", zap.Error(err))
	}
	e.globals.SetScreen(cfg.Width, cfg.Height)
}
