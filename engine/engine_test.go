package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"github.com/Carmen-Shannon/oxy-graph/engine/pass"
	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/system_uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTexture struct {
	label   string
	w, h    int
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

func (t *fakeTexture) Label() string           { return t.label }
func (t *fakeTexture) Width() int              { return t.w }
func (t *fakeTexture) Height() int             { return t.h }
func (t *fakeTexture) View() *wgpu.TextureView { return t.view }
func (t *fakeTexture) Sampler() *wgpu.Sampler  { return t.sampler }

func (t *fakeTexture) Release() {}

type fakeSurface struct{ w, h int }

func (s fakeSurface) Label() string { return "surface" }
func (s fakeSurface) Width() int    { return s.w }
func (s fakeSurface) Height() int   { return s.h }

type fakeCommand struct{ label string }

func (c *fakeCommand) Release() {}

// fakeRenderer satisfies FrameRenderer, pass.Device, system_uniform.Device and pass.PipelineRegistrar.
type fakeRenderer struct {
	width, height int

	targets   map[string]*fakeTexture
	submitted []string
	presented int
	resizes   [][2]int
	writes    int

	beginErrs int
	beginErr  error
	encodeErr error
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{width: 800, height: 600, targets: make(map[string]*fakeTexture)}
}

func (r *fakeRenderer) CreateFrameTarget(label string, cfg render_graph.SurfaceConfig) (render_graph.FrameTarget, error) {
	t := &fakeTexture{label: label, w: cfg.Width, h: cfg.Height, view: &wgpu.TextureView{}, sampler: &wgpu.Sampler{}}
	r.targets[label] = t
	return t, nil
}

func (r *fakeRenderer) Submit(commands ...render_graph.CommandBuffer) {
	for _, c := range commands {
		r.submitted = append(r.submitted, c.(*fakeCommand).label)
	}
}

func (r *fakeRenderer) BeginFrame() (render_graph.FrameTarget, error) {
	if r.beginErrs > 0 {
		r.beginErrs--
		if r.beginErr != nil {
			return nil, r.beginErr
		}
		return nil, errors.New("surface lost")
	}
	return fakeSurface{w: r.width, h: r.height}, nil
}

func (r *fakeRenderer) Present() { r.presented++ }

func (r *fakeRenderer) Resize(width, height int) error {
	r.width, r.height = width, height
	r.resizes = append(r.resizes, [2]int{width, height})
	return nil
}

func (r *fakeRenderer) SurfaceConfig() render_graph.SurfaceConfig {
	return render_graph.SurfaceConfig{Width: r.width, Height: r.height}
}

func (r *fakeRenderer) EncodeFullscreenPass(p renderer.FullscreenPass) (render_graph.CommandBuffer, error) {
	if r.encodeErr != nil {
		return nil, r.encodeErr
	}
	return &fakeCommand{label: p.Label}, nil
}

func (r *fakeRenderer) InitBindGroup(bind_group_provider.BindGroupProvider, wgpu.BindGroupLayoutDescriptor, map[int]wgpu.BufferUsage, map[int]uint64) error {
	return nil
}

func (r *fakeRenderer) WriteBuffers(writes []bind_group_provider.BufferWrite) { r.writes += len(writes) }

func (r *fakeRenderer) RegisterPipelines(...pipeline.Pipeline) error { return nil }

// fakeWindow runs up to maxFrames update iterations, calling beforeFrame ahead of each.
type fakeWindow struct {
	closed      atomic.Bool
	width       int
	height      int
	maxFrames   int
	tick        time.Duration
	updates     int
	beforeFrame func(w *fakeWindow, i int)

	onUpdate    func()
	onResize    func(width, height int)
	onKeyDown   func(keyCode uint32)
	onKeyUp     func(keyCode uint32)
	onMouseMove func(x, y float32)
}

func (w *fakeWindow) SetUpdateCallback(cb func())                  { w.onUpdate = cb }
func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetKeyDownCallback(cb func(keyCode uint32))   { w.onKeyDown = cb }
func (w *fakeWindow) SetKeyUpCallback(cb func(keyCode uint32))     { w.onKeyUp = cb }
func (w *fakeWindow) SetMouseMoveCallback(cb func(x, y float32))   { w.onMouseMove = cb }
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor   { return nil }
func (w *fakeWindow) IsRunning() bool                              { return !w.closed.Load() }
func (w *fakeWindow) RequestClose()                                { w.closed.Store(true) }
func (w *fakeWindow) Width() int                                   { return w.width }
func (w *fakeWindow) Height() int                                  { return w.height }

func (w *fakeWindow) Close() error {
	w.RequestClose()
	return nil
}

// resize records the framebuffer size before notifying, as the GLFW window does.
func (w *fakeWindow) resize(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *fakeWindow) ProcessMessages() {
	for i := 0; i < w.maxFrames && w.IsRunning(); i++ {
		if w.beforeFrame != nil {
			w.beforeFrame(w, i)
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		w.updates++
		if w.tick > 0 {
			time.Sleep(w.tick)
		}
	}
}

type harness struct {
	renderer *fakeRenderer
	window   *fakeWindow
	graph    render_graph.RenderGraph
	globals  system_uniform.SystemUniform
	engine   *engine
}

func newHarness(t *testing.T, frames int, options ...EngineBuilderOption) *harness {
	t.Helper()
	r := newFakeRenderer()
	w := &fakeWindow{maxFrames: frames, width: 800, height: 600}

	su, err := system_uniform.New(r)
	require.NoError(t, err)
	lib, err := pass.NewLibrary(r, pass.WithSystemUniform(su))
	require.NoError(t, err)
	g, err := pass.NewRenderGraph(r, r.SurfaceConfig(), lib)
	require.NoError(t, err)

	e, err := NewEngine(Components{Window: w, Renderer: r, Graph: g, Library: lib, Globals: su}, options...)
	require.NoError(t, err)
	return &harness{renderer: r, window: w, graph: g, globals: su, engine: e.(*engine)}
}

func TestNewEngine_MissingComponents(t *testing.T) {
	h := newHarness(t, 0)
	full := Components{Window: h.window, Renderer: h.renderer, Graph: h.graph, Library: h.engine.library, Globals: h.globals}

	for name, c := range map[string]Components{
		"window":   {Renderer: full.Renderer, Graph: full.Graph, Library: full.Library, Globals: full.Globals},
		"renderer": {Window: full.Window, Graph: full.Graph, Library: full.Library, Globals: full.Globals},
		"graph":    {Window: full.Window, Renderer: full.Renderer, Library: full.Library, Globals: full.Globals},
		"library":  {Window: full.Window, Renderer: full.Renderer, Graph: full.Graph, Globals: full.Globals},
		"globals":  {Window: full.Window, Renderer: full.Renderer, Graph: full.Graph, Library: full.Library},
	} {
		_, err := NewEngine(c)
		assert.ErrorIs(t, err, ErrMissingComponent, name)
		assert.ErrorContains(t, err, name)
	}
}

func TestNewEngine_SetsScreenGlobals(t *testing.T) {
	h := newHarness(t, 0)
	assert.Equal(t, [2]float32{800, 600}, h.globals.Data().Screen)
}

func TestEngine_KeyUpAppendsBoundPass(t *testing.T) {
	h := newHarness(t, 3, WithKeyBinding(common.KeySpace, pass.KindFract))
	h.window.beforeFrame = func(w *fakeWindow, i int) {
		if i == 0 {
			w.onKeyUp(common.KeyF)
			w.onKeyUp(common.KeySpace)
		}
	}

	require.NoError(t, h.engine.Run(context.Background()))

	require.Equal(t, 2, h.graph.Len(), "unbound keys append nothing")
	assert.Equal(t, "Fract", h.graph.Node(1).Label())
	assert.Equal(t, []string{"Base", "Fract", "Base", "Fract", "Base", "Fract"}, h.renderer.submitted)
	assert.Equal(t, 3, h.renderer.presented)
	assert.Positive(t, h.renderer.writes)
}

func TestEngine_AppendsWaitForNextFrame(t *testing.T) {
	h := newHarness(t, 2)
	h.window.beforeFrame = func(_ *fakeWindow, i int) {
		if i == 1 {
			require.NoError(t, h.engine.AddPass(pass.KindInvert))
			assert.Equal(t, 1, h.graph.Len(), "queued, not applied")
		}
	}

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, []string{"Base", "Base", "Invert"}, h.renderer.submitted)
}

func TestEngine_AddPass(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHarness(t, 0, WithCommandBuffer(1), WithMetrics(metrics.NewFrame(reg)))

	assert.ErrorIs(t, h.engine.AddPass("sepia"), pass.ErrUnknownKind)
	require.NoError(t, h.engine.AddPass(pass.KindFract))
	assert.ErrorIs(t, h.engine.AddPass(pass.KindFract), ErrCommandQueueFull)

	expected := `
# HELP oxy_frame_dropped_commands_total Total number of graph commands dropped because the command queue was full
# TYPE oxy_frame_dropped_commands_total counter
oxy_frame_dropped_commands_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "oxy_frame_dropped_commands_total"))

	h.engine.Quit()
	h.engine.Quit()
	assert.ErrorIs(t, h.engine.AddPass(pass.KindFract), ErrEngineStopped)
	assert.True(t, h.window.closed.Load())
}

func TestEngine_SurfaceFailuresQuit(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	h := newHarness(t, 10, WithMaxSurfaceFailures(3), WithLogger(zap.New(core)))
	h.renderer.beginErrs = 100

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 3, h.window.updates)
	assert.Equal(t, 0, h.renderer.presented)
	assert.Equal(t, [][2]int{{800, 600}, {800, 600}}, h.renderer.resizes, "reconfigured at the current size")
	assert.Equal(t, 2, logs.FilterMessage("failed to acquire presentation target, reconfiguring surface").Len())
	assert.Equal(t, 1, logs.FilterMessage("presentation target unavailable, quitting").Len())
}

func TestEngine_SurfaceFailuresReset(t *testing.T) {
	h := newHarness(t, 6, WithMaxSurfaceFailures(3))
	h.renderer.beginErrs = 2

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 6, h.window.updates)
	assert.Equal(t, 4, h.renderer.presented)
	assert.Equal(t, 0, h.engine.surfaceFailures)
}

func TestEngine_MinimizedWindowSkipsFrames(t *testing.T) {
	h := newHarness(t, 20, WithMaxSurfaceFailures(3))
	h.renderer.beginErrs = 100
	h.renderer.beginErr = renderer.ErrSurfaceOutdated
	var slept []time.Duration
	h.engine.sleep = func(d time.Duration) { slept = append(slept, d) }
	h.window.beforeFrame = func(w *fakeWindow, i int) {
		switch i {
		case 0:
			w.resize(0, 0)
		case 10:
			w.resize(800, 600)
			h.renderer.beginErrs = 0
		}
	}

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 20, h.window.updates, "a minimized window never quits the loop")
	assert.Equal(t, 10, h.renderer.presented)
	assert.Len(t, slept, 10)
	assert.Equal(t, 0, h.engine.surfaceFailures)
	assert.Equal(t, [][2]int{{800, 600}}, h.renderer.resizes, "only the restore reconfigures")
}

func TestEngine_OutdatedSurfaceDoesNotCount(t *testing.T) {
	h := newHarness(t, 10, WithMaxSurfaceFailures(3))
	h.renderer.beginErrs = 8
	h.renderer.beginErr = fmt.Errorf("acquire: %w", renderer.ErrSurfaceOutdated)

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 10, h.window.updates)
	assert.Equal(t, 2, h.renderer.presented)
	assert.Len(t, h.renderer.resizes, 8, "each outdated frame reconfigures")
	assert.Equal(t, 0, h.engine.surfaceFailures)
}

func TestEngine_OutOfMemoryQuits(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := newHarness(t, 10, WithMaxSurfaceFailures(5), WithLogger(zap.New(core)))
	h.renderer.beginErrs = 1
	h.renderer.beginErr = renderer.ErrSurfaceOutOfMemory

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, 1, h.window.updates)
	assert.Equal(t, 0, h.renderer.presented)
	assert.Empty(t, h.renderer.resizes)
	assert.Equal(t, 1, logs.FilterMessage("presentation target out of memory, quitting").Len())
}

func TestEngine_TraversalErrorStillPresents(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := newHarness(t, 2, WithLogger(zap.New(core)))
	h.renderer.encodeErr = errors.New("device lost")

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, 2, h.renderer.presented)
	assert.Equal(t, 2, logs.FilterMessage("frame traversal failed").Len())
}

func TestEngine_InputCallbacks(t *testing.T) {
	h := newHarness(t, 0)
	require.NoError(t, h.engine.AddPass(pass.KindFract))
	h.engine.drainCommands()
	oldPing := h.renderer.targets["ping_texture"]

	h.window.onResize(0, 0)
	assert.Empty(t, h.renderer.resizes, "minimized sizes are ignored")

	h.window.onResize(1024, 768)
	assert.Equal(t, [][2]int{{1024, 768}}, h.renderer.resizes)
	assert.Equal(t, 1024, h.graph.SurfaceConfig().Width)
	assert.NotSame(t, oldPing, h.renderer.targets["ping_texture"])
	assert.Equal(t, 1024, h.renderer.targets["ping_texture"].Width())
	assert.True(t, h.graph.Node(1).(render_graph.ReadyChecker).Ready(), "re-wired after resize")
	assert.Equal(t, [2]float32{1024, 768}, h.globals.Data().Screen)

	h.window.onMouseMove(12, 34)
	assert.Equal(t, [2]float32{12, 34}, h.globals.Data().Mouse)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t, 10000)
	h.window.tick = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, h.window.closed.Load())
	assert.Less(t, h.window.updates, 10000)
}

func TestEngine_FrameLimit(t *testing.T) {
	h := newHarness(t, 1, WithFrameLimit(100))
	clock := time.Unix(0, 0)
	h.engine.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	var slept []time.Duration
	h.engine.sleep = func(d time.Duration) { slept = append(slept, d) }

	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, []time.Duration{9 * time.Millisecond}, slept)
}
