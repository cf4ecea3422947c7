package renderer

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	format        wgpu.TextureFormat
	width, height int

	registered  []string
	registerErr error
	encoded     []FullscreenPass
	submitted   int
	textures    []string
	writes      int
	presentMode PresentMode
	released    bool
	acquireErr  error
}

var _ RendererBackend = &fakeBackend{}

func (f *fakeBackend) Device() *wgpu.Device { return nil }
func (f *fakeBackend) Queue() *wgpu.Queue   { return nil }

func (f *fakeBackend) ConfigureSurface(width, height int) error {
	f.width, f.height = width, height
	return nil
}

func (f *fakeBackend) SurfaceFormat() wgpu.TextureFormat { return f.format }
func (f *fakeBackend) SurfaceSize() (int, int)           { return f.width, f.height }
func (f *fakeBackend) SetPresentMode(mode PresentMode)   { f.presentMode = mode }

func (f *fakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, p.PipelineKey())
	return nil
}

func (f *fakeBackend) InitBindGroup(bind_group_provider.BindGroupProvider, wgpu.BindGroupLayoutDescriptor, map[int]wgpu.BufferUsage, map[int]uint64) error {
	return nil
}

func (f *fakeBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) { f.writes += len(writes) }

func (f *fakeBackend) CreateRenderTexture(label string, width, height int, format wgpu.TextureFormat) (*renderTexture, error) {
	f.textures = append(f.textures, label)
	return &renderTexture{label: label, width: width, height: height}, nil
}

func (f *fakeBackend) EncodeFullscreenPass(_ pipeline.Pipeline, _ *wgpu.TextureView, pass FullscreenPass) (*wgpu.CommandBuffer, error) {
	f.encoded = append(f.encoded, pass)
	return nil, nil
}

func (f *fakeBackend) Submit(buffers ...*wgpu.CommandBuffer) { f.submitted += len(buffers) }

func (f *fakeBackend) AcquireSurface() (*surfaceTarget, error) {
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return &surfaceTarget{width: f.width, height: f.height, view: &wgpu.TextureView{}}, nil
}

func (f *fakeBackend) Present() {}

func (f *fakeBackend) Release() { f.released = true }

func newTestRenderer(backend *fakeBackend) *renderer {
	return &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backend:       backend,
		logger:        zap.NewNop(),
	}
}

type plainTarget struct{}

func (plainTarget) Label() string { return "plain" }
func (plainTarget) Width() int    { return 1 }
func (plainTarget) Height() int   { return 1 }

func TestPickSurfaceFormat(t *testing.T) {
	f, ok := pickSurfaceFormat([]wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb})
	require.True(t, ok)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, f)

	f, ok = pickSurfaceFormat([]wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm, wgpu.TextureFormatBGRA8Unorm})
	require.True(t, ok)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, f)

	_, ok = pickSurfaceFormat(nil)
	assert.False(t, ok)
}

func TestParsePresentMode(t *testing.T) {
	m, err := ParsePresentMode("VSync")
	require.NoError(t, err)
	assert.Equal(t, PresentModeVSync, m)

	m, err = ParsePresentMode(" uncapped ")
	require.NoError(t, err)
	assert.Equal(t, PresentModeUncapped, m)
	assert.Equal(t, "uncapped", m.String())

	_, err = ParsePresentMode("mailbox")
	assert.Error(t, err)

	assert.Equal(t, wgpu.PresentModeFifo, wgpuPresentMode(PresentModeVSync))
	assert.Equal(t, wgpu.PresentModeImmediate, wgpuPresentMode(PresentModeUncapped))
}

func TestMergeBindGroupLayouts(t *testing.T) {
	vertex := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageVertex}}},
	}
	fragment := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		}},
		1: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageFragment}}},
	}

	merged := mergeBindGroupLayouts(vertex, fragment)
	require.Len(t, merged, 2)
	require.Len(t, merged[0].Entries, 2)
	assert.Equal(t, uint32(0), merged[0].Entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, merged[0].Entries[0].Visibility)
	assert.Equal(t, uint32(1), merged[0].Entries[1].Binding)
	assert.Equal(t, fragment[1], merged[1])
}

func TestRenderer_CreateFrameTargetUsesSurfaceFormat(t *testing.T) {
	backend := &fakeBackend{format: wgpu.TextureFormatBGRA8UnormSrgb, width: 640, height: 480}
	r := newTestRenderer(backend)

	cfg := r.SurfaceConfig()
	assert.Equal(t, render_graph.SurfaceConfig{Width: 640, Height: 480, Format: uint32(wgpu.TextureFormatBGRA8UnormSrgb)}, cfg)

	target, err := r.CreateFrameTarget("ping_texture", render_graph.SurfaceConfig{Width: 64, Height: 32})
	require.NoError(t, err)
	assert.Equal(t, "ping_texture", target.Label())
	assert.Equal(t, 64, target.Width())
	assert.Equal(t, 32, target.Height())
	_, sampled := target.(SampledTarget)
	assert.True(t, sampled)
	assert.Equal(t, []string{"ping_texture"}, backend.textures)
}

func TestRenderer_RegisterPipelines(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestRenderer(backend)

	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("base"), pipeline.NewPipeline("fract")))
	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("base")))
	assert.Equal(t, []string{"base", "fract"}, backend.registered)
	assert.NotNil(t, r.Pipeline("fract"))
	assert.Nil(t, r.Pipeline("missing"))

	backend.registerErr = errors.New("boom")
	err := r.RegisterPipelines(pipeline.NewPipeline("invert"))
	assert.ErrorContains(t, err, `failed to register pipeline "invert": boom`)
	assert.Nil(t, r.Pipeline("invert"))
}

func TestRenderer_EncodeFullscreenPass(t *testing.T) {
	backend := &fakeBackend{}
	r := newTestRenderer(backend)
	target := &renderTexture{label: "pong_texture", view: &wgpu.TextureView{}}

	_, err := r.EncodeFullscreenPass(FullscreenPass{Label: "Fract", PipelineKey: "fract", Target: target})
	assert.ErrorIs(t, err, ErrPipelineNotFound)

	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("fract")))

	_, err = r.EncodeFullscreenPass(FullscreenPass{Label: "Fract", PipelineKey: "fract", Target: plainTarget{}})
	assert.ErrorIs(t, err, ErrTargetNotView)

	_, err = r.EncodeFullscreenPass(FullscreenPass{Label: "Fract", PipelineKey: "fract", Target: &renderTexture{label: "released"}})
	assert.ErrorIs(t, err, ErrTargetNotView)

	cb, err := r.EncodeFullscreenPass(FullscreenPass{Label: "Fract", PipelineKey: "fract", Target: target})
	require.NoError(t, err)
	require.Len(t, backend.encoded, 1)
	assert.Equal(t, "Fract", backend.encoded[0].Label)

	r.Submit(cb)
	assert.Equal(t, 0, backend.submitted, "empty command buffers are not forwarded")
}

func TestRenderer_BeginFrameAndRelease(t *testing.T) {
	backend := &fakeBackend{width: 800, height: 600}
	r := newTestRenderer(backend)

	present, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Equal(t, "surface", present.Label())
	assert.Equal(t, 800, present.Width())

	require.NoError(t, r.Resize(1024, 768))
	assert.Equal(t, 1024, r.SurfaceConfig().Width)

	r.SetPresentMode(PresentModeUncapped)
	assert.Equal(t, PresentModeUncapped, backend.presentMode)

	require.NoError(t, r.RegisterPipelines(pipeline.NewPipeline("base")))
	r.Release()
	assert.True(t, backend.released)
	assert.Nil(t, r.Pipeline("base"))
}

func TestBeginFrame_ClassifiesSurfaceErrors(t *testing.T) {
	lost := errors.New("wgpu.(*Surface).GetCurrentTexture(): surface lost")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "zero extent", err: ErrSurfaceOutdated, want: ErrSurfaceOutdated},
		{name: "outdated message", err: errors.New("wgpu.(*Surface).GetCurrentTexture(): Surface is Outdated"), want: ErrSurfaceOutdated},
		{name: "timeout message", err: errors.New("acquire Timeout"), want: ErrSurfaceOutdated},
		{name: "out of memory", err: errors.New("wgpu.(*Surface).GetCurrentTexture(): Out of memory"), want: ErrSurfaceOutOfMemory},
		{name: "other", err: lost, want: lost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRenderer(&fakeBackend{width: 800, height: 600, acquireErr: tt.err})
			target, err := r.BeginFrame()
			assert.Nil(t, target)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, classifySurfaceError(nil))
	assert.NotErrorIs(t, classifySurfaceError(lost), ErrSurfaceOutdated)
	assert.NotErrorIs(t, classifySurfaceError(lost), ErrSurfaceOutOfMemory)
}
