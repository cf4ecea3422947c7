package pass

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/system_uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampledTarget struct {
	label    string
	w, h     int
	view     *wgpu.TextureView
	sampler  *wgpu.Sampler
	released bool
}

func newSampledTarget(label string, w, h int) *sampledTarget {
	return &sampledTarget{label: label, w: w, h: h, view: &wgpu.TextureView{}, sampler: &wgpu.Sampler{}}
}

func (t *sampledTarget) Label() string           { return t.label }
func (t *sampledTarget) Width() int              { return t.w }
func (t *sampledTarget) Height() int             { return t.h }
func (t *sampledTarget) View() *wgpu.TextureView { return t.view }
func (t *sampledTarget) Sampler() *wgpu.Sampler  { return t.sampler }
func (t *sampledTarget) Release()                { t.released = true }

// surface is a presentation target: a view without a sampler.
type surface struct{}

func (surface) Label() string           { return "surface" }
func (surface) Width() int              { return 800 }
func (surface) Height() int             { return 600 }
func (surface) View() *wgpu.TextureView { return nil }

type bindCall struct {
	provider string
	entries  int
	view     *wgpu.TextureView
}

type fakeCommand struct{ pass renderer.FullscreenPass }

func (c *fakeCommand) Release() {}

type fakeDevice struct {
	targets  map[string]*sampledTarget
	binds    []bindCall
	bindErr  error
	passes   []renderer.FullscreenPass
	encodeOK bool
	writes   int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{targets: make(map[string]*sampledTarget), encodeOK: true}
}

func (d *fakeDevice) CreateFrameTarget(label string, cfg render_graph.SurfaceConfig) (render_graph.FrameTarget, error) {
	t := newSampledTarget(label, cfg.Width, cfg.Height)
	d.targets[label] = t
	return t, nil
}

func (d *fakeDevice) EncodeFullscreenPass(pass renderer.FullscreenPass) (render_graph.CommandBuffer, error) {
	if !d.encodeOK {
		return nil, errors.New("encode failed")
	}
	d.passes = append(d.passes, pass)
	return &fakeCommand{pass: pass}, nil
}

func (d *fakeDevice) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, _ map[int]wgpu.BufferUsage, _ map[int]uint64) error {
	if d.bindErr != nil {
		return d.bindErr
	}
	d.binds = append(d.binds, bindCall{provider: provider.Label(), entries: len(descriptor.Entries), view: provider.TextureView(0)})
	return nil
}

func (d *fakeDevice) WriteBuffers(writes []bind_group_provider.BufferWrite) { d.writes += len(writes) }

type fakeQueue struct{ submitted []string }

func (q *fakeQueue) Submit(commands ...render_graph.CommandBuffer) {
	for _, c := range commands {
		q.submitted = append(q.submitted, c.(*fakeCommand).pass.Label)
	}
}

type fakeRegistrar struct {
	keys []string
	err  error
}

func (r *fakeRegistrar) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	if r.err != nil {
		return r.err
	}
	for _, p := range pipelines {
		r.keys = append(r.keys, p.PipelineKey())
	}
	return nil
}

// plainDevice can allocate targets but cannot encode passes.
type plainDevice struct{}

func (plainDevice) CreateFrameTarget(label string, cfg render_graph.SurfaceConfig) (render_graph.FrameTarget, error) {
	return newSampledTarget(label, cfg.Width, cfg.Height), nil
}

func newTestLibrary(t *testing.T, dev *fakeDevice, options ...LibraryBuilderOption) (Library, system_uniform.SystemUniform) {
	t.Helper()
	su, err := system_uniform.New(dev)
	require.NoError(t, err)
	lib, err := NewLibrary(&fakeRegistrar{}, append([]LibraryBuilderOption{WithSystemUniform(su), WithWorkers(2)}, options...)...)
	require.NoError(t, err)
	return lib, su
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "Fract", KindFract.Label())
	assert.Equal(t, "", Kind("").Label())
}

func TestNewLibrary_RegistersBuiltinKinds(t *testing.T) {
	dev := newFakeDevice()
	su, err := system_uniform.New(dev)
	require.NoError(t, err)
	reg := &fakeRegistrar{}

	lib, err := NewLibrary(reg, WithSystemUniform(su))
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindBase, KindFract, KindInvert, KindVignette}, lib.Kinds())
	assert.Equal(t, []string{"base", "fract", "invert", "vignette"}, reg.keys)
	assert.False(t, lib.Samples(KindBase))
	assert.True(t, lib.Samples(KindFract))
	assert.True(t, lib.Samples(KindVignette))
	assert.False(t, lib.Samples("missing"))
	assert.True(t, lib.Has(KindInvert))

	p := lib.Pipeline(KindFract)
	require.NotNil(t, p)
	assert.True(t, p.Ready())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Nil(t, p.BlendState())
}

func TestNewLibrary_Errors(t *testing.T) {
	_, err := NewLibrary(&fakeRegistrar{})
	assert.ErrorIs(t, err, ErrNoSystemUniform)

	dev := newFakeDevice()
	su, err := system_uniform.New(dev)
	require.NoError(t, err)

	_, err = NewLibrary(&fakeRegistrar{err: errors.New("gpu gone")}, WithSystemUniform(su))
	assert.ErrorContains(t, err, "gpu gone")

	broken := fstest.MapFS{
		"invert.wgsl": {Data: []byte("fn helper() {}")},
		"sepia.wgsl":  {Data: []byte("//@oxy:include camera\n@fragment fn fs_main() {}")},
	}
	_, err = NewLibrary(&fakeRegistrar{}, WithSystemUniform(su), WithShaderFS(broken))
	require.Error(t, err)
	assert.ErrorContains(t, err, "no @fragment entry point")
	assert.ErrorContains(t, err, `unknown struct type "camera"`)
}

func TestLayoutOf(t *testing.T) {
	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev)
	l := lib.(*library)

	assert.Equal(t, 0, l.layouts[KindBase].globalsGroup)
	assert.Equal(t, -1, l.layouts[KindBase].inputGroup)

	fract := l.layouts[KindFract]
	assert.Equal(t, -1, fract.globalsGroup)
	assert.Equal(t, 0, fract.inputGroup)
	assert.Equal(t, 0, fract.inputTexture)
	assert.Equal(t, 1, fract.inputSampler)
	assert.Len(t, fract.inputDescriptor.Entries, 2)
	assert.Equal(t, 1, fract.groupCount())

	vignette := l.layouts[KindVignette]
	assert.Equal(t, 1, vignette.globalsGroup)
	assert.Equal(t, 0, vignette.inputGroup)
	assert.Equal(t, 2, vignette.groupCount())
}

func TestNewLibrary_ShaderOverrides(t *testing.T) {
	dir := t.TempDir()
	sepia := `//@oxy:provider 2 0 input input_texture
@group(2) @binding(0) var src: texture_2d<f32>;
//@oxy:provider 2 1 input input_sampler
@group(2) @binding(1) var srcSampler: sampler;

@fragment
fn sepia_main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    let c = textureSample(src, srcSampler, uv);
    let l = dot(c.rgb, vec3<f32>(0.299, 0.587, 0.114));
    return vec4<f32>(l * vec3<f32>(1.07, 0.74, 0.43), c.a);
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sepia.wgsl"), []byte(sepia), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev, WithShaderDir(dir))

	assert.Equal(t, []Kind{KindBase, KindFract, KindInvert, KindVignette, "sepia"}, lib.Kinds())
	assert.True(t, lib.Samples("sepia"))
	assert.Equal(t, "sepia_main", lib.Pipeline("sepia").Shader(shader.ShaderTypeFragment).EntryPoint())

	lay := lib.(*library).layouts["sepia"]
	assert.Equal(t, 2, lay.inputGroup)
	assert.Equal(t, 3, lay.groupCount())
}

func TestNewBaseNode_RejectsSamplingKind(t *testing.T) {
	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev, WithBaseKind(KindFract))

	_, err := lib.NewBaseNode()
	assert.ErrorIs(t, err, ErrNoBaseKind)

	_, err = lib.NewNode("sepia")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRenderGraph_ScenarioChain(t *testing.T) {
	dev := newFakeDevice()
	lib, su := newTestLibrary(t, dev)
	q := &fakeQueue{}

	g, err := NewRenderGraph(dev, render_graph.SurfaceConfig{Width: 800, Height: 600}, lib)
	require.NoError(t, err)

	fract, err := AppendKind(g, dev, lib, KindFract)
	require.NoError(t, err)
	invert, err := AppendKind(g, dev, lib, KindInvert)
	require.NoError(t, err)

	assert.Equal(t, "ping_texture", fract.(*samplingNode).Input())
	assert.Equal(t, "pong_texture", invert.(*samplingNode).Input())

	require.NoError(t, g.Traverse(dev, surface{}, q))

	assert.Equal(t, []string{"Base", "Fract", "Invert"}, q.submitted)
	require.Len(t, dev.passes, 3)
	assert.Equal(t, "ping_texture", dev.passes[0].Target.Label())
	assert.Equal(t, "pong_texture", dev.passes[1].Target.Label())
	assert.Equal(t, "surface", dev.passes[2].Target.Label())
	assert.Equal(t, uint32(3), dev.passes[1].VertexCount)
	assert.Equal(t, "invert", dev.passes[2].PipelineKey)

	require.Len(t, dev.passes[0].BindGroups, 1)
	assert.Same(t, su.Provider(), dev.passes[0].BindGroups[0])
	require.Len(t, dev.passes[1].BindGroups, 1)
	assert.Equal(t, "Fract Input", dev.passes[1].BindGroups[0].Label())

	// Base's globals bind group, then one input bind group per sampling node.
	require.Len(t, dev.binds, 3)
	assert.Same(t, dev.targets["ping_texture"].view, dev.binds[1].view)
	assert.Same(t, dev.targets["pong_texture"].view, dev.binds[2].view)
}

func TestRenderGraph_VignetteBindsBothGroups(t *testing.T) {
	dev := newFakeDevice()
	lib, su := newTestLibrary(t, dev)
	q := &fakeQueue{}

	g, err := NewRenderGraph(dev, render_graph.SurfaceConfig{Width: 320, Height: 240}, lib)
	require.NoError(t, err)
	_, err = AppendKind(g, dev, lib, KindVignette)
	require.NoError(t, err)

	require.NoError(t, g.Traverse(dev, surface{}, q))
	require.Len(t, dev.passes, 2)
	groups := dev.passes[1].BindGroups
	require.Len(t, groups, 2)
	assert.Equal(t, "Vignette Input", groups[0].Label())
	assert.Same(t, su.Provider(), groups[1])
}

func TestRenderGraph_ResizeRebindsInputs(t *testing.T) {
	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev)

	g, err := NewRenderGraph(dev, render_graph.SurfaceConfig{Width: 800, Height: 600}, lib)
	require.NoError(t, err)
	fract, err := AppendKind(g, dev, lib, KindFract)
	require.NoError(t, err)
	oldPing := dev.targets["ping_texture"]

	require.NoError(t, g.Resize(dev, render_graph.SurfaceConfig{Width: 1024, Height: 768}))

	assert.True(t, oldPing.released)
	newPing := dev.targets["ping_texture"]
	assert.NotSame(t, oldPing, newPing)
	assert.Equal(t, 1024, newPing.Width())
	assert.True(t, fract.(render_graph.ReadyChecker).Ready())
	assert.Same(t, newPing.view, dev.binds[len(dev.binds)-1].view)
}

func TestSamplingNode_Binding(t *testing.T) {
	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev)
	q := &fakeQueue{}

	node, err := lib.NewNode(KindInvert)
	require.NoError(t, err)
	sn := node.(*samplingNode)
	assert.Equal(t, "Invert", sn.Label())
	assert.Equal(t, KindInvert, sn.Kind())
	assert.False(t, sn.Ready())

	out := newSampledTarget("pong_texture", 8, 8)
	require.NoError(t, sn.Execute(dev, out, q))
	assert.Empty(t, q.submitted, "unbound node submits nothing")

	err = sn.BindInput(plainDevice{}, newSampledTarget("ping_texture", 8, 8))
	assert.ErrorIs(t, err, ErrUnsupportedDevice)

	err = sn.BindInput(dev, surface{})
	assert.ErrorIs(t, err, ErrTargetNotSampleable)

	dev.bindErr = errors.New("layout mismatch")
	err = sn.BindInput(dev, newSampledTarget("ping_texture", 8, 8))
	assert.ErrorContains(t, err, "layout mismatch")
	assert.False(t, sn.Ready())
	assert.Nil(t, sn.provider.TextureView(0), "borrowed view dropped after a failed bind")
	dev.bindErr = nil

	in := newSampledTarget("ping_texture", 8, 8)
	require.NoError(t, sn.BindInput(dev, in))
	assert.True(t, sn.Ready())
	assert.True(t, sn.provider.Borrowed(0))
	assert.Same(t, in.sampler, sn.provider.Sampler(1))
	assert.ErrorIs(t, sn.BindInput(dev, in), render_graph.ErrInputAlreadyBound)

	require.NoError(t, sn.Execute(dev, out, q))
	assert.Equal(t, []string{"Invert"}, q.submitted)

	sn.ReleaseInput()
	assert.False(t, sn.Ready())
	assert.Equal(t, "", sn.Input())
	require.NoError(t, sn.BindInput(dev, in))

	sn.Release()
	assert.False(t, sn.Ready())
	assert.False(t, in.released, "borrowed targets stay owned by the graph")
}

func TestBaseNode_Execute(t *testing.T) {
	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev)

	node, err := lib.NewBaseNode()
	require.NoError(t, err)
	_, isBinder := node.(render_graph.InputBinder)
	assert.False(t, isBinder)

	err = node.Execute(plainDevice{}, surface{}, &fakeQueue{})
	assert.ErrorIs(t, err, ErrUnsupportedDevice)

	dev.encodeOK = false
	err = node.Execute(dev, surface{}, &fakeQueue{})
	assert.ErrorContains(t, err, "encode failed")
}

func TestAppendKind_Errors(t *testing.T) {
	dev := newFakeDevice()
	lib, _ := newTestLibrary(t, dev)

	g, err := NewRenderGraph(dev, render_graph.SurfaceConfig{Width: 64, Height: 64}, lib, render_graph.WithMaxNodes(2))
	require.NoError(t, err)

	_, err = AppendKind(g, dev, lib, "sepia")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = AppendKind(g, dev, lib, KindBase)
	require.NoError(t, err)
	_, err = AppendKind(g, dev, lib, KindFract)
	assert.ErrorIs(t, err, render_graph.ErrGraphFull)
	assert.Equal(t, 2, g.Len())
}
