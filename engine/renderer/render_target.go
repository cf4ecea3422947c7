package renderer

import (
	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// ViewTarget is a frame target backed by a GPU texture view that a render pass can write.
type ViewTarget interface {
	render_graph.FrameTarget

	// View returns the texture view render passes attach as their color target.
	View() *wgpu.TextureView
}

// SampledTarget is a ViewTarget that shaders can also sample, such as the render graph's ping/pong textures.
type SampledTarget interface {
	ViewTarget

	// Sampler returns the sampler passes bind alongside View() to read the target.
	Sampler() *wgpu.Sampler
}

// FullscreenPass describes one fullscreen draw recorded into its own command buffer.
type FullscreenPass struct {
	// Label names the pass; the encoder is labelled "<Label> Node Encoder".
	Label string
	// PipelineKey selects the registered pipeline to draw with.
	PipelineKey string
	// Target is the color attachment, loaded and stored so prior contents survive.
	Target render_graph.FrameTarget
	// BindGroups are set in order at group indices 0..n-1. A nil entry leaves that group unset.
	BindGroups []bind_group_provider.BindGroupProvider
	// VertexCount defaults to 3, a single fullscreen triangle.
	VertexCount uint32
}

// renderTexture is an offscreen color target.
type renderTexture struct {
	label   string
	width   int
	height  int
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
}

var _ SampledTarget = &renderTexture{}

func (t *renderTexture) Label() string {
	return t.label
}

func (t *renderTexture) Width() int {
	return t.width
}

func (t *renderTexture) Height() int {
	return t.height
}

func (t *renderTexture) View() *wgpu.TextureView {
	return t.view
}

func (t *renderTexture) Sampler() *wgpu.Sampler {
	return t.sampler
}

func (t *renderTexture) Release() {
	if t.sampler != nil {
		t.sampler.Release()
		t.sampler = nil
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

// surfaceTarget is the swapchain image acquired for a single frame. It is owned by the backend and
// released on Present.
type surfaceTarget struct {
	width  int
	height int
	view   *wgpu.TextureView
}

var _ ViewTarget = &surfaceTarget{}

func (t *surfaceTarget) Label() string {
	return "surface"
}

func (t *surfaceTarget) Width() int {
	return t.width
}

func (t *surfaceTarget) Height() int {
	return t.height
}

func (t *surfaceTarget) View() *wgpu.TextureView {
	return t.view
}

// commandBuffer wraps a finished wgpu command buffer for submission through render_graph.Queue.
type commandBuffer struct {
	buf *wgpu.CommandBuffer
}

var _ render_graph.CommandBuffer = &commandBuffer{}

func (c *commandBuffer) Release() {
	if c.buf != nil {
		c.buf.Release()
		c.buf = nil
	}
}

var srgbFormats = map[wgpu.TextureFormat]bool{
	wgpu.TextureFormatRGBA8UnormSrgb: true,
	wgpu.TextureFormatBGRA8UnormSrgb: true,
}

// IsSRGBFormat reports whether f is one of the sRGB-encoded color formats a surface can report.
func IsSRGBFormat(f wgpu.TextureFormat) bool {
	return srgbFormats[f]
}

// pickSurfaceFormat returns the first sRGB format the surface supports, else its first format.
//
// Parameters:
//   - formats: the formats reported by the surface capabilities, in preference order
//
// Returns:
//   - wgpu.TextureFormat: the chosen format
//   - bool: false if formats is empty
func pickSurfaceFormat(formats []wgpu.TextureFormat) (wgpu.TextureFormat, bool) {
	if len(formats) == 0 {
		return wgpu.TextureFormatUndefined, false
	}
	for _, f := range formats {
		if IsSRGBFormat(f) {
			return f, true
		}
	}
	return formats[0], true
}
