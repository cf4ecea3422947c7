package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

var (
	ErrPipelineNotFound = errors.New("render pipeline not found")
	ErrTargetNotView    = errors.New("frame target has no texture view")

	// ErrSurfaceOutdated is returned by BeginFrame while the surface has no extent, e.g. a minimized window.
	// The frame should be skipped and retried once the surface is reconfigured.
	ErrSurfaceOutdated = errors.New("surface is outdated")

	// ErrSurfaceOutOfMemory is returned by BeginFrame when the swapchain image cannot be allocated.
	ErrSurfaceOutOfMemory = errors.New("surface is out of memory")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	logger *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingPipelines     []pipeline.Pipeline
}

// Renderer defines the interface for the rendering system.
//
// The Renderer is the device and queue handle the render graph and its passes run against: it creates the
// offscreen frame targets, records fullscreen passes and submits them. It also owns the surface, handing out
// one presentation target per frame between BeginFrame and Present.
type Renderer interface {
	render_graph.Device
	render_graph.Queue

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// RegisterPipelines creates the GPU render pipeline of each Pipeline via the backend, then caches it by
	// PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// InitBindGroup creates GPU buffers and a bind group from a layout descriptor and stores them
	// on the given BindGroupProvider. Texture and sampler bindings must already be set or borrowed on
	// the provider. Buffer usage and size can be overridden per binding.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created bind group on
	//   - descriptor: the layout descriptor defining the bind group entries
	//   - bufferUsageOverrides: additional buffer usage flags to OR into the derived usage, keyed by binding index (nil safe)
	//   - bufferSizeOverrides: custom buffer sizes to use instead of MinBindingSize, keyed by binding index (nil safe)
	//
	// Returns:
	//   - error: an error if bind group creation fails
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// EncodeFullscreenPass records a single fullscreen draw into its own command buffer.
	// The target is loaded and stored, so prior contents survive where the pass does not write.
	//
	// Parameters:
	//   - pass: the pass description
	//
	// Returns:
	//   - render_graph.CommandBuffer: the finished commands, to be handed to Submit
	//   - error: an error if the pipeline is unknown, the target has no view, or encoding fails
	EncodeFullscreenPass(pass FullscreenPass) (render_graph.CommandBuffer, error)

	// BeginFrame acquires the next swapchain image.
	// Must be paired with Present.
	//
	// Returns:
	//   - render_graph.FrameTarget: the presentation target, valid until Present
	//   - error: an error if the swapchain image could not be acquired
	BeginFrame() (render_graph.FrameTarget, error)

	// Present presents the surface to the display and releases the swapchain image.
	Present()

	// Resize reconfigures the surface for a new size.
	// Also used with the current size to recover a lost surface.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface cannot be configured
	Resize(width, height int) error

	// SurfaceConfig returns the size and format the surface is configured with.
	SurfaceConfig() render_graph.SurfaceConfig

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// Release releases every cached pipeline and the GPU device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer for the window's surface.
// GPU adapter and device failures panic.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - window: the window whose surface the renderer presents to
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
		logger:        zap.NewNop(),
	}

	// options first, so forceFallbackAdapter is known before the adapter request
	for _, opt := range options {
		opt(r)
	}

	switch backendType {
	case BackendTypeWGPU:
		fallthrough
	default:
		r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter)
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if err := r.backend.ConfigureSurface(window.Width(), window.Height()); err != nil {
		panic(err)
	}
	if err := r.RegisterPipelines(r.pendingPipelines...); err != nil {
		panic(err)
	}

	cfg := r.SurfaceConfig()
	r.logger.Info("renderer created",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Uint32("format", cfg.Format),
		zap.Bool("srgb", IsSRGBFormat(wgpu.TextureFormat(cfg.Format))),
	)
	return r
}

func (r *renderer) CreateFrameTarget(label string, cfg render_graph.SurfaceConfig) (render_graph.FrameTarget, error) {
	format := wgpu.TextureFormat(cfg.Format)
	if format == wgpu.TextureFormatUndefined {
		format = r.backend.SurfaceFormat()
	}
	t, err := r.backend.CreateRenderTexture(label, cfg.Width, cfg.Height, format)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("frame target created", zap.String("label", label), zap.Int("width", cfg.Width), zap.Int("height", cfg.Height))
	return t, nil
}

func (r *renderer) Submit(commands ...render_graph.CommandBuffer) {
	buffers := make([]*wgpu.CommandBuffer, 0, len(commands))
	for _, c := range commands {
		if cb, ok := c.(*commandBuffer); ok && cb.buf != nil {
			buffers = append(buffers, cb.buf)
		}
	}
	r.backend.Submit(buffers...)
	for _, c := range commands {
		if c != nil {
			c.Release()
		}
	}
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if err := r.backend.RegisterRenderPipeline(p); err != nil {
			return fmt.Errorf("failed to register pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
		r.logger.Debug("pipeline registered", zap.String("pipeline", key))
	}
	return nil
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error {
	return r.backend.InitBindGroup(provider, descriptor, bufferUsageOverrides, bufferSizeOverrides)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.backend.WriteBuffers(writes)
}

func (r *renderer) EncodeFullscreenPass(pass FullscreenPass) (render_graph.CommandBuffer, error) {
	p := r.Pipeline(pass.PipelineKey)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrPipelineNotFound, pass.PipelineKey)
	}

	vt, ok := pass.Target.(ViewTarget)
	if !ok || vt.View() == nil {
		return nil, fmt.Errorf("pass %q: %w", pass.Label, ErrTargetNotView)
	}

	buf, err := r.backend.EncodeFullscreenPass(p, vt.View(), pass)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pass %q: %w", pass.Label, err)
	}
	return &commandBuffer{buf: buf}, nil
}

func (r *renderer) BeginFrame() (render_graph.FrameTarget, error) {
	t, err := r.backend.AcquireSurface()
	if err != nil {
		return nil, classifySurfaceError(err)
	}
	return t, nil
}

func (r *renderer) Present() {
	r.backend.Present()
}

func (r *renderer) Resize(width, height int) error {
	if err := r.backend.ConfigureSurface(width, height); err != nil {
		return err
	}
	r.logger.Debug("surface configured", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (r *renderer) SurfaceConfig() render_graph.SurfaceConfig {
	w, h := r.backend.SurfaceSize()
	return render_graph.SurfaceConfig{
		Width:  w,
		Height: h,
		Format: uint32(r.backend.SurfaceFormat()),
	}
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Release() {
	r.mu.Lock()
	for key, p := range r.pipelineCache {
		p.Release()
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()
	r.backend.Release()
}

// classifySurfaceError maps acquisition failures reported only as messages by the bindings onto the sentinels.
func classifySurfaceError(err error) error {
	if err == nil || errors.Is(err, ErrSurfaceOutdated) || errors.Is(err, ErrSurfaceOutOfMemory) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory"), strings.Contains(msg, "out-of-memory"):
		return fmt.Errorf("%w: %w", ErrSurfaceOutOfMemory, err)
	case strings.Contains(msg, "outdated"), strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", ErrSurfaceOutdated, err)
	}
	return err
}
