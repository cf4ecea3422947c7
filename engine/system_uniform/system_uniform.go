// package system_uniform holds the per-frame globals (surface size, cursor position, elapsed time) that
// render passes read through a uniform buffer.
package system_uniform

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// Device is the part of the renderer the uniform needs to create and update its buffer.
type Device interface {
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error
	WriteBuffers(writes []bind_group_provider.BufferWrite)
}

// systemUniform is the implementation of the SystemUniform interface.
type systemUniform struct {
	mu sync.Mutex

	label      string
	visibility wgpu.ShaderStage
	data       GPUSystemUniform
	dirty      bool

	device   Device
	provider bind_group_provider.BindGroupProvider
}

// SystemUniform tracks the globals uniform on the CPU and uploads it when it changed.
type SystemUniform interface {
	// SetScreen records the surface size in pixels.
	//
	// Parameters:
	//   - width: the surface width
	//   - height: the surface height
	SetScreen(width, height int)

	// SetMouse records the cursor position in pixels.
	//
	// Parameters:
	//   - x: the cursor x position
	//   - y: the cursor y position
	SetMouse(x, y float32)

	// SetTime records the elapsed time.
	//
	// Parameters:
	//   - seconds: seconds since the engine started
	SetTime(seconds float32)

	// Data returns a copy of the current CPU-side values.
	//
	// Returns:
	//   - GPUSystemUniform: the current values
	Data() GPUSystemUniform

	// Dirty reports whether values changed since the last Flush.
	Dirty() bool

	// Flush uploads the values if they changed since the last Flush.
	Flush()

	// Provider returns the bind group provider holding the uniform buffer and its bind group.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider
	Provider() bind_group_provider.BindGroupProvider

	// Release releases the uniform buffer and bind group.
	Release()
}

var _ SystemUniform = &systemUniform{}

// New creates the globals uniform and its GPU bind group.
//
// Parameters:
//   - device: the renderer used to create the buffer and upload values
//   - options: functional options applied before the bind group is created
//
// Returns:
//   - SystemUniform: the uniform, dirty so the first Flush uploads it
//   - error: an error if the bind group cannot be created
func New(device Device, options ...SystemUniformBuilderOption) (SystemUniform, error) {
	u := &systemUniform{
		label:      "System Uniform",
		visibility: wgpu.ShaderStageFragment,
		device:     device,
		dirty:      true,
	}
	for _, option := range options {
		option(u)
	}

	u.provider = bind_group_provider.NewBindGroupProvider(u.label)
	if err := device.InitBindGroup(u.provider, LayoutDescriptor(u.visibility), nil, nil); err != nil {
		return nil, fmt.Errorf("failed to create %s bind group: %w", u.label, err)
	}
	return u, nil
}

func (u *systemUniform) SetScreen(width, height int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	screen := [2]float32{float32(width), float32(height)}
	if u.data.Screen != screen {
		u.data.Screen = screen
		u.dirty = true
	}
}

func (u *systemUniform) SetMouse(x, y float32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	mouse := [2]float32{x, y}
	if u.data.Mouse != mouse {
		u.data.Mouse = mouse
		u.dirty = true
	}
}

func (u *systemUniform) SetTime(seconds float32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.data.Time != seconds {
		u.data.Time = seconds
		u.dirty = true
	}
}

func (u *systemUniform) Data() GPUSystemUniform {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.data
}

func (u *systemUniform) Dirty() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dirty
}

func (u *systemUniform) Flush() {
	u.mu.Lock()
	if !u.dirty {
		u.mu.Unlock()
		return
	}
	data := u.data.Marshal()
	u.dirty = false
	u.mu.Unlock()

	u.device.WriteBuffers([]bind_group_provider.BufferWrite{
		bind_group_provider.WholeBuffer(u.provider, 0, data),
	})
}

func (u *systemUniform) Provider() bind_group_provider.BindGroupProvider {
	return u.provider
}

func (u *systemUniform) Release() {
	u.provider.Release()
}
