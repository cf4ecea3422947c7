package system_uniform

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

// GPUSystemUniformSource is the canonical WGSL definition of the SystemUniform struct.
// Matches GPUSystemUniform layout exactly (32 bytes).
//
//go:embed assets/system_uniform.wgsl
var GPUSystemUniformSource string

// GPUSystemUniform is the GPU-aligned representation of the per-frame globals uniform buffer.
// Matches the WGSL SystemUniform struct layout exactly (see GPUSystemUniformSource).
// Size: 32 bytes.
type GPUSystemUniform struct {
	Screen [2]float32 // offset  0: surface size in pixels (vec2<f32>)
	Mouse  [2]float32 // offset  8: cursor position in pixels (vec2<f32>)
	Time   float32    // offset 16: seconds since start (f32)
	_pad   [3]float32 // offset 20: padding to 32 bytes
}

// Size returns the size of the GPUSystemUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUSystemUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUSystemUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUSystemUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	for i := range 2 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.Screen[i]))
		binary.LittleEndian.PutUint32(buf[8+i*4:], math.Float32bits(g.Mouse[i]))
	}
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.Time))
	return buf
}

// LayoutDescriptor returns the bind group layout of the globals uniform: a single uniform buffer at binding 0.
//
// Parameters:
//   - visibility: the shader stages that read the uniform
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the layout descriptor
func LayoutDescriptor(visibility wgpu.ShaderStage) wgpu.BindGroupLayoutDescriptor {
	var g GPUSystemUniform
	return wgpu.BindGroupLayoutDescriptor{
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: visibility,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(g.Size()),
				},
			},
		},
	}
}
