// package pass provides the concrete render nodes of the render graph: fullscreen passes that draw one
// triangle with a per-kind fragment shader, optionally sampling the previous pass output and reading the
// per-frame globals uniform.
package pass

import (
	"errors"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// Kind names a pass variant. Each kind has a fragment shader named "<kind>.wgsl".
type Kind string

const (
	// KindBase draws a time and cursor driven gradient without any input.
	KindBase Kind = "base"
	// KindFract tiles the previous output 2x2.
	KindFract Kind = "fract"
	// KindInvert inverts the colors of the previous output.
	KindInvert Kind = "invert"
	// KindVignette darkens the previous output away from the cursor.
	KindVignette Kind = "vignette"
)

// BuiltinKinds lists the kinds whose shaders are embedded in the binary.
var BuiltinKinds = []Kind{KindBase, KindFract, KindInvert, KindVignette}

// Label returns the kind with its first letter upper-cased, used for node labels and encoder labels.
func (k Kind) Label() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

var (
	ErrUnsupportedDevice   = errors.New("device cannot encode fullscreen passes")
	ErrUnknownKind         = errors.New("unknown pass kind")
	ErrTargetNotSampleable = errors.New("frame target cannot be sampled")
	ErrNoSystemUniform     = errors.New("pass reads the globals uniform but none was provided")
	ErrNoBaseKind          = errors.New("pass kind samples an input and cannot be the base node")
)

// Device is the device capability pass nodes need from the render graph's device handle.
// The renderer satisfies it.
type Device interface {
	render_graph.Device

	// EncodeFullscreenPass records a single fullscreen draw into its own command buffer.
	//
	// Parameters:
	//   - pass: the pass description
	//
	// Returns:
	//   - render_graph.CommandBuffer: the finished commands
	//   - error: an error if encoding fails
	EncodeFullscreenPass(pass renderer.FullscreenPass) (render_graph.CommandBuffer, error)

	// InitBindGroup creates the bind group of provider from descriptor.
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor wgpu.BindGroupLayoutDescriptor, bufferUsageOverrides map[int]wgpu.BufferUsage, bufferSizeOverrides map[int]uint64) error
}
