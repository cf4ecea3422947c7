package system_uniform

import "github.com/cogentcore/webgpu/wgpu"

// SystemUniformBuilderOption is a functional option applied to the uniform during construction via New.
type SystemUniformBuilderOption func(*systemUniform)

// WithLabel sets the debug label of the uniform's bind group provider.
func WithLabel(label string) SystemUniformBuilderOption {
	return func(u *systemUniform) {
		if label != "" {
			u.label = label
		}
	}
}

// WithVisibility sets the shader stages the uniform is visible to. Defaults to the fragment stage.
func WithVisibility(visibility wgpu.ShaderStage) SystemUniformBuilderOption {
	return func(u *systemUniform) {
		u.visibility = visibility
	}
}

// WithScreen sets the initial surface size.
func WithScreen(width, height int) SystemUniformBuilderOption {
	return func(u *systemUniform) {
		u.data.Screen = [2]float32{float32(width), float32(height)}
	}
}
