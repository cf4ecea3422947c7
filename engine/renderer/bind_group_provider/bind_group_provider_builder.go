package bind_group_provider

import "github.com/cogentcore/webgpu/wgpu"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBindGroupLayout sets a pre-built bind group layout, skipping layout creation in Renderer.InitBindGroup.
// The provider takes ownership of the layout.
//
// Parameters:
//   - bgl: the bind group layout to use for this provider
//
// Returns:
//   - BindGroupProviderOption: a function that sets the bind group layout for this provider
func WithBindGroupLayout(bgl *wgpu.BindGroupLayout) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.bindGroupLayout = bgl
	}
}

// WithBorrowedTextureView binds a texture view owned elsewhere at construction time.
//
// Parameters:
//   - binding: the binding index for this view
//   - tv: the texture view to bind
//
// Returns:
//   - BindGroupProviderOption: a function that binds the texture view for this provider
func WithBorrowedTextureView(binding int, tv *wgpu.TextureView) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.BorrowTextureView(binding, tv)
	}
}

// WithBorrowedSampler binds a sampler owned elsewhere at construction time.
//
// Parameters:
//   - binding: the binding index for this sampler
//   - s: the sampler to bind
//
// Returns:
//   - BindGroupProviderOption: a function that binds the sampler for this provider
func WithBorrowedSampler(binding int, s *wgpu.Sampler) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.BorrowSampler(binding, s)
	}
}
