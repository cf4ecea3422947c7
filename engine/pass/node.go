package pass

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/system_uniform"
	"github.com/cogentcore/webgpu/wgpu"
)

// layout describes where a kind's fragment shader expects its bind groups.
type layout struct {
	// globalsGroup is the group index of the globals uniform, -1 if the shader does not read it.
	globalsGroup int
	// inputGroup is the group index of the sampled input, -1 if the shader has no input.
	inputGroup int
	// inputTexture and inputSampler are the bindings within inputGroup.
	inputTexture, inputSampler int
	// inputDescriptor is the layout of inputGroup as parsed from the shader.
	inputDescriptor wgpu.BindGroupLayoutDescriptor
}

func (l layout) groupCount() int {
	return max(l.globalsGroup, l.inputGroup) + 1
}

// passNode is the shared part of every pass: one fullscreen draw with a fixed pipeline.
type passNode struct {
	kind    Kind
	label   string
	layout  layout
	globals system_uniform.SystemUniform
}

func (n *passNode) Label() string {
	return n.label
}

// Kind returns the pass variant of the node.
func (n *passNode) Kind() Kind {
	return n.kind
}

func (n *passNode) encode(dev render_graph.Device, out render_graph.FrameTarget, q render_graph.Queue, input bind_group_provider.BindGroupProvider) error {
	d, ok := dev.(Device)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedDevice, dev)
	}

	groups := make([]bind_group_provider.BindGroupProvider, n.layout.groupCount())
	if n.layout.globalsGroup >= 0 {
		groups[n.layout.globalsGroup] = n.globals.Provider()
	}
	if n.layout.inputGroup >= 0 {
		groups[n.layout.inputGroup] = input
	}

	cb, err := d.EncodeFullscreenPass(renderer.FullscreenPass{
		Label:       n.kind.Label(),
		PipelineKey: string(n.kind),
		Target:      out,
		BindGroups:  groups,
		VertexCount: 3,
	})
	if err != nil {
		return err
	}
	q.Submit(cb)
	return nil
}

// baseNode draws without input. It is always ready.
type baseNode struct {
	passNode
}

var _ render_graph.RenderNode = &baseNode{}

func (n *baseNode) Execute(dev render_graph.Device, out render_graph.FrameTarget, q render_graph.Queue) error {
	return n.encode(dev, out, q, nil)
}

// samplingNode reads the output of the pass before it through one texture and sampler binding.
// It is not ready, and draws nothing, until its input is bound.
type samplingNode struct {
	passNode

	mu       sync.Mutex
	provider bind_group_provider.BindGroupProvider
	bound    bool
	input    string
}

var (
	_ render_graph.RenderNode    = &samplingNode{}
	_ render_graph.InputBinder   = &samplingNode{}
	_ render_graph.ReadyChecker  = &samplingNode{}
	_ render_graph.InputReleaser = &samplingNode{}
)

func newSamplingNode(base passNode) *samplingNode {
	return &samplingNode{
		passNode: base,
		provider: bind_group_provider.NewBindGroupProvider(base.label + " Input"),
	}
}

func (n *samplingNode) BindInput(dev render_graph.Device, in render_graph.FrameTarget) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bound {
		return render_graph.ErrInputAlreadyBound
	}
	d, ok := dev.(Device)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedDevice, dev)
	}
	st, ok := in.(renderer.SampledTarget)
	if !ok || st.View() == nil || st.Sampler() == nil {
		return fmt.Errorf("%w: %q", ErrTargetNotSampleable, in.Label())
	}

	n.provider.BorrowTextureView(n.layout.inputTexture, st.View())
	n.provider.BorrowSampler(n.layout.inputSampler, st.Sampler())
	if err := d.InitBindGroup(n.provider, n.layout.inputDescriptor, nil, nil); err != nil {
		n.provider.ReleaseBindGroup()
		return err
	}
	n.bound = true
	n.input = in.Label()
	return nil
}

func (n *samplingNode) Ready() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bound
}

// Input returns the label of the target the node samples, empty while unbound.
func (n *samplingNode) Input() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.input
}

func (n *samplingNode) Execute(dev render_graph.Device, out render_graph.FrameTarget, q render_graph.Queue) error {
	n.mu.Lock()
	bound := n.bound
	n.mu.Unlock()
	if !bound {
		return nil
	}
	return n.encode(dev, out, q, n.provider)
}

func (n *samplingNode) ReleaseInput() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.provider.ReleaseBindGroup()
	n.bound = false
	n.input = ""
}

func (n *samplingNode) Release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.provider.Release()
	n.bound = false
	n.input = ""
}
