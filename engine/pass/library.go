package pass

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/render_graph"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-graph/engine/system_uniform"
	"go.uber.org/zap"
)

//go:embed assets/*.wgsl
var embeddedShaders embed.FS

const (
	vertexShaderFile = "fullscreen.wgsl"
	shaderExt        = ".wgsl"
)

// PipelineRegistrar creates GPU pipelines. The renderer satisfies it.
type PipelineRegistrar interface {
	RegisterPipelines(pipelines ...pipeline.Pipeline) error
}

// library is the implementation of the Library interface.
type library struct {
	mu sync.RWMutex

	logger    *zap.Logger
	globals   system_uniform.SystemUniform
	shaderFS  fs.FS
	workers   int
	baseKind  Kind
	pipelines map[Kind]pipeline.Pipeline
	layouts   map[Kind]layout
}

// Library loads every pass kind's shaders, registers one pipeline per kind and builds nodes of those kinds.
type Library interface {
	// Kinds returns the loaded kinds in ascending order.
	Kinds() []Kind

	// Has reports whether kind was loaded.
	Has(kind Kind) bool

	// Samples reports whether nodes of kind sample an input.
	//
	// Parameters:
	//   - kind: the pass kind
	//
	// Returns:
	//   - bool: true if the kind binds the previous output, false for unknown kinds
	Samples(kind Kind) bool

	// NewBaseNode builds the node the render graph starts with.
	//
	// Returns:
	//   - render_graph.RenderNode: a node of the base kind
	//   - error: an error if the base kind samples an input
	NewBaseNode() (render_graph.RenderNode, error)

	// NewNode builds a node of the given kind. Kinds that sample an input return an unbound node
	// implementing render_graph.InputBinder.
	//
	// Parameters:
	//   - kind: the pass kind
	//
	// Returns:
	//   - render_graph.RenderNode: the node
	//   - error: ErrUnknownKind for a kind that was not loaded
	NewNode(kind Kind) (render_graph.RenderNode, error)

	// Pipeline returns the pipeline registered for kind, nil for unknown kinds.
	Pipeline(kind Kind) pipeline.Pipeline
}

var _ Library = &library{}

type loadedKind struct {
	kind     Kind
	fragment shader.Shader
	layout   layout
}

// NewLibrary parses the fullscreen vertex shader and each kind's fragment shader in parallel,
// then registers one pipeline per kind with reg. The pipeline key of a kind is the kind itself.
//
// Parameters:
//   - reg: the pipeline registrar, usually the renderer
//   - options: functional options applied before loading
//
// Returns:
//   - Library: the loaded library
//   - error: the joined load errors, or the registration error
func NewLibrary(reg PipelineRegistrar, options ...LibraryBuilderOption) (Library, error) {
	l := &library{
		logger:    zap.NewNop(),
		workers:   4,
		baseKind:  KindBase,
		pipelines: make(map[Kind]pipeline.Pipeline),
		layouts:   make(map[Kind]layout),
	}
	for _, opt := range options {
		opt(l)
	}

	vertex, err := l.loadShader(vertexShaderFile, shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}

	kinds, err := l.discoverKinds()
	if err != nil {
		return nil, err
	}

	loaded, err := l.loadKinds(kinds)
	if err != nil {
		return nil, err
	}

	created := make([]pipeline.Pipeline, 0, len(loaded))
	for _, lk := range loaded {
		if lk.layout.globalsGroup >= 0 && l.globals == nil {
			return nil, fmt.Errorf("pass kind %q: %w", lk.kind, ErrNoSystemUniform)
		}
		p := pipeline.NewPipeline(string(lk.kind),
			pipeline.WithVertexShader(vertex),
			pipeline.WithFragmentShader(lk.fragment),
		)
		created = append(created, p)
		l.pipelines[lk.kind] = p
		l.layouts[lk.kind] = lk.layout
	}

	if err := reg.RegisterPipelines(created...); err != nil {
		return nil, err
	}

	l.logger.Info("pass library loaded", zap.Strings("kinds", kindStrings(l.Kinds())))
	return l, nil
}

func (l *library) Kinds() []Kind {
	l.mu.RLock()
	defer l.mu.RUnlock()
	kinds := make([]Kind, 0, len(l.pipelines))
	for k := range l.pipelines {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

func (l *library) Has(kind Kind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.pipelines[kind]
	return ok
}

func (l *library) Samples(kind Kind) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lay, ok := l.layouts[kind]
	return ok && lay.inputGroup >= 0
}

func (l *library) Pipeline(kind Kind) pipeline.Pipeline {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pipelines[kind]
}

func (l *library) NewBaseNode() (render_graph.RenderNode, error) {
	if l.Samples(l.baseKind) {
		return nil, fmt.Errorf("%w: %q", ErrNoBaseKind, l.baseKind)
	}
	return l.NewNode(l.baseKind)
}

func (l *library) NewNode(kind Kind) (render_graph.RenderNode, error) {
	l.mu.RLock()
	lay, ok := l.layouts[kind]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	base := passNode{
		kind:    kind,
		label:   kind.Label(),
		layout:  lay,
		globals: l.globals,
	}
	if lay.inputGroup < 0 {
		return &baseNode{passNode: base}, nil
	}
	return newSamplingNode(base), nil
}

// discoverKinds returns the builtin kinds plus every other "<kind>.wgsl" in the shader directory.
func (l *library) discoverKinds() ([]Kind, error) {
	kinds := slices.Clone(BuiltinKinds)
	if l.shaderFS == nil {
		return kinds, nil
	}

	entries, err := fs.ReadDir(l.shaderFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read shader directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != shaderExt || name == vertexShaderFile {
			continue
		}
		kind := Kind(strings.TrimSuffix(name, shaderExt))
		if !slices.Contains(kinds, kind) {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

// loadKinds parses the fragment shader of each kind on a worker pool.
func (l *library) loadKinds(kinds []Kind) ([]loadedKind, error) {
	pool := worker.NewDynamicWorkerPool(l.workers, len(kinds), 1*time.Second)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		loaded = make([]loadedKind, 0, len(kinds))
		errs   []error
	)
	for i, kind := range kinds {
		wg.Add(1)
		k := kind
		pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()

				lk, err := l.loadKind(k)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return nil, err
				}
				loaded = append(loaded, lk)
				return nil, nil
			},
		})
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.SortFunc(loaded, func(a, b loadedKind) int {
		return strings.Compare(string(a.kind), string(b.kind))
	})
	return loaded, nil
}

func (l *library) loadKind(kind Kind) (loadedKind, error) {
	fragment, err := l.loadShader(string(kind)+shaderExt, shader.ShaderTypeFragment)
	if err != nil {
		return loadedKind{}, err
	}
	lay, err := layoutOf(fragment)
	if err != nil {
		return loadedKind{}, fmt.Errorf("pass kind %q: %w", kind, err)
	}
	l.logger.Debug("pass shader parsed",
		zap.String("kind", string(kind)),
		zap.Int("globals_group", lay.globalsGroup),
		zap.Int("input_group", lay.inputGroup),
	)
	return loadedKind{kind: kind, fragment: fragment, layout: lay}, nil
}

// loadShader reads name from the override directory if present there, else from the embedded assets.
func (l *library) loadShader(name string, shaderType shader.ShaderType) (shader.Shader, error) {
	var (
		data []byte
		err  error
	)
	if l.shaderFS != nil {
		data, err = fs.ReadFile(l.shaderFS, name)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read shader %q: %w", name, err)
		}
	}
	if data == nil {
		data, err = embeddedShaders.ReadFile(path.Join("assets", name))
		if err != nil {
			return nil, fmt.Errorf("%w: no shader %q", ErrUnknownKind, name)
		}
	}
	return shader.NewShader(strings.TrimSuffix(name, shaderExt), shaderType, string(data))
}

// layoutOf finds the globals and input groups from a fragment shader's declarations.
func layoutOf(s shader.Shader) (layout, error) {
	lay := layout{globalsGroup: -1, inputGroup: -1, inputTexture: -1, inputSampler: -1}

	for _, decl := range s.Declarations() {
		if decl.Group == nil || decl.Binding == nil {
			continue
		}
		switch decl.Type {
		case shader.AnnotationTypeBindingGroup:
			if decl.Args[2] == shader.AnnotationArgSystemUniform {
				lay.globalsGroup = *decl.Group
			}
		case shader.AnnotationTypeProvider:
			switch decl.Args[0] {
			case shader.AnnotationArgSystem:
				lay.globalsGroup = *decl.Group
			case shader.AnnotationArgInput:
				if lay.inputGroup >= 0 && lay.inputGroup != *decl.Group {
					return layout{}, fmt.Errorf("input bindings span groups %d and %d", lay.inputGroup, *decl.Group)
				}
				lay.inputGroup = *decl.Group
				if len(decl.Args) < 2 {
					continue
				}
				switch decl.Args[1] {
				case shader.AnnotationArgInputTexture:
					lay.inputTexture = *decl.Binding
				case shader.AnnotationArgInputSampler:
					lay.inputSampler = *decl.Binding
				}
			}
		}
	}

	if lay.inputGroup >= 0 {
		if lay.inputTexture < 0 || lay.inputSampler < 0 {
			return layout{}, fmt.Errorf("input group %d needs both an input_texture and an input_sampler binding", lay.inputGroup)
		}
		if lay.inputGroup == lay.globalsGroup {
			return layout{}, fmt.Errorf("input and globals share group %d", lay.inputGroup)
		}
		lay.inputDescriptor = s.BindGroupLayoutDescriptor(lay.inputGroup)
		if len(lay.inputDescriptor.Entries) == 0 {
			return layout{}, fmt.Errorf("input group %d has no bindings", lay.inputGroup)
		}
	}
	return lay, nil
}

func kindStrings(kinds []Kind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
