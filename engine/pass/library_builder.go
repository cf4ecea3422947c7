package pass

import (
	"io/fs"
	"os"

	"github.com/Carmen-Shannon/oxy-graph/engine/system_uniform"
	"go.uber.org/zap"
)

// LibraryBuilderOption is a functional option used to configure a Library during construction.
type LibraryBuilderOption func(*library)

// WithLogger sets the logger for shader loading events.
func WithLogger(logger *zap.Logger) LibraryBuilderOption {
	return func(l *library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSystemUniform sets the globals uniform bound by kinds that read it.
//
// Parameters:
//   - su: the globals uniform shared by every node of the library
//
// Returns:
//   - LibraryBuilderOption: a function that applies the option to a library
func WithSystemUniform(su system_uniform.SystemUniform) LibraryBuilderOption {
	return func(l *library) {
		l.globals = su
	}
}

// WithShaderFS reads shaders from fsys before falling back to the embedded ones.
// Any "<kind>.wgsl" in the root of fsys other than the vertex shader adds a kind.
//
// Parameters:
//   - fsys: the file system holding override shaders
//
// Returns:
//   - LibraryBuilderOption: a function that applies the option to a library
func WithShaderFS(fsys fs.FS) LibraryBuilderOption {
	return func(l *library) {
		l.shaderFS = fsys
	}
}

// WithShaderDir is WithShaderFS for a directory on disk. An empty dir leaves the embedded shaders only.
func WithShaderDir(dir string) LibraryBuilderOption {
	return func(l *library) {
		if dir != "" {
			l.shaderFS = os.DirFS(dir)
		}
	}
}

// WithWorkers sets the maximum number of goroutines parsing shaders.
func WithWorkers(n int) LibraryBuilderOption {
	return func(l *library) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithBaseKind sets the kind NewBaseNode builds. It must not sample an input.
func WithBaseKind(kind Kind) LibraryBuilderOption {
	return func(l *library) {
		if kind != "" {
			l.baseKind = kind
		}
	}
}
