// package config loads the HCL configuration file of the render graph demo and resolves defaults.
package config

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/logger"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

var (
	ErrInvalidWindowSize   = errors.New("window size must be positive")
	ErrInvalidBinding      = errors.New("invalid key binding")
	ErrInvalidEncoding     = errors.New("log encoding must be console or json")
	ErrInvalidSurfaceLimit = errors.New("max_surface_failures must be at least 1")
	ErrInvalidInterval     = errors.New("profiler interval must be positive")
)

// Config is the resolved configuration. Every field holds a usable value after Load or Default.
type Config struct {
	Window   Window
	Renderer Renderer
	Graph    Graph
	Logging  Logging
	Metrics  Metrics
	Profiler Profiler
}

// Window configures the GLFW window.
type Window struct {
	Title  string
	Width  int
	Height int
}

// Renderer configures the surface and the frame loop.
type Renderer struct {
	// VSync selects the Fifo present mode, otherwise Immediate.
	VSync         bool
	ForceSoftware bool
	// ShaderDir overrides the embedded pass shaders when set.
	ShaderDir string
	// MaxSurfaceFailures is the number of consecutive presentation failures after which the engine quits.
	MaxSurfaceFailures int
	// FrameCap limits the frame rate, 0 is uncapped.
	FrameCap int
}

// Graph configures the render graph and the keys that append passes.
type Graph struct {
	StrictBinding bool
	// MaxNodes caps the node count, 0 is unlimited.
	MaxNodes int
	// Passes are the kinds appended after the base node at startup, in order.
	Passes []string
	// Bindings maps a key name to the pass kind appended when the key is released.
	Bindings map[string]string
}

type Logging struct {
	Level       string
	Encoding    string
	Environment string
}

type Metrics struct {
	Enabled bool
	Addr    string
}

type Profiler struct {
	Enabled  bool
	Interval time.Duration
}

// file mirrors the HCL layout. Absent blocks decode to nil and absent attributes to their zero value.
type file struct {
	Window   *fileWindow   `hcl:"window,block"`
	Renderer *fileRenderer `hcl:"renderer,block"`
	Graph    *fileGraph    `hcl:"graph,block"`
	Logging  *fileLogging  `hcl:"logging,block"`
	Metrics  *fileMetrics  `hcl:"metrics,block"`
	Profiler *fileProfiler `hcl:"profiler,block"`
}

type fileWindow struct {
	Title  string `hcl:"title,optional"`
	Width  int    `hcl:"width,optional"`
	Height int    `hcl:"height,optional"`
}

type fileRenderer struct {
	VSync              *bool  `hcl:"vsync,optional"`
	ForceSoftware      *bool  `hcl:"force_software,optional"`
	ShaderDir          string `hcl:"shader_dir,optional"`
	MaxSurfaceFailures int    `hcl:"max_surface_failures,optional"`
	FrameCap           int    `hcl:"frame_cap,optional"`
}

type fileGraph struct {
	StrictBinding *bool          `hcl:"strict_binding,optional"`
	MaxNodes      int            `hcl:"max_nodes,optional"`
	Passes        []string       `hcl:"passes,optional"`
	Bindings      []*fileBinding `hcl:"binding,block"`
}

type fileBinding struct {
	Key  string `hcl:"key,label"`
	Pass string `hcl:"pass"`
}

type fileLogging struct {
	Level       string `hcl:"level,optional"`
	Encoding    string `hcl:"encoding,optional"`
	Environment string `hcl:"environment,optional"`
}

type fileMetrics struct {
	Enabled *bool  `hcl:"enabled,optional"`
	Addr    string `hcl:"addr,optional"`
}

type fileProfiler struct {
	Enabled  *bool  `hcl:"enabled,optional"`
	Interval string `hcl:"interval,optional"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - *Config: an 800x600 vsync window, Space bound to fract, console info logging, metrics and profiler off
func Default() *Config {
	return &Config{
		Window: Window{
			Title:  "oxy render graph",
			Width:  800,
			Height: 600,
		},
		Renderer: Renderer{
			VSync:              true,
			MaxSurfaceFailures: 5,
		},
		Graph: Graph{
			Bindings: map[string]string{"space": "fract"},
		},
		Logging: Logging{
			Level:       "info",
			Encoding:    "console",
			Environment: "development",
		},
		Metrics: Metrics{
			Addr: ":9090",
		},
		Profiler: Profiler{
			Interval: 5 * time.Second,
		},
	}
}

// Load reads and resolves the HCL configuration file at path.
//
// Parameters:
//   - path: the path of the .hcl file
//
// Returns:
//   - *Config: the defaults overlaid with the file's values
//   - error: a parse, decode or validation error
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	return decode(f, path)
}

// LoadBytes resolves an HCL configuration held in memory.
//
// Parameters:
//   - src: the HCL source
//   - filename: the name used in diagnostics
//
// Returns:
//   - *Config: the defaults overlaid with the source's values
//   - error: a parse, decode or validation error
func LoadBytes(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}
	return decode(f, filename)
}

func decode(f *hcl.File, filename string) (*Config, error) {
	var parsed file
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}

	cfg := Default()
	if err := cfg.apply(&parsed); err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", filename, err)
	}
	return cfg, nil
}

func (c *Config) apply(f *file) error {
	if w := f.Window; w != nil {
		c.Window.Title = common.Coalesce(w.Title, c.Window.Title)
		c.Window.Width = common.Coalesce(w.Width, c.Window.Width)
		c.Window.Height = common.Coalesce(w.Height, c.Window.Height)
	}

	if r := f.Renderer; r != nil {
		c.Renderer.VSync = boolOr(r.VSync, c.Renderer.VSync)
		c.Renderer.ForceSoftware = boolOr(r.ForceSoftware, c.Renderer.ForceSoftware)
		c.Renderer.ShaderDir = common.Coalesce(r.ShaderDir, c.Renderer.ShaderDir)
		c.Renderer.MaxSurfaceFailures = common.Coalesce(r.MaxSurfaceFailures, c.Renderer.MaxSurfaceFailures)
		c.Renderer.FrameCap = common.Coalesce(r.FrameCap, c.Renderer.FrameCap)
	}

	if g := f.Graph; g != nil {
		c.Graph.StrictBinding = boolOr(g.StrictBinding, c.Graph.StrictBinding)
		c.Graph.MaxNodes = common.Coalesce(g.MaxNodes, c.Graph.MaxNodes)
		if g.Passes != nil {
			c.Graph.Passes = g.Passes
		}
		seen := make(map[string]bool, len(g.Bindings))
		for _, b := range g.Bindings {
			key := strings.ToLower(strings.TrimSpace(b.Key))
			if seen[key] {
				return fmt.Errorf("%w: key %q bound twice", ErrInvalidBinding, b.Key)
			}
			seen[key] = true
			c.Graph.Bindings[key] = b.Pass
		}
	}

	if l := f.Logging; l != nil {
		c.Logging.Level = common.Coalesce(l.Level, c.Logging.Level)
		c.Logging.Encoding = common.Coalesce(l.Encoding, c.Logging.Encoding)
		c.Logging.Environment = common.Coalesce(l.Environment, c.Logging.Environment)
	}

	if m := f.Metrics; m != nil {
		c.Metrics.Enabled = boolOr(m.Enabled, true)
		c.Metrics.Addr = common.Coalesce(m.Addr, c.Metrics.Addr)
	}

	if p := f.Profiler; p != nil {
		c.Profiler.Enabled = boolOr(p.Enabled, true)
		if p.Interval != "" {
			d, err := time.ParseDuration(p.Interval)
			if err != nil {
				return fmt.Errorf("profiler interval %q: %w", p.Interval, err)
			}
			c.Profiler.Interval = d
		}
	}
	return nil
}

// Validate checks the resolved values.
//
// Returns:
//   - error: the joined validation failures, nil if the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: %dx%d", ErrInvalidWindowSize, c.Window.Width, c.Window.Height))
	}
	if c.Renderer.MaxSurfaceFailures < 1 {
		errs = append(errs, ErrInvalidSurfaceLimit)
	}
	if c.Renderer.FrameCap < 0 {
		errs = append(errs, fmt.Errorf("frame_cap must not be negative, got %d", c.Renderer.FrameCap))
	}
	if c.Graph.MaxNodes < 0 {
		errs = append(errs, fmt.Errorf("max_nodes must not be negative, got %d", c.Graph.MaxNodes))
	}
	for _, key := range common.SortedKeys(c.Graph.Bindings) {
		code, ok := common.KeyCode(key)
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("%w: unknown key %q", ErrInvalidBinding, key))
		case code == common.KeyEsc:
			errs = append(errs, fmt.Errorf("%w: %q is reserved for exit", ErrInvalidBinding, key))
		case c.Graph.Bindings[key] == "":
			errs = append(errs, fmt.Errorf("%w: key %q has no pass", ErrInvalidBinding, key))
		}
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Encoding != "console" && c.Logging.Encoding != "json" {
		errs = append(errs, fmt.Errorf("%w, got %q", ErrInvalidEncoding, c.Logging.Encoding))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics addr must be set when metrics are enabled"))
	}
	if c.Profiler.Enabled && c.Profiler.Interval <= 0 {
		errs = append(errs, ErrInvalidInterval)
	}
	return errors.Join(errs...)
}

// KeyBindings resolves the configured key names to key codes. Unknown names are left out.
//
// Returns:
//   - map[int]string: key code to pass kind
func (c *Config) KeyBindings() map[int]string {
	out := make(map[int]string, len(c.Graph.Bindings))
	for name, kind := range c.Graph.Bindings {
		if code, ok := common.KeyCode(name); ok {
			out[code] = kind
		}
	}
	return out
}

// LoggerConfig returns the logger settings for logger.New.
func (c *Config) LoggerConfig(serviceName string) logger.Config {
	return logger.Config{
		Environment: c.Logging.Environment,
		Level:       c.Logging.Level,
		ServiceName: serviceName,
		Encoding:    c.Logging.Encoding,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Graph.Passes = append([]string(nil), c.Graph.Passes...)
	out.Graph.Bindings = maps.Clone(c.Graph.Bindings)
	return &out
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
