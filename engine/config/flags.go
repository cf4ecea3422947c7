package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/logger"
)

// ExitError is returned by ParseArgs when the process should exit with Code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ParseArgs parses command-line arguments, loads the configuration file named by -config and applies
// the remaining flags on top of it. Flags that are not given leave the file's values alone.
//
// Parameters:
//   - args: the arguments without the program name
//   - output: where usage and flag errors are written
//
// Returns:
//   - *Config: the resolved configuration
//   - bool: true if the program should exit cleanly (-h)
//   - error: an *ExitError for bad flags or an unusable configuration
func ParseArgs(args []string, output io.Writer) (*Config, bool, error) {
	flagSet := flag.NewFlagSet("oxy-graph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
oxy-graph - a ping/pong render graph demo.

Usage:
  oxy-graph [options]

Keys:
  Space    append a fract pass (see graph.binding in the config file)
  Esc      quit

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL configuration file. Defaults are used when empty.")
	logLevelFlag := flagSet.String("log-level", "", "Override the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	metricsAddrFlag := flagSet.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. ':9090'.")
	vsyncFlag := flagSet.Bool("vsync", true, "Present with vsync (Fifo). -vsync=false presents immediately.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", flagSet.Arg(0))}
	}

	cfg := Default()
	if *configFlag != "" {
		loaded, err := Load(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 1, Message: err.Error()}
		}
		cfg = loaded
	}

	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["log-level"] {
		level := strings.ToLower(*logLevelFlag)
		if _, err := logger.ParseLevel(level); err != nil {
			return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
		}
		cfg.Logging.Level = level
	}
	if set["metrics-addr"] {
		cfg.Metrics.Enabled = *metricsAddrFlag != ""
		cfg.Metrics.Addr = *metricsAddrFlag
	}
	if set["vsync"] {
		cfg.Renderer.VSync = *vsyncFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return cfg, false, nil
}
