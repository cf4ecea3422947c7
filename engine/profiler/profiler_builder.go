package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"go.uber.org/zap"
)

// ProfilerBuilderOption is a functional option used to configure a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger reports are written to.
func WithLogger(logger *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets the time between reports. Non-positive values are ignored.
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithMetrics publishes the fps and heap gauges of each report to m.
func WithMetrics(m *metrics.Frame) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.metrics = m
	}
}
