package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame records frame loop activity.
type Frame struct {
	frames          prometheus.Counter
	duration        prometheus.Histogram
	surfaceErrors   prometheus.Counter
	droppedCommands prometheus.Counter
	fps             prometheus.Gauge
	heapBytes       prometheus.Gauge
}

// NewFrame creates the frame loop collectors and registers them with reg.
//
// Parameters:
//   - reg: the registerer the collectors are added to, prometheus.DefaultRegisterer when nil
//
// Returns:
//   - *Frame: the frame recorder
func NewFrame(reg prometheus.Registerer) *Frame {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Frame{
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "presented_total",
			Help:      "Total number of presented frames",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "duration_seconds",
			Help:      "Wall time of one frame from command drain to present",
			Buckets:   []float64{.001, .004, .008, .0167, .033, .05, .1, .25},
		}),
		surfaceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "surface_errors_total",
			Help:      "Total number of failed presentation target acquisitions",
		}),
		droppedCommands: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "dropped_commands_total",
			Help:      "Total number of graph commands dropped because the command queue was full",
		}),
		fps: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "frame",
			Name:      "fps",
			Help:      "Frames per second over the last profiler interval",
		}),
		heapBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "heap_alloc_bytes",
			Help:      "Bytes of allocated heap objects at the last profiler report",
		}),
	}
}

func (f *Frame) ObserveFrame(d time.Duration) {
	if f == nil {
		return
	}
	f.frames.Inc()
	f.duration.Observe(d.Seconds())
}

func (f *Frame) ObserveSurfaceError() {
	if f == nil {
		return
	}
	f.surfaceErrors.Inc()
}

func (f *Frame) ObserveDroppedCommand() {
	if f == nil {
		return
	}
	f.droppedCommands.Inc()
}

func (f *Frame) SetFPS(fps float64) {
	if f == nil {
		return
	}
	f.fps.Set(fps)
}

func (f *Frame) SetHeapBytes(n uint64) {
	if f == nil {
		return
	}
	f.heapBytes.Set(float64(n))
}
