package profiler

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-graph/engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProfiler(t *testing.T, options ...ProfilerBuilderOption) (*Profiler, *fakeClock, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	clock := &fakeClock{t: time.Unix(1000, 0)}

	p := NewProfiler(append([]ProfilerBuilderOption{WithLogger(zap.New(core))}, options...)...)
	p.now = clock.now
	p.lastTime = clock.now()
	p.readMemStats = func(m *runtime.MemStats) {
		m.Alloc = 4 * 1024 * 1024
		m.Sys = 16 * 1024 * 1024
		m.TotalAlloc += 2 * 1024 * 1024
		m.NumGC = 3
		m.PauseNs[0] = 1000
		m.PauseNs[1] = 5000
		m.PauseNs[2] = 2000
	}
	return p, clock, logs
}

func TestProfiler_ReportsAfterInterval(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, clock, logs := newTestProfiler(t, WithInterval(2*time.Second), WithMetrics(metrics.NewFrame(reg)))

	for range 119 {
		clock.advance(16 * time.Millisecond)
		require.False(t, p.Tick())
	}
	clock.advance(2*time.Second - 119*16*time.Millisecond)
	require.True(t, p.Tick())

	s := p.Last()
	assert.InDelta(t, 60.0, s.FPS, 0.001)
	assert.InDelta(t, 4.0, s.HeapMB, 0.001)
	assert.InDelta(t, 16.0, s.SysMB, 0.001)
	assert.InDelta(t, 1.0, s.AllocRateMB, 0.001)
	assert.Equal(t, uint32(3), s.GCCount)
	assert.Equal(t, uint64(2), s.LastPauseUs)
	assert.Equal(t, uint64(5), s.MaxPauseUs)

	entries := logs.FilterMessage("profiler").All()
	require.Len(t, entries, 1)
	assert.InDelta(t, 60.0, entries[0].ContextMap()["fps"], 0.001)

	expected := `
# HELP oxy_frame_fps Frames per second over the last profiler interval
# TYPE oxy_frame_fps gauge
oxy_frame_fps 60
# HELP oxy_runtime_heap_alloc_bytes Bytes of allocated heap objects at the last profiler report
# TYPE oxy_runtime_heap_alloc_bytes gauge
oxy_runtime_heap_alloc_bytes 4.194304e+06
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "oxy_frame_fps", "oxy_runtime_heap_alloc_bytes"))
}

func TestProfiler_ResetsBetweenReports(t *testing.T) {
	p, clock, logs := newTestProfiler(t)

	clock.advance(time.Second)
	require.True(t, p.Tick())

	clock.advance(500 * time.Millisecond)
	assert.False(t, p.Tick())
	clock.advance(500 * time.Millisecond)
	require.True(t, p.Tick())

	assert.InDelta(t, 2.0, p.Last().FPS, 0.001)
	assert.Equal(t, uint64(0), p.Last().MaxPauseUs, "no new collections since the last report")
	assert.Equal(t, 2, logs.Len())
}

func TestProfiler_Defaults(t *testing.T) {
	p := NewProfiler(WithInterval(0), WithLogger(nil))
	assert.Equal(t, time.Second, p.updateInterval)
	assert.NotNil(t, p.logger)
	assert.False(t, p.Tick())
}
