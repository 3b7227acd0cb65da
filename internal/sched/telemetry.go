package sched

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aclements/go-moremath/stats"
)

// Telemetry records wall-clock time per pipeline stage, mirroring
// cmd/link/internal/benchmark's per-pass GC and CPU accounting but
// generalized to per-file timings within a stage so a caller can see which
// files dominate parsing or resolution.
type Telemetry struct {
	mu     sync.Mutex
	stages []stageTiming
}

type stageTiming struct {
	name     string
	duration time.Duration
	samples  []float64 // per-file durations in the stage, seconds
}

// NewTelemetry constructs an empty recorder.
func NewTelemetry() *Telemetry {
	return &Telemetry{}
}

// Record wraps fn, timing its execution under the given stage name.
func (t *Telemetry) Record(stage string, fn func()) {
	done := Span(stage)
	start := time.Now()
	fn()
	elapsed := time.Since(start)
	done()

	t.mu.Lock()
	t.stages = append(t.stages, stageTiming{name: stage, duration: elapsed})
	t.mu.Unlock()
}

// RecordSamples attaches per-item timing samples (seconds) to the most
// recently recorded stage of the given name, used by ForEach-driven passes
// that want a distribution, not just a total.
func (t *Telemetry) RecordSamples(stage string, samples []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.stages) - 1; i >= 0; i-- {
		if t.stages[i].name == stage {
			t.stages[i].samples = samples
			return
		}
	}
}

// Report writes a human-readable summary to w: total time per stage, and
// for stages with per-item samples, the mean/stddev/p90 via go-moremath.
func (t *Telemetry) Report(w io.Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.stages {
		fmt.Fprintf(w, "%-24s %v\n", s.name, s.duration)
		if len(s.samples) == 0 {
			continue
		}
		sample := stats.Sample{Xs: s.samples}
		fmt.Fprintf(w, "  n=%d mean=%.6fs stddev=%.6fs p90=%.6fs\n",
			len(s.samples), sample.Mean(), sample.StdDev(), sample.Quantile(0.90))
	}
}
