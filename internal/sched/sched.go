// Package sched implements the data-parallel and work-stealing primitives
// that every other component is built on top of: a fork-join for-each over
// the file list or the output-section list, and a work-stealing traversal
// primitive for the two graph walks (archive liveness, GC mark). Every
// call is a total barrier: it returns only once all spawned work has
// completed, matching the "each stage is a barrier" rule.
package sched

import (
	"runtime"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
)

// Parallelism returns the worker count used by ForEach and the work-stealing
// pool. It is a var, not a const, so tests can pin it to 1 for determinism.
var Parallelism = runtime.GOMAXPROCS(0)

// ForEach runs fn(items[i]) for every i, fanned out across Parallelism
// workers, and returns once every call has completed. There are no
// inter-item ordering guarantees within the call, matching §5's
// "Ordering guarantees" rule.
func ForEach[T any](items []T, fn func(T)) {
	ForEachIndexed(items, func(_ int, v T) { fn(v) })
}

// ForEachIndexed is ForEach with the item's index also supplied, used by
// passes that need to write into a pre-sized parallel array (e.g. the
// per-file slots of layout.Bin's binning scan).
func ForEachIndexed[T any](items []T, fn func(i int, v T)) {
	n := len(items)
	if n == 0 {
		return
	}
	workers := Parallelism
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i, v := range items {
			fn(i, v)
		}
		return
	}

	var wg sync.WaitGroup
	var next int64Counter
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := next.take()
				if i >= n {
					return
				}
				fn(i, items[i])
			}
		}()
	}
	wg.Wait()
}

// Span starts an opentracing span named for a pipeline stage and returns a
// function that finishes it. Every pass barrier calls this so a tracer,
// when one is installed, sees the full stage timeline; with the default
// global noop tracer this costs a few pointer-sized allocations.
func Span(stage string) func() {
	span := opentracing.StartSpan(stage)
	return span.Finish
}
