// Package diag implements the two-tier error model described by the
// linker: format corruption is fatal per file, semantic errors (duplicate
// symbols, unresolved references) are recorded and surfaced at the next
// stage checkpoint.
package diag

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Fatalf prints a formatted message and terminates the process. It is used
// for format corruption and other conditions from which the current file
// cannot be parsed at all.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "rld: fatal: %s\n", fmt.Sprintf(format, args...))
	if os.Getenv("RLD_DEBUG_STACK") != "" {
		debug.PrintStack()
	}
	os.Exit(1)
}

// MustNo terminates the process if err is non-nil. Mirrors the teacher's
// utils.MustNo.
func MustNo(err error) {
	if err != nil {
		Fatalf("%v", err)
	}
}

// Assert terminates the process if cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		Fatalf(format, args...)
	}
}

// Errors accumulates semantic errors and warnings shared across the whole
// link. It is passed through the pipeline in place of a package-global
// mutable static (spec's design note on lifting globals into a Context).
type Errors struct {
	mu       sync.Mutex
	messages []string
	warnings []string
	fatal    atomic.Bool
	failWarn bool
}

// NewErrors constructs an error sink. failOnWarnings mirrors the
// fatal_warnings configuration knob.
func NewErrors(failOnWarnings bool) *Errors {
	return &Errors{failWarn: failOnWarnings}
}

// Error records a semantic error (duplicate strong definition, unresolved
// reference under the ERROR policy, incompatible comdat, ...).
func (e *Errors) Error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()
	e.fatal.Store(true)
	fmt.Fprintf(os.Stderr, "rld: error: %s\n", msg)
}

// Warn records a non-fatal warning (duplicate common symbol under
// warn_common, unresolved reference under the WARN policy).
func (e *Errors) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.mu.Lock()
	e.warnings = append(e.warnings, msg)
	e.mu.Unlock()
	if e.failWarn {
		e.fatal.Store(true)
	}
	fmt.Fprintf(os.Stderr, "rld: warning: %s\n", msg)
}

// HasErrors reports whether any fatal condition was recorded so far.
func (e *Errors) HasErrors() bool {
	return e.fatal.Load()
}

// Checkpoint exits the process if any stage recorded a fatal condition.
// Every pipeline stage ends with a call to Checkpoint, matching the
// "propagation" rule: parsers fail fatally inline, higher-level semantic
// errors are collected and checked at a barrier.
func (e *Errors) Checkpoint(stage string) {
	if e.fatal.Load() {
		fmt.Fprintf(os.Stderr, "rld: fatal: %d error(s) after stage %q\n", len(e.messages), stage)
		os.Exit(1)
	}
}

// Messages returns a snapshot of recorded errors, for tests.
func (e *Errors) Messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.messages))
	copy(out, e.messages)
	return out
}

// Warnings returns a snapshot of recorded warnings, for tests.
func (e *Errors) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.warnings))
	copy(out, e.warnings)
	return out
}
