// Package sym holds the cross-component data model of §3: File, Symbol,
// InputSection, Relocation and ComdatGroup. Types here are shared by the
// parser, resolver, liveness engine, comdat pass and output composer, so
// they intentionally avoid depending on any of those packages — cross
// references that would otherwise cycle (a section's owning output chunk,
// a symbol's target fragment) are expressed as small interfaces
// implemented elsewhere, matching the teacher's iOutputWriter pattern.
package sym

import "sync/atomic"

// File is the minimal cross-cutting identity of one input file: an object,
// an archive member, or a DSO. The concrete parser (internal/object)
// embeds *File inside its own ObjectFile/DSOFile types.
type File struct {
	Name     string
	Priority int64 // lower = higher precedence, assigned in command-line order
	IsInLib  bool  // archive member: default liveness is "not alive" until pulled in
	IsDSO    bool

	isAlive atomic.Bool
}

// NewFile constructs a File at the given priority. Files that are not
// archive members start alive; archive members start dead until the
// liveness engine pulls them in.
func NewFile(name string, priority int64, isInLib, isDSO bool) *File {
	f := &File{Name: name, Priority: priority, IsInLib: isInLib, IsDSO: isDSO}
	f.isAlive.Store(!isInLib)
	return f
}

// IsAlive reports the current liveness flag.
func (f *File) IsAlive() bool { return f.isAlive.Load() }

// MarkAlive atomically sets alive and reports whether this call was the one
// that flipped it (false->true), matching the "CAS on is_alive" rule used
// to decide whether to enqueue this file for further traversal.
func (f *File) MarkAlive() (flipped bool) {
	return f.isAlive.CompareAndSwap(false, true)
}
