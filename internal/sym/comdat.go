package sym

import "sync/atomic"

// ComdatGroup tracks one signature's ownership race across files. The
// invariant, per §3, is that after resolution owner equals the minimum
// file-priority among all files that declared this signature.
type ComdatGroup struct {
	Signature string
	owner     atomic.Int64
}

const noOwner = 1<<62 - 1

// NewComdatGroup constructs a group with no owner yet.
func NewComdatGroup(signature string) *ComdatGroup {
	g := &ComdatGroup{Signature: signature}
	g.owner.Store(noOwner)
	return g
}

// ClaimOwnership races this file's priority against the current owner,
// looping until either it wins or a strictly lower priority is already
// installed. It returns nothing; the durable result is Owner().
func (g *ComdatGroup) ClaimOwnership(filePriority int64) {
	for {
		cur := g.owner.Load()
		if filePriority >= cur {
			return
		}
		if g.owner.CompareAndSwap(cur, filePriority) {
			return
		}
	}
}

// Owner returns the winning file priority once all files have raced.
func (g *ComdatGroup) Owner() int64 { return g.owner.Load() }

// IsOwner reports whether filePriority is the (current) winner.
func (g *ComdatGroup) IsOwner(filePriority int64) bool { return g.owner.Load() == filePriority }
