// Package comdat implements component F: deduplicating comdat groups
// after resolution. Grounded on the ownership CAS already implemented by
// sym.ComdatGroup (§3's data model) and the teacher's own two-phase
// claim-then-sweep shape used for section liveness in passes.go.
package comdat

import "github.com/hcyang1106/rld/internal/object"

// Run implements §4.F: every alive file races to claim ownership of each
// comdat group it declares, then every non-owning file kills its own
// member sections of every group it lost. Splitting the two phases keeps
// the outcome independent of file processing order, since a file
// processed early in phase 2 could otherwise see a group whose true
// owner hasn't claimed yet.
func Run(objects []*object.ObjectFile) {
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, group := range o.ComdatGroups {
			group.ClaimOwnership(o.Priority)
		}
	}

	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, group := range o.ComdatGroups {
			if group.IsOwner(o.Priority) {
				continue
			}
			for _, secIdx := range o.ComdatMembers[group] {
				if secIdx < len(o.InputSections) && o.InputSections[secIdx] != nil {
					o.InputSections[secIdx].KilledByComdat = true
				}
			}
		}
	}
}
