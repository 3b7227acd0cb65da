// Package liveness implements component E: archive-member activation and
// the mark-sweep section garbage collector, both grounded on
// dongAxis-rvld's MarkLiveObjects (the retrieval pack's only resolver with
// a real archive-liveness traversal) and expressed here as instantiations
// of internal/sched.RunWorkStealing, per §5's "one work-stealing primitive
// for the two graph traversals" rule.
package liveness

import (
	"strings"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sched"
	"github.com/hcyang1106/rld/internal/sym"
)

// RunArchiveLiveness implements §4.E's "Archive liveness": starting from
// every already-alive file's strong undefined references, iteratively
// activates the archive member currently winning each referenced symbol.
// Activating a member exposes its own strong undefined references as
// further work, which is exactly the Feeder contract of
// sched.RunWorkStealing.
func RunArchiveLiveness(objects []*object.ObjectFile) {
	var roots []*object.ObjectFile
	for _, o := range objects {
		if o.IsAlive() {
			roots = append(roots, o)
		}
	}

	sched.RunWorkStealing(roots, func(o *object.ObjectFile) []*object.ObjectFile {
		var activated []*object.ObjectFile
		n := o.NumSymbols()
		for i := int(o.FirstGlobal()); i < n; i++ {
			esym := o.ElfSym(i)
			if !esym.IsUndef() || esym.IsWeak() {
				continue
			}
			winner := o.Symbols[i]
			if winner.File == nil || !winner.File.IsInLib {
				continue
			}
			if winner.File.MarkAlive() {
				member := memberOf(objects, winner.File)
				if member != nil {
					activated = append(activated, member)
				}
			}
		}
		return activated
	})
}

// memberOf finds the ObjectFile owning f. A linear scan is fine here: this
// only runs once per file activation, and the object list is already
// resident for the whole resolution stage.
func memberOf(objects []*object.ObjectFile, f *sym.File) *object.ObjectFile {
	for _, o := range objects {
		if o.File == f {
			return o
		}
	}
	return nil
}

// RunSectionGC implements §4.E's "Section GC": the non-alloc fragment
// pre-pass, parallel root collection, and the work-stealing mark
// traversal. Root collection covers non-alloc/init-fini/C-identifier/NOTE
// sections, the defining sections of the roots passed in, every section a
// CIE's own relocations reach (independent of whether the FDE using that CIE is
// itself reachable), and the defining section of every -export-dynamic
// symbol. Called only when cfg.GCSections is set; otherwise every alive,
// non-comdat-killed section is retained (sym.InputSection.Retained
// already encodes that fallback). Callers must run
// object.ResolveRelocationTargets and object.FinalizeEhFrame first so the
// FDE/CIE edges above have something to walk.
func RunSectionGC(cfg *config.Config, objects []*object.ObjectFile, roots []*sym.Symbol) {
	if !cfg.GCSections {
		return
	}
	BuildOwnerIndex(objects)

	// Non-alloc fragment pre-pass: fragments belonging to a non-alloc
	// merged section are never collected regardless of reachability.
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for i, msec := range o.MergeableSecs {
			if msec == nil {
				continue
			}
			sec := o.InputSections[i]
			if sec != nil && !sec.Shdr.IsAlloc() {
				msec.MarkAllAlive()
			}
		}
	}

	var work []*sym.InputSection
	seen := func(s *sym.InputSection) bool { return !s.MarkVisited() }

	addRoot := func(s *sym.InputSection) {
		if s == nil || seen(s) {
			return
		}
		work = append(work, s)
	}

	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, sec := range o.InputSections {
			if sec == nil || !sec.IsAlive() {
				continue
			}
			if !sec.Shdr.IsAlloc() {
				addRoot(sec)
				continue
			}
			if isInitFini(sec) {
				addRoot(sec)
				continue
			}
			if sym.IsCIdentifierName(sec.Name) {
				addRoot(sec)
				continue
			}
			if sec.Shdr.IsNote() {
				addRoot(sec)
			}
		}
	}
	for _, s := range roots {
		if s == nil {
			continue
		}
		if s.SectionFragment != nil {
			if f, ok := s.SectionFragment.(interface{ SetAlive(bool) }); ok {
				f.SetAlive(true)
			}
			continue
		}
		addRoot(s.InputSection)
	}
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		// Every section referenced by a CIE's own relocations (its
		// personality routine, typically) must survive independently of
		// whether any FDE using that CIE is itself reachable yet.
		for _, cie := range o.CIEs {
			for _, r := range cie.Relocations {
				if r.TargetSymbol != nil {
					addRoot(r.TargetSymbol.InputSection)
				}
				if f, ok := r.TargetFragment.(interface{ SetAlive(bool) }); ok {
					f.SetAlive(true)
				}
			}
		}
	}
	for _, sec := range object.ExportedSectionRoots(objects) {
		addRoot(sec)
	}

	sched.RunWorkStealing(work, func(sec *sym.InputSection) []*sym.InputSection {
		var next []*sym.InputSection
		expandRelocations(sec, &next, seen)
		expandFDEs(sec, &next, seen)
		return next
	})

	sweep(objects)
}

// expandRelocations walks one section's own relocation slice, following
// each relocation's resolved symbol/fragment target, per §4.E's edge rule.
func expandRelocations(sec *sym.InputSection, next *[]*sym.InputSection, seen func(*sym.InputSection) bool) {
	o := ownerOf(sec)
	if o == nil {
		return
	}
	for _, r := range o.Relocations[sec.RelBegin:sec.RelEnd] {
		if r.TargetFragment != nil {
			if f, ok := r.TargetFragment.(interface{ SetAlive(bool) }); ok {
				f.SetAlive(true)
			}
			continue
		}
		if r.TargetSymbol == nil {
			continue
		}
		target := r.TargetSymbol.InputSection
		if target != nil && !seen(target) {
			*next = append(*next, target)
		}
	}
}

// expandFDEs walks the FDE range this section owns; each FDE's
// relocations beyond index 0 are edges (index 0 points back to the
// function we arrived from).
func expandFDEs(sec *sym.InputSection, next *[]*sym.InputSection, seen func(*sym.InputSection) bool) {
	if sec.EhFrameBegin < 0 {
		return
	}
	o := ownerOf(sec)
	if o == nil {
		return
	}
	for _, fde := range o.FDEs[sec.EhFrameBegin:sec.EhFrameEnd] {
		for _, r := range fde.Relocations[1:] {
			if r.TargetSymbol == nil || r.TargetSymbol.InputSection == nil {
				continue
			}
			if t := r.TargetSymbol.InputSection; !seen(t) {
				*next = append(*next, t)
			}
		}
	}
}

// ownerOf recovers the ObjectFile a section belongs to. InputSection only
// carries the lightweight *sym.File identity (to avoid an import cycle
// back into object), so this package keeps a lookup built once per GC run.
var ownerIndex map[*sym.File]*object.ObjectFile

func ownerOf(sec *sym.InputSection) *object.ObjectFile {
	if ownerIndex == nil {
		return nil
	}
	return ownerIndex[sec.File]
}

// BuildOwnerIndex records which ObjectFile owns each file so relocation and
// FDE edges can be traced back to it; RunSectionGC calls it before marking.
func BuildOwnerIndex(objects []*object.ObjectFile) {
	idx := make(map[*sym.File]*object.ObjectFile, len(objects))
	for _, o := range objects {
		idx[o.File] = o
	}
	ownerIndex = idx
}

// sweep kills every alive section that the mark pass never visited.
func sweep(objects []*object.ObjectFile) {
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, sec := range o.InputSections {
			if sec == nil || !sec.IsAlive() {
				continue
			}
			if !sec.IsVisited() {
				sec.SetAlive(false)
			}
		}
	}
}

func isInitFini(sec *sym.InputSection) bool {
	if sec.Shdr.IsInitArray() || sec.Shdr.IsFiniArray() || sec.Shdr.IsPreinitArray() {
		return true
	}
	for _, p := range []string{".ctors", ".dtors", ".init", ".fini"} {
		if strings.HasPrefix(sec.Name, p) {
			return true
		}
	}
	return false
}
