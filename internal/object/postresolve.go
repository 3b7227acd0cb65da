package object

import (
	"github.com/hcyang1106/rld/internal/ehframe"
	"github.com/hcyang1106/rld/internal/hash"
	"github.com/hcyang1106/rld/internal/sym"
)

// ResolveRelocationTargets fills in every relocation's TargetSymbol or
// TargetFragment from its raw SymIdx, once component D has settled each
// canonical symbol's binding. o.Symbols is already indexed by ELF symbol
// index for both locals (bound at parse time) and globals (mutated in
// place by sym.Symbol.TryResolve), so a single pass over each file's flat
// Relocations array is enough: CIE.Relocations and FDE.Relocations were
// sliced out of that same backing array by internal/ehframe.Parse, so
// they observe the same writes without a separate walk.
//
// Must run after resolve.Resolve and before internal/liveness.RunSectionGC,
// since both the relocation-edge and FDE-edge GC rules read these fields
// instead of re-deriving them from SymIdx.
func ResolveRelocationTargets(objects []*ObjectFile) {
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for i := range o.Relocations {
			r := &o.Relocations[i]
			if int(r.SymIdx) >= len(o.Symbols) {
				continue
			}
			s := o.Symbols[r.SymIdx]
			if s == nil {
				continue
			}
			if s.SectionFragment != nil {
				r.TargetFragment = s.SectionFragment
				continue
			}
			r.TargetSymbol = s
		}
	}
}

// FinalizeEhFrame runs the §4.G post-pass over every alive file's parsed
// FDE table, wiring internal/ehframe.AssignSectionRanges into the real
// pipeline so InputSection.EhFrameBegin/EhFrameEnd stop sitting at their
// -1,-1 sentinel and internal/liveness's FDE-based GC edge rule can
// actually walk a section's owned FDEs. Must run after
// ResolveRelocationTargets so target sections are settled.
func FinalizeEhFrame(objects []*ObjectFile) {
	for _, o := range objects {
		if !o.IsAlive() || len(o.FDEs) == 0 {
			continue
		}
		ehframe.AssignSectionRanges(o.FDEs)
	}
}

// DedupCIEs implements §4.G's CIE content-identity dedup: two CIEs across
// any files collapse to one canonical copy when their raw bytes and
// resolved relocation-target names match. Runs after
// ResolveRelocationTargets so a CIE's personality/LSDA relocations are
// bound to their final symbols before hashing. Only marks the losing CIEs
// (CIE.Canonical); actually emitting one merged copy is component H's
// concern once output composition materializes .eh_frame bytes, which
// this pipeline stage does not do.
func DedupCIEs(objects []*ObjectFile) {
	seen := make(map[hash.Digest]*ehframe.CIE)
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, c := range o.CIEs {
			names := make([]string, len(c.Relocations))
			for i, r := range c.Relocations {
				if r.TargetSymbol != nil {
					names[i] = r.TargetSymbol.Name
				}
			}
			digest := c.IdentityHash(names)
			if canon, ok := seen[digest]; ok {
				c.Canonical = canon
			} else {
				seen[digest] = c
			}
		}
	}
}

// ExportedSectionRoots returns the defining InputSection of every symbol
// currently carrying sym.FlagExported, for §4.E's "the defining section
// of every exported symbol" GC root rule. Symbols bound to a
// SectionFragment rather than a whole InputSection are excluded: the
// fragment's own aliveness is a mergeable-table concern
// (internal/merge.SectionFragment.SetAlive), not a section-GC root.
func ExportedSectionRoots(objects []*ObjectFile) []*sym.InputSection {
	var roots []*sym.InputSection
	seen := make(map[*sym.Symbol]bool)
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, s := range o.Symbols {
			if s == nil || seen[s] || !s.HasFlag(sym.FlagExported) {
				continue
			}
			seen[s] = true
			if s.InputSection != nil {
				roots = append(roots, s.InputSection)
			}
		}
	}
	return roots
}
