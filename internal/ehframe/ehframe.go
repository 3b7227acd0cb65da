// Package ehframe implements component G: walking a raw .eh_frame section
// record-by-record into CIE and FDE structures, per §4.G. No repo in the
// retrieval pack parses DWARF call-frame records, so the record walk here
// follows the byte-level algorithm spelled out directly in the
// specification; the coding style (flat byte-offset walk, one struct per
// record, a post-pass to link cross-references) still follows the
// teacher's own per-file section walk in ParseInputSections.
package ehframe

import (
	"encoding/binary"
	"sort"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/hash"
	"github.com/hcyang1106/rld/internal/sym"
)

// CIE is a Common Information Entry: the shared prologue bytes referenced
// by one or more FDEs.
type CIE struct {
	Offset      uint64 // this record's begin offset within .eh_frame, for FDE linking
	Bytes       []byte
	Relocations []sym.Relocation // relocations whose offset falls within this record

	identity hash.Digest

	// Canonical is set by the cross-file dedup pass (internal/object.
	// DedupCIEs) when another CIE with the same identity hash was seen
	// first; nil means this CIE is itself the canonical copy.
	Canonical *CIE
}

// FDE is a Frame Description Entry: one live range's unwind info, tied to
// the CIE it was built against and the input section it describes.
type FDE struct {
	InputOffset uint64 // byte offset of this record's start within .eh_frame
	cieRefOffset uint64 // offset of the CIE this FDE names, for the post-pass link

	Relocations []sym.Relocation // this record's own relocations; [0] is the function pointer

	CIE           *CIE
	TargetSymbol  *sym.Symbol // resolved from Relocations[0]
}

// OwningSection returns the input section that defines this FDE's target
// function, once symbol resolution (component D) has run. Returns nil
// before then or if the target symbol is still undefined.
func (f *FDE) OwningSection() *sym.InputSection {
	if f.TargetSymbol == nil {
		return nil
	}
	return f.TargetSymbol.InputSection
}

// Parse walks content (a raw, uncompressed .eh_frame section body)
// record-by-record per §4.G: each record starts with a 4-byte length (0
// terminates the walk), followed by a 4-byte back-pointer (0 means this
// record is a CIE; otherwise it is an FDE naming its CIE at
// current_offset + 4 - back_pointer). relocs is the full set of
// relocations targeting this section (already sliced to its
// [RelBegin,RelEnd) span by the caller). objName identifies the owning
// file for any fatal diagnostic.
func Parse(objName string, content []byte, relocs []sym.Relocation) (cies []*CIE, fdes []*FDE) {
	var offset uint64
	for offset+4 <= uint64(len(content)) {
		length := binary.LittleEndian.Uint32(content[offset:])
		if length == 0 {
			break
		}
		begin := offset
		end := offset + 4 + uint64(length)
		if end > uint64(len(content)) || end < begin {
			break
		}
		if offset+8 > end {
			break
		}
		backPointer := binary.LittleEndian.Uint32(content[offset+4:])

		recRelocs := relocsInRange(relocs, begin, end)

		if backPointer == 0 {
			cies = append(cies, &CIE{Offset: begin, Bytes: append([]byte(nil), content[begin:end]...), Relocations: recRelocs})
		} else {
			if len(recRelocs) == 0 {
				// dead-on-arrival FDE, a quirk of some archivers; skip per §4.G
				offset = end
				continue
			}
			if recRelocs[0].Offset != begin+8 {
				diag.Fatalf("object: %s: .eh_frame: FDE's first relocation should have offset 8", objName)
			}
			cieRef := offset + 4 - uint64(backPointer)
			fdes = append(fdes, &FDE{
				InputOffset:  begin,
				cieRefOffset: cieRef,
				Relocations:  recRelocs,
			})
		}
		offset = end
	}
	return cies, fdes
}

// relocsInRange returns the sub-slice of relocs whose offset falls within
// [begin, end), assuming relocs is sorted by offset (true for a section's
// own relocation table as decoded in file order, which the ELF convention
// keeps ascending).
func relocsInRange(relocs []sym.Relocation, begin, end uint64) []sym.Relocation {
	lo := sort.Search(len(relocs), func(i int) bool { return relocs[i].Offset >= begin })
	hi := sort.Search(len(relocs), func(i int) bool { return relocs[i].Offset >= end })
	if lo >= hi {
		return nil
	}
	return relocs[lo:hi]
}

// LinkCIEs matches each FDE to its CIE by input offset (the post-pass named
// in §4.G) and resolves each FDE's target symbol from its owning file's
// symbol table (symbolAt maps a relocation's SymIdx to the canonical
// *sym.Symbol, exactly like relocation target resolution elsewhere).
func LinkCIEs(cies []*CIE, fdes []*FDE, symbolAt func(idx uint32) *sym.Symbol) {
	byOffset := make(map[uint64]*CIE, len(cies))
	for _, c := range cies {
		byOffset[c.Offset] = c
	}
	for _, f := range fdes {
		f.CIE = byOffset[f.cieRefOffset]
		if len(f.Relocations) > 0 {
			f.TargetSymbol = symbolAt(f.Relocations[0].SymIdx)
		}
	}
}

// SortByOwningPriority stable-sorts fdes so every FDE belonging to one
// section is contiguous, ordered by that section's owning file priority —
// the ordering §4.H's binning pass relies on to store one [begin,end)
// range per section.
func SortByOwningPriority(fdes []*FDE) {
	// Sections of equal file priority are ordered by where their first FDE
	// appears, which keeps each section's FDEs together.
	firstSeen := make(map[*sym.InputSection]int, len(fdes))
	for i, f := range fdes {
		if s := f.OwningSection(); s != nil {
			if _, ok := firstSeen[s]; !ok {
				firstSeen[s] = i
			}
		}
	}
	sort.SliceStable(fdes, func(i, j int) bool {
		si, sj := fdes[i].OwningSection(), fdes[j].OwningSection()
		if si == nil || sj == nil {
			return si != nil
		}
		if si.File.Priority != sj.File.Priority {
			return si.File.Priority < sj.File.Priority
		}
		return firstSeen[si] < firstSeen[sj]
	})
}

// AssignSectionRanges is the §4.G post-pass that turns a sorted FDE table
// into the [begin,end) range each owning InputSection carries. Must run
// after symbol resolution, since OwningSection reads the FDE's target
// symbol's resolved InputSection, and before internal/liveness.RunSectionGC
// consults sec.EhFrameBegin/EhFrameEnd to expand the FDE-based GC edge.
// A run of consecutive FDEs sharing no owning section (both nil, e.g. an
// unresolved target) is left unassigned rather than merged into a
// neighboring section's range.
func AssignSectionRanges(fdes []*FDE) {
	SortByOwningPriority(fdes)
	i := 0
	for i < len(fdes) {
		sec := fdes[i].OwningSection()
		j := i + 1
		for j < len(fdes) && fdes[j].OwningSection() == sec {
			j++
		}
		if sec != nil {
			sec.EhFrameBegin, sec.EhFrameEnd = i, j
		}
		i = j
	}
}

// IdentityHash computes the CIE's identity per §4.G: two CIEs merge iff
// their bytes are identical and their referenced symbols resolve
// identically. resolvedNames is the list of the CIE's relocation target
// names, computed by the caller (it needs symbol resolution, which this
// package doesn't have access to).
func (c *CIE) IdentityHash(resolvedNames []string) hash.Digest {
	buf := append([]byte(nil), c.Bytes...)
	for _, n := range resolvedNames {
		buf = append(buf, 0)
		buf = append(buf, n...)
	}
	c.identity = hash.Sum256(buf)
	return c.identity
}

// SameIdentity reports whether two CIEs' most recently computed identity
// hashes match.
func (c *CIE) SameIdentity(other *CIE) bool {
	return c.identity == other.identity
}
