package merge

import (
	"bytes"
	"sort"
)

// MergeableSection is one input file's view of a mergeable content
// section after §4.C step 4 has split it: parallel arrays of piece
// offsets (within the original section) and their interned fragment
// handles, per §3's "Mergeable section / fragment" data model.
type MergeableSection struct {
	Parent      *MergedSection
	P2Align     uint32
	FragOffsets []uint64
	Fragments   []*SectionFragment
}

// Split breaks content into pieces and interns each one into parent,
// implementing §4.C step 4: null-terminated pieces when isStrings is set
// (the terminator is entsize zero bytes, scanned for at an entsize stride,
// and the piece length includes it), otherwise fixed-size slices of length
// entsize.
func Split(parent *MergedSection, content []byte, entsize uint64, p2align uint32, isStrings bool) *MergeableSection {
	m := &MergeableSection{Parent: parent, P2Align: p2align}
	if entsize == 0 {
		return m
	}

	var offset uint64
	if isStrings {
		zero := make([]byte, entsize)
		for offset < uint64(len(content)) {
			end := offset
			for end+entsize <= uint64(len(content)) && !bytes.Equal(content[end:end+entsize], zero) {
				end += entsize
			}
			if end+entsize <= uint64(len(content)) {
				end += entsize // include the terminator
			} else {
				end = uint64(len(content))
			}
			piece := content[offset:end]
			m.FragOffsets = append(m.FragOffsets, offset)
			m.Fragments = append(m.Fragments, parent.Insert(string(piece), p2align))
			offset = end
		}
		return m
	}

	for offset+entsize <= uint64(len(content)) {
		piece := content[offset : offset+entsize]
		m.FragOffsets = append(m.FragOffsets, offset)
		m.Fragments = append(m.Fragments, parent.Insert(string(piece), p2align))
		offset += entsize
	}
	return m
}

// GetFragment resolves a byte offset within the original section to the
// fragment covering it, and the residual delta within that fragment. It
// implements the "relocation targets a specific fragment plus delta"
// rebinding rule of §3, via the same binary-search shape as the teacher's
// MergeableSection.GetFragment.
func (m *MergeableSection) GetFragment(offset uint64) (*SectionFragment, uint64) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})
	if pos == 0 {
		return nil, 0
	}
	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx]
}

// MarkAllAlive marks every fragment referenced by this section alive,
// implementing the "non-alloc fragment pre-pass" of §4.E: fragments in a
// non-alloc merged section are never garbage collected.
func (m *MergeableSection) MarkAllAlive() {
	for _, f := range m.Fragments {
		f.SetAlive(true)
	}
}
