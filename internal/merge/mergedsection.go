package merge

import (
	"sort"
	"sync"

	"github.com/hcyang1106/rld/internal/hash"
)

// alignTo rounds n up to a multiple of align (align must be a power of two).
func alignTo(n, align uint64) uint64 {
	if align == 0 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// MergedSection is one output-level merged section (e.g. the merged
// ".rodata.str1.1" across all inputs). Insert is safe for concurrent use
// from multiple parser goroutines, one per input file, each racing to
// intern its own pieces; construction is guarded by a shard of mutexes
// rather than the lock-free interner in package intern, since fragment
// values (offset, alignment) are mutated in place after first insertion,
// which the intern package's single-flight Table does not support.
type MergedSection struct {
	Name string

	Addr uint64
	Size uint64
	AddrAlign uint64

	shards [fragmentShards]fragmentShard
}

const fragmentShards = 16

type fragmentShard struct {
	mu    sync.Mutex
	items map[string]*SectionFragment
}

// NewMergedSection constructs an empty merged section.
func NewMergedSection(name string) *MergedSection {
	m := &MergedSection{Name: name}
	for i := range m.shards {
		m.shards[i].items = make(map[string]*SectionFragment)
	}
	return m
}

func (m *MergedSection) shardFor(content string) *fragmentShard {
	return &m.shards[hash.String(content)%fragmentShards]
}

// Insert interns content, returning the canonical fragment. If content was
// already present its recorded alignment is widened to the max of the two
// requests, matching the teacher's MergedSection.Insert.
func (m *MergedSection) Insert(content string, p2align uint32) *SectionFragment {
	sh := m.shardFor(content)
	align := clampP2Align(p2align)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if frag, ok := sh.items[content]; ok {
		if frag.P2Align < align {
			frag.P2Align = align
		}
		return frag
	}
	frag := &SectionFragment{Parent: m, Content: content, P2Align: align}
	sh.items[content] = frag
	return frag
}

// Each calls fn once per interned fragment.
func (m *MergedSection) Each(fn func(*SectionFragment)) {
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for _, f := range sh.items {
			fn(f)
		}
		sh.mu.Unlock()
	}
}

// AssignOffsets lays out every alive fragment: sorted by alignment then
// length then lexicographically (matching the teacher's
// AssignFragmentsOffsets, which the note admits is not load-bearing but is
// what real output looks like), aligning the running offset to each
// fragment's own alignment.
func (m *MergedSection) AssignOffsets() {
	var alive []*SectionFragment
	m.Each(func(f *SectionFragment) {
		if f.IsAlive() {
			alive = append(alive, f)
		}
	})

	sort.SliceStable(alive, func(i, j int) bool {
		if alive[i].P2Align != alive[j].P2Align {
			return alive[i].P2Align < alive[j].P2Align
		}
		if len(alive[i].Content) != len(alive[j].Content) {
			return len(alive[i].Content) < len(alive[j].Content)
		}
		return alive[i].Content < alive[j].Content
	})

	var offset uint64
	var maxAlign uint64 = 1
	for _, f := range alive {
		align := uint64(1) << f.P2Align
		offset = alignTo(offset, align)
		f.Offset = uint32(offset)
		offset += uint64(len(f.Content))
		if align > maxAlign {
			maxAlign = align
		}
	}
	m.AddrAlign = maxAlign
	m.Size = alignTo(offset, maxAlign)
}

// CopyInto writes every alive fragment's bytes into buf at its assigned
// offset. buf must be at least m.Size bytes.
func (m *MergedSection) CopyInto(buf []byte) {
	m.Each(func(f *SectionFragment) {
		if !f.IsAlive() {
			return
		}
		copy(buf[f.Offset:], f.Content)
	})
}
