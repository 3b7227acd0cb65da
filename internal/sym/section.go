package sym

import (
	"debug/elf"
	"sync/atomic"
)

// Shdr mirrors the subset of ELF section header fields the linker cares
// about, kept as plain uints; the bit tests below compare them against
// debug/elf's constants.
type Shdr struct {
	Flags     uint64
	Type      uint32
	Size      uint64
	AddrAlign uint64
	EntSize   uint64
}

// InputSection is one section of one input file. Content may alias the
// mmap'd input (the caller supplies it; this package never copies it
// unless asked to).
type InputSection struct {
	File    *File
	Name    string
	Shdr    Shdr
	Content []byte

	Output Chunk // nil until output composition assigns it
	Offset uint64

	RelBegin, RelEnd int // span into the file's flat relocation array

	EhFrameBegin, EhFrameEnd int // FDE index range owned by this section, -1,-1 if none
	IsEhFrame                bool

	KilledByComdat bool

	isAlive   atomic.Bool
	isVisited atomic.Bool
}

// NewInputSection constructs a section marked alive by default; mergeable
// sections are marked not-alive by the parser once split into fragments
// (they flow to the output via the fragment table instead).
func NewInputSection(file *File, name string, shdr Shdr, content []byte) *InputSection {
	s := &InputSection{File: file, Name: name, Shdr: shdr, Content: content, EhFrameBegin: -1, EhFrameEnd: -1}
	s.isAlive.Store(true)
	return s
}

func (s *InputSection) IsAlive() bool     { return s.isAlive.Load() }
func (s *InputSection) SetAlive(v bool)   { s.isAlive.Store(v) }
func (s *InputSection) IsVisited() bool   { return s.isVisited.Load() }

// MarkVisited performs the atomic exchange the GC mark pass relies on to
// expand each section exactly once; it returns true the first time it is
// called for this section.
func (s *InputSection) MarkVisited() (firstTime bool) {
	return !s.isVisited.Swap(true)
}

// Retained implements the retention invariant of §3: alive, not killed by
// comdat, and (GC disabled or visited).
func (s *InputSection) Retained(gcEnabled bool) bool {
	if !s.isAlive.Load() || s.KilledByComdat {
		return false
	}
	if !gcEnabled {
		return true
	}
	return s.isVisited.Load()
}

// Addr returns the section's assigned output address, valid only after
// component H has run.
func (s *InputSection) Addr() uint64 {
	if s.Output == nil {
		return s.Offset
	}
	// Chunk only exposes a name; the concrete layout package augments
	// InputSection.Offset to already be an absolute address once
	// addresses are assigned (see layout.AssignAddresses), so this is
	// simply the offset field at that point.
	return s.Offset
}

// IsAlloc/IsMergeStrings/IsMerge classify raw ELF section flags/type used
// throughout the parser and GC roots. This package imports debug/elf only
// for its untyped SHF_*/SHT_* constants, not for any parsing logic.
func (h Shdr) IsAlloc() bool        { return h.Flags&uint64(elf.SHF_ALLOC) != 0 }
func (h Shdr) IsMerge() bool        { return h.Flags&uint64(elf.SHF_MERGE) != 0 }
func (h Shdr) IsMergeStrings() bool { return h.Flags&uint64(elf.SHF_STRINGS) != 0 }
func (h Shdr) IsTLS() bool          { return h.Flags&uint64(elf.SHF_TLS) != 0 }
func (h Shdr) IsWrite() bool        { return h.Flags&uint64(elf.SHF_WRITE) != 0 }
func (h Shdr) IsExec() bool         { return h.Flags&uint64(elf.SHF_EXECINSTR) != 0 }
func (h Shdr) IsCompressed() bool   { return h.Flags&uint64(elf.SHF_COMPRESSED) != 0 }
func (h Shdr) IsNobits() bool       { return elf.SectionType(h.Type) == elf.SHT_NOBITS }
func (h Shdr) IsNote() bool         { return elf.SectionType(h.Type) == elf.SHT_NOTE }
func (h Shdr) IsInitArray() bool    { return elf.SectionType(h.Type) == elf.SHT_INIT_ARRAY }
func (h Shdr) IsFiniArray() bool    { return elf.SectionType(h.Type) == elf.SHT_FINI_ARRAY }
func (h Shdr) IsPreinitArray() bool { return elf.SectionType(h.Type) == elf.SHT_PREINIT_ARRAY }

// IsCIdentifierName reports whether name could name a C identifier: the
// trigger condition for the linker-synthesized __start_<name>/__stop_<name>
// symbol pair (§4.E, §4.H).
func IsCIdentifierName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
