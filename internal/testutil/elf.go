// Package testutil builds minimal, valid ELF64-LE relocatable object
// bytes for use by other packages' tests, so internal/resolve,
// internal/liveness and internal/comdat can exercise real
// object.ParseObjectFile output instead of hand-rolling parser
// internals. Kept deliberately narrow: one .text section, a symbol
// table, and no relocation sections.
package testutil

import (
	"encoding/binary"
)

// SymSpec describes one symbol-table entry to bake into a test object.
type SymSpec struct {
	Name   string
	Bind   uint8 // elf.STB_*
	Type   uint8 // elf.STT_*
	Shndx  uint16
	Value  uint64
	Common bool
}

// ELFObject builds a little-endian ELF64 ET_REL file with a single
// .text section (filled with body) and a symbol table containing one
// reserved null entry followed by locals then globals from syms (locals
// must sort before globals; the caller is responsible for that order,
// matching the real ELF convention this format mirrors).
func ELFObject(body []byte, syms []SymSpec, firstGlobal int) []byte {
	const (
		ehdrSize = 64
		shdrSize = 64
		symSize  = 24
	)

	shstrtab := []byte{0}
	shstrtab = append(shstrtab, ".shstrtab\x00.text\x00.symtab\x00.strtab\x00"...)
	nameOff := func(tab []byte, name string) uint32 {
		s := string(tab)
		idx := indexOf(s, name+"\x00")
		return uint32(idx)
	}

	strtab := []byte{0}
	symNameOffsets := make([]uint32, len(syms))
	for i, s := range syms {
		symNameOffsets[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}

	symtab := make([]byte, symSize) // reserved null symbol
	for i, s := range syms {
		e := make([]byte, symSize)
		binary.LittleEndian.PutUint32(e[0:], symNameOffsets[i])
		info := (s.Bind << 4) | (s.Type & 0xf)
		e[4] = info
		e[5] = 0
		shndx := s.Shndx
		if s.Common {
			shndx = 0xfff2 // SHN_COMMON
		}
		binary.LittleEndian.PutUint16(e[6:], shndx)
		binary.LittleEndian.PutUint64(e[8:], s.Value)
		binary.LittleEndian.PutUint64(e[16:], 0)
		symtab = append(symtab, e...)
	}

	// Section layout: 0 NULL, 1 .shstrtab, 2 .text, 3 .symtab, 4 .strtab
	var buf []byte
	pad := func(b []byte) []byte {
		for len(b)%8 != 0 {
			b = append(b, 0)
		}
		return b
	}
	shstrtab = pad(shstrtab)
	strtab = pad(strtab)
	textBody := pad(append([]byte(nil), body...))

	dataStart := uint64(ehdrSize)
	shstrtabOff := dataStart
	textOff := shstrtabOff + uint64(len(shstrtab))
	symtabOff := textOff + uint64(len(textBody))
	strtabOff := symtabOff + uint64(len(symtab))
	shOff := strtabOff + uint64(len(strtab))

	buf = make([]byte, shOff)
	copy(buf[shstrtabOff:], shstrtab)
	copy(buf[textOff:], textBody)
	copy(buf[symtabOff:], symtab)
	copy(buf[strtabOff:], strtab)

	// ELF header
	copy(buf[0:], []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	binary.LittleEndian.PutUint16(buf[16:], 1)      // e_type = ET_REL
	binary.LittleEndian.PutUint16(buf[18:], 0x3e)   // e_machine = EM_X86_64
	binary.LittleEndian.PutUint32(buf[20:], 1)      // e_version
	binary.LittleEndian.PutUint64(buf[40:], shOff)  // e_shoff
	binary.LittleEndian.PutUint16(buf[52:], ehdrSize)
	binary.LittleEndian.PutUint16(buf[58:], shdrSize)
	binary.LittleEndian.PutUint16(buf[60:], 5) // e_shnum
	binary.LittleEndian.PutUint16(buf[62:], 1) // e_shstrndx

	putShdr := func(idx int, name uint32, typ uint32, flags uint64, offset, size uint64, link, info uint32, entsize uint64) {
		off := int(shOff) + idx*shdrSize
		e := buf[off : off+shdrSize]
		binary.LittleEndian.PutUint32(e[0:], name)
		binary.LittleEndian.PutUint32(e[4:], typ)
		binary.LittleEndian.PutUint64(e[8:], flags)
		binary.LittleEndian.PutUint64(e[24:], offset)
		binary.LittleEndian.PutUint64(e[32:], size)
		binary.LittleEndian.PutUint32(e[40:], link)
		binary.LittleEndian.PutUint32(e[44:], info)
		binary.LittleEndian.PutUint64(e[48:], 1)
		binary.LittleEndian.PutUint64(e[56:], entsize)
	}
	buf = append(buf, make([]byte, 5*shdrSize)...)

	putShdr(0, 0, 0, 0, 0, 0, 0, 0, 0)
	putShdr(1, nameOff(shstrtab, ".shstrtab"), 3 /*SHT_STRTAB*/, 0, shstrtabOff, uint64(len(shstrtab)), 0, 0, 0)
	putShdr(2, nameOff(shstrtab, ".text"), 1 /*SHT_PROGBITS*/, 0x6 /*ALLOC|EXECINSTR*/, textOff, uint64(len(textBody)), 0, 0, 0)
	putShdr(3, nameOff(shstrtab, ".symtab"), 2 /*SHT_SYMTAB*/, 0, symtabOff, uint64(len(symtab)), 4, uint32(firstGlobal+1), symSize)
	putShdr(4, nameOff(shstrtab, ".strtab"), 3 /*SHT_STRTAB*/, 0, strtabOff, uint64(len(strtab)), 0, 0, 0)

	return buf
}

// DSOSymSpec describes one dynamic symbol table entry to bake into a test
// shared object.
type DSOSymSpec struct {
	Name  string
	Value uint64
	Weak  bool
}

// DSOObject builds a minimal little-endian ELF64 ET_DYN file with a
// .dynsym/.dynstr pair and a .dynamic section carrying DT_SONAME, for
// exercising object.ParseDSO without a real linker-produced shared object.
func DSOObject(soname string, syms []DSOSymSpec) []byte {
	const (
		ehdrSize = 64
		shdrSize = 64
		symSize  = 24
		dynSize  = 16
	)

	shstrtab := []byte{0}
	shstrtab = append(shstrtab, ".shstrtab\x00.dynsym\x00.dynstr\x00.dynamic\x00"...)
	nameOff := func(tab []byte, name string) uint32 {
		return uint32(indexOf(string(tab), name+"\x00"))
	}

	dynstr := []byte{0}
	sonameOff := uint32(len(dynstr))
	dynstr = append(dynstr, soname...)
	dynstr = append(dynstr, 0)

	symNameOffsets := make([]uint32, len(syms))
	for i, s := range syms {
		symNameOffsets[i] = uint32(len(dynstr))
		dynstr = append(dynstr, s.Name...)
		dynstr = append(dynstr, 0)
	}

	dynsym := make([]byte, symSize) // reserved null entry
	for i, s := range syms {
		e := make([]byte, symSize)
		binary.LittleEndian.PutUint32(e[0:], symNameOffsets[i])
		bind := uint8(1) // STB_GLOBAL
		if s.Weak {
			bind = 2 // STB_WEAK
		}
		e[4] = (bind << 4) | 2 // STT_FUNC
		e[5] = 0
		binary.LittleEndian.PutUint16(e[6:], 1) // arbitrary non-UNDEF shndx
		binary.LittleEndian.PutUint64(e[8:], s.Value)
		dynsym = append(dynsym, e...)
	}

	dynamic := make([]byte, 0, 2*dynSize)
	putDyn := func(tag int64, val uint64) {
		e := make([]byte, dynSize)
		binary.LittleEndian.PutUint64(e[0:], uint64(tag))
		binary.LittleEndian.PutUint64(e[8:], val)
		dynamic = append(dynamic, e...)
	}
	putDyn(14, uint64(sonameOff)) // DT_SONAME
	putDyn(0, 0)                  // DT_NULL

	pad := func(b []byte) []byte {
		for len(b)%8 != 0 {
			b = append(b, 0)
		}
		return b
	}
	shstrtab = pad(shstrtab)
	dynstr = pad(dynstr)

	dataStart := uint64(ehdrSize)
	shstrtabOff := dataStart
	dynsymOff := shstrtabOff + uint64(len(shstrtab))
	dynstrOff := dynsymOff + uint64(len(dynsym))
	dynamicOff := dynstrOff + uint64(len(dynstr))
	shOff := dynamicOff + uint64(len(dynamic))

	buf := make([]byte, shOff)
	copy(buf[shstrtabOff:], shstrtab)
	copy(buf[dynsymOff:], dynsym)
	copy(buf[dynstrOff:], dynstr)
	copy(buf[dynamicOff:], dynamic)

	copy(buf[0:], []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	binary.LittleEndian.PutUint16(buf[16:], 3)    // e_type = ET_DYN
	binary.LittleEndian.PutUint16(buf[18:], 0x3e) // e_machine = EM_X86_64
	binary.LittleEndian.PutUint32(buf[20:], 1)
	binary.LittleEndian.PutUint64(buf[40:], shOff)
	binary.LittleEndian.PutUint16(buf[52:], ehdrSize)
	binary.LittleEndian.PutUint16(buf[58:], shdrSize)
	binary.LittleEndian.PutUint16(buf[60:], 5) // e_shnum
	binary.LittleEndian.PutUint16(buf[62:], 1) // e_shstrndx

	buf = append(buf, make([]byte, 5*shdrSize)...)
	putShdr := func(idx int, name uint32, typ uint32, offset, size uint64, link, info uint32, entsize uint64) {
		off := int(shOff) + idx*shdrSize
		e := buf[off : off+shdrSize]
		binary.LittleEndian.PutUint32(e[0:], name)
		binary.LittleEndian.PutUint32(e[4:], typ)
		binary.LittleEndian.PutUint64(e[24:], offset)
		binary.LittleEndian.PutUint64(e[32:], size)
		binary.LittleEndian.PutUint32(e[40:], link)
		binary.LittleEndian.PutUint32(e[44:], info)
		binary.LittleEndian.PutUint64(e[48:], 1)
		binary.LittleEndian.PutUint64(e[56:], entsize)
	}
	putShdr(0, 0, 0, 0, 0, 0, 0, 0)
	putShdr(1, nameOff(shstrtab, ".shstrtab"), 3 /*SHT_STRTAB*/, shstrtabOff, uint64(len(shstrtab)), 0, 0, 0)
	putShdr(2, nameOff(shstrtab, ".dynsym"), 11 /*SHT_DYNSYM*/, dynsymOff, uint64(len(dynsym)), 3, 1, symSize)
	putShdr(3, nameOff(shstrtab, ".dynstr"), 3 /*SHT_STRTAB*/, dynstrOff, uint64(len(dynstr)), 0, 0, 0)
	putShdr(4, nameOff(shstrtab, ".dynamic"), 6 /*SHT_DYNAMIC*/, dynamicOff, uint64(len(dynamic)), 3, 0, dynSize)

	return buf
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return 0
}
