package object

import (
	"debug/elf"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/objfmt"
	"github.com/hcyang1106/rld/internal/sym"
)

// DSOFile is one parsed ELF shared object: just enough of it to feed
// resolution's shared-library pass (§4.D pass 3) and the DT_NEEDED record
// the output composer eventually writes into the dynamic section. Unlike
// ObjectFile there is no relocation graph or section content to keep —
// a shared object contributes only its exported dynamic symbol table.
type DSOFile struct {
	*sym.File

	SOName  string
	Needed  []string
	Exports []DSOSymbol
}

// DSOSymbol is one dynsym entry a shared object exports.
type DSOSymbol struct {
	Name  string
	Value uint64
	Weak  bool
}

// IsSharedObject reports whether content is an ELF file with e_type ==
// ET_DYN, the discriminator between a relocatable object (ET_REL, handled
// by ParseObjectFile) and a shared library.
func IsSharedObject(content []byte) bool {
	dec, err := objfmt.DetectELF(content)
	if err != nil {
		return false
	}
	if len(content) < dec.EhdrSize() {
		return false
	}
	return elf.Type(dec.DecodeEhdr(content).Type) == elf.ET_DYN
}

// ParseDSO decodes a shared object's dynamic symbol table (SHT_DYNSYM)
// and, if present, its SONAME and DT_NEEDED list from SHT_DYNAMIC. Local
// dynsym entries and section symbols are skipped: only names a consumer of
// this library could actually reference are kept, matching what
// resolveGlobals' DSO counterpart in internal/resolve iterates.
func ParseDSO(f *sym.File, content []byte) *DSOFile {
	dec, err := objfmt.DetectELF(content)
	if err != nil {
		diag.Fatalf("object: %s: %v", f.Name, err)
	}
	if len(content) < dec.EhdrSize() {
		diag.Fatalf("object: %s: file smaller than ELF header", f.Name)
	}
	ehdr := dec.DecodeEhdr(content)

	shSize := dec.ShdrSize()
	if int(ehdr.ShOff)+shSize > len(content) {
		diag.Fatalf("object: %s: section header table out of bounds", f.Name)
	}
	first := dec.DecodeShdr(content[ehdr.ShOff:])
	numSecs := uint32(ehdr.ShNum)
	if numSecs == 0 {
		numSecs = uint32(first.Size)
	}
	shdrs := make([]objfmt.Shdr, 0, numSecs)
	shdrs = append(shdrs, first)
	off := uint64(ehdr.ShOff) + uint64(shSize)
	for i := uint32(1); i < numSecs; i++ {
		if off+uint64(shSize) > uint64(len(content)) {
			diag.Fatalf("object: %s: section header %d out of bounds", f.Name, i)
		}
		shdrs = append(shdrs, dec.DecodeShdr(content[off:]))
		off += uint64(shSize)
	}

	bytesOf := func(idx uint32) []byte {
		if idx >= uint32(len(shdrs)) {
			return nil
		}
		sh := shdrs[idx]
		end := sh.Offset + sh.Size
		if end > uint64(len(content)) {
			diag.Fatalf("object: %s: section %d exceeds file length", f.Name, idx)
		}
		return content[sh.Offset:end]
	}
	cstr := func(strtab []byte, off uint32) string {
		end := off
		for end < uint32(len(strtab)) && strtab[end] != 0 {
			end++
		}
		if int(off) > len(strtab) {
			return ""
		}
		return string(strtab[off:end])
	}

	dso := &DSOFile{File: f}

	for idx, sh := range shdrs {
		switch elf.SectionType(sh.Type) {
		case elf.SHT_DYNSYM:
			dynstr := bytesOf(sh.Link)
			symSize := dec.SymSize()
			n := int(sh.Size) / symSize
			body := bytesOf(uint32(idx))
			for i := 1; i < n; i++ { // skip the reserved null entry
				esym := dec.DecodeSym(body[i*symSize:])
				if esym.IsUndef() || esym.Bind() == elf.STB_LOCAL || esym.Type() == elf.STT_SECTION {
					continue
				}
				name := cstr(dynstr, esym.Name)
				if name == "" {
					continue
				}
				dso.Exports = append(dso.Exports, DSOSymbol{Name: name, Value: esym.Value, Weak: esym.IsWeak()})
			}
		case elf.SHT_DYNAMIC:
			dynstrIdx := sh.Link
			dynstr := bytesOf(dynstrIdx)
			body := bytesOf(uint32(idx))
			entSize := 16 // Elf64_Dyn: 2 x uint64; Elf32_Dyn is 2 x uint32
			if dec.Class() == elf.ELFCLASS32 {
				entSize = 8
			}
			order := dec.Order()
			for pos := 0; pos+entSize <= len(body); pos += entSize {
				var tag int64
				var val uint64
				if entSize == 16 {
					tag = int64(order.Uint64(body[pos:]))
					val = order.Uint64(body[pos+8:])
				} else {
					tag = int64(int32(order.Uint32(body[pos:])))
					val = uint64(order.Uint32(body[pos+4:]))
				}
				switch elf.DynTag(tag) {
				case elf.DT_NULL:
					pos = len(body) // stop
				case elf.DT_SONAME:
					dso.SOName = cstr(dynstr, uint32(val))
				case elf.DT_NEEDED:
					dso.Needed = append(dso.Needed, cstr(dynstr, uint32(val)))
				}
			}
		}
	}

	if dso.SOName == "" {
		dso.SOName = f.Name
	}
	return dso
}
