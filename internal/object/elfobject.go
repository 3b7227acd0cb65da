package object

import (
	"debug/elf"
	"strconv"
	"strings"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/ehframe"
	"github.com/hcyang1106/rld/internal/merge"
	"github.com/hcyang1106/rld/internal/objfmt"
	"github.com/hcyang1106/rld/internal/sym"
)

// ObjectFile is one parsed ELF relocatable object, implementing §4.C. It
// owns its sections, symbols and relocations; a global symbol's canonical
// *sym.Symbol lives in the shared Context interner instead.
type ObjectFile struct {
	*sym.File

	dec  objfmt.Decoder
	ehdr objfmt.Ehdr

	shdrs    []objfmt.Shdr
	shStrTab []byte
	symStrTab []byte

	elfSyms     []objfmt.Sym
	firstGlobal uint32

	InputSections    []*sym.InputSection    // indexed by ELF section index; nil for special sections
	MergeableSecs    []*merge.MergeableSection // indexed by ELF section index; nil unless that section was split
	Relocations      []sym.Relocation        // flat, sliced per-section via InputSection.RelBegin/RelEnd
	Symbols          []*sym.Symbol           // indexed by ELF symbol index (locals + resolved globals)
	LocalSymbols     []*sym.Symbol
	ComdatGroups     []*sym.ComdatGroup
	ComdatMembers    map[*sym.ComdatGroup][]int // section indices per group, for the comdat pass

	EhFrameSection *sym.InputSection // the raw .eh_frame section of this file, if any
	CIEs           []*ehframe.CIE
	FDEs           []*ehframe.FDE
}

// ParseObjectFile runs the full §4.C pipeline over one ELF relocatable
// object's raw bytes.
func ParseObjectFile(ctx *Context, f *sym.File, content []byte) *ObjectFile {
	dec, err := objfmt.DetectELF(content)
	if err != nil {
		diag.Fatalf("object: %s: %v", f.Name, err)
	}

	o := &ObjectFile{File: f, dec: dec}
	if len(content) < dec.EhdrSize() {
		diag.Fatalf("object: %s: file smaller than ELF header", f.Name)
	}
	o.ehdr = dec.DecodeEhdr(content)

	o.parseSectionHeaders(content)
	o.resolveShStrTab(content)
	o.parseSymTab(content)
	o.parseInputSections(ctx, content)
	o.parseRelocations(content)
	o.parseComdatGroups(ctx, content)
	o.parseSymbols(ctx)
	o.parseEhFrameSection()

	return o
}

// parseSectionHeaders decodes the section-header table, applying the two
// overflow extensions of §4.C step 1: e_shnum==0 means the real count is in
// section 0's sh_size, and e_shstrndx==SHN_XINDEX means the real shstrtab
// index is in section 0's sh_link.
func (o *ObjectFile) parseSectionHeaders(content []byte) {
	shSize := o.dec.ShdrSize()
	if int(o.ehdr.ShOff)+shSize > len(content) {
		diag.Fatalf("object: section header table out of bounds")
	}
	first := o.dec.DecodeShdr(content[o.ehdr.ShOff:])
	o.shdrs = append(o.shdrs, first)

	numSecs := uint32(o.ehdr.ShNum)
	if numSecs == 0 {
		numSecs = uint32(first.Size)
	}

	off := uint64(o.ehdr.ShOff) + uint64(shSize)
	for i := uint32(1); i < numSecs; i++ {
		if off+uint64(shSize) > uint64(len(content)) {
			diag.Fatalf("object: section header %d out of bounds", i)
		}
		o.shdrs = append(o.shdrs, o.dec.DecodeShdr(content[off:]))
		off += uint64(shSize)
	}
}

func (o *ObjectFile) resolveShStrTab(content []byte) {
	idx := uint32(o.ehdr.ShStrndx)
	if elf.SectionIndex(idx) == elf.SHN_XINDEX {
		idx = o.shdrs[0].Link
	}
	o.shStrTab = o.sectionBytes(content, idx)
}

func (o *ObjectFile) sectionBytes(content []byte, idx uint32) []byte {
	if idx >= uint32(len(o.shdrs)) {
		diag.Fatalf("object: %s: section index %d out of range", o.Name, idx)
	}
	sh := o.shdrs[idx]
	end := sh.Offset + sh.Size
	if end > uint64(len(content)) {
		diag.Fatalf("object: %s: section %d exceeds file length", o.Name, idx)
	}
	return content[sh.Offset:end]
}

func (o *ObjectFile) sectionName(idx uint32) string {
	sh := o.shdrs[idx]
	end := sh.Name
	for end < uint32(len(o.shStrTab)) && o.shStrTab[end] != 0 {
		end++
	}
	return string(o.shStrTab[sh.Name:end])
}

// parseSymTab locates SHT_SYMTAB and decodes its raw entries, per §4.C step
// 5's "first-global index comes from the symbol-table header field".
func (o *ObjectFile) parseSymTab(content []byte) {
	for i, sh := range o.shdrs {
		if elf.SectionType(sh.Type) != elf.SHT_SYMTAB {
			continue
		}
		bs := o.sectionBytes(content, uint32(i))
		n := len(bs) / o.dec.SymSize()
		o.elfSyms = make([]objfmt.Sym, n)
		for j := 0; j < n; j++ {
			o.elfSyms[j] = o.dec.DecodeSym(bs[j*o.dec.SymSize():])
		}
		o.firstGlobal = sh.Info
		o.symStrTab = o.sectionBytes(content, sh.Link)
		return
	}
}

// parseInputSections implements §4.C steps 2-4: classification,
// decompression, and mergeable-section splitting.
func (o *ObjectFile) parseInputSections(ctx *Context, content []byte) {
	o.InputSections = make([]*sym.InputSection, len(o.shdrs))
	o.MergeableSecs = make([]*merge.MergeableSection, len(o.shdrs))

	relocated := make(map[uint32]bool)
	for _, rs := range o.shdrs {
		if t := elf.SectionType(rs.Type); (t == elf.SHT_REL || t == elf.SHT_RELA) && rs.Size > 0 {
			relocated[rs.Info] = true
		}
	}

	for i, raw := range o.shdrs {
		switch elf.SectionType(raw.Type) {
		case elf.SHT_NULL, elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_REL,
			elf.SHT_RELA, elf.SHT_GROUP, elf.SHT_SYMTAB_SHNDX:
			continue // classified and handled elsewhere; not a plain content section
		}

		name := o.sectionName(uint32(i))
		body := o.sectionBytes(content, uint32(i))
		shdr := sym.Shdr{Flags: raw.Flags, Type: raw.Type, Size: raw.Size, AddrAlign: raw.AddrAlign, EntSize: raw.EntSize}

		if shdr.IsCompressed() || strings.HasPrefix(name, ".zdebug") {
			body = decompress(o.Name, name, body, shdr.IsCompressed())
			shdr.Flags &^= uint64(elf.SHF_COMPRESSED)
			shdr.Size = uint64(len(body))
		}

		sec := sym.NewInputSection(o.File, name, shdr, body)
		o.InputSections[i] = sec

		// §4.C step 4: mergeable iff MERGE set, no non-empty relocation
		// section targets it, nonzero size and entsize. A MERGE section
		// with relocations stays an ordinary input section.
		if shdr.IsMerge() && !relocated[uint32(i)] && shdr.Size > 0 && shdr.EntSize > 0 {
			merged := ctx.MergedSectionFor(name)
			msec := merge.Split(merged, body, shdr.EntSize, p2AlignOf(shdr.AddrAlign), shdr.IsMergeStrings())
			o.MergeableSecs[i] = msec
			sec.SetAlive(false)
		}
	}
}

// p2AlignOf converts a byte alignment (0 or a power of two) into its
// exponent, since SectionFragment stores alignment as a shift count.
func p2AlignOf(align uint64) uint32 {
	if align <= 1 {
		return 0
	}
	var n uint32
	for align > 1 {
		align >>= 1
		n++
	}
	return n
}

// parseRelocations attaches each REL/RELA section to its target via
// sh_info (§4.C step 6), appending into the flat Relocations array and
// recording each owning section's [begin,end) span.
func (o *ObjectFile) parseRelocations(content []byte) {
	for i, sh := range o.shdrs {
		var isRela bool
		switch elf.SectionType(sh.Type) {
		case elf.SHT_REL:
			isRela = false
		case elf.SHT_RELA:
			isRela = true
		default:
			continue
		}

		target := sh.Info
		if int(target) >= len(o.InputSections) || o.InputSections[target] == nil {
			continue
		}
		sec := o.InputSections[target]
		bs := o.sectionBytes(content, uint32(i))

		begin := len(o.Relocations)
		if isRela {
			n := len(bs) / o.dec.RelaSize()
			for j := 0; j < n; j++ {
				r := o.dec.DecodeRela(bs[j*o.dec.RelaSize():])
				o.Relocations = append(o.Relocations, sym.Relocation{Offset: r.Offset, Type: r.Type(), SymIdx: r.Sym(), Addend: r.Addend})
			}
		} else {
			n := len(bs) / o.dec.RelSize()
			for j := 0; j < n; j++ {
				r := o.dec.DecodeRel(bs[j*o.dec.RelSize():])
				o.Relocations = append(o.Relocations, sym.Relocation{Offset: r.Offset, Type: r.Type(), SymIdx: r.Sym()})
			}
		}
		sec.RelBegin, sec.RelEnd = begin, len(o.Relocations)
	}
}

// grpComdat is GRP_COMDAT, the only group-flag bit defined by the gABI;
// debug/elf doesn't export it since it only ever appears in this one word.
const grpComdat = 0x1

// parseComdatGroups reads SHT_GROUP sections: the first word is the group
// flag (GRP_COMDAT when this is a real comdat group), the remaining words
// are member section indices. An empty group is corrupt input and fatal;
// a zero flag word is a legitimate non-comdat group and is skipped; any
// other flag value is an unsupported format and fatal — the exact
// three-way split object-file.cc's initialize_sections makes (empty ->
// Fatal, ==0 -> continue, !=GRP_COMDAT -> Fatal), not a bitwise test of
// the GRP_COMDAT bit. Groups are interned through ctx.ComdatGroupFor so
// that two files declaring the same signature race for ownership of the
// very same *sym.ComdatGroup, matching how Context.MergedSectionFor
// interns fragments across files — a per-file group would let every file
// trivially "win" its own private copy and comdat.Run would never
// actually kill a duplicate section.
func (o *ObjectFile) parseComdatGroups(ctx *Context, content []byte) {
	o.ComdatMembers = make(map[*sym.ComdatGroup][]int)

	for i, sh := range o.shdrs {
		if elf.SectionType(sh.Type) != elf.SHT_GROUP {
			continue
		}
		bs := o.sectionBytes(content, uint32(i))
		if len(bs) < 4 {
			diag.Fatalf("object: %s: empty SHT_GROUP", o.Name)
		}
		flag := o.dec.Order().Uint32(bs[0:4])
		if flag == 0 {
			continue
		}
		if flag != grpComdat {
			diag.Fatalf("object: %s: unsupported SHT_GROUP format", o.Name)
		}

		// The group signature is the name of the symbol at sh_info in the
		// linked symbol table (sh_link), resolved once the symbol table
		// itself has been decoded, so here we key on the file-relative
		// name string of that symbol's own name offset directly.
		sigName := o.symbolNameAt(sh.Info)
		group := ctx.ComdatGroupFor(sigName)
		o.ComdatGroups = append(o.ComdatGroups, group)

		var members []int
		for off := 4; off+4 <= len(bs); off += 4 {
			members = append(members, int(o.dec.Order().Uint32(bs[off:])))
		}
		o.ComdatMembers[group] = members
	}
}

// symbolNameAt reads a symbol's name from the raw table before Symbols has
// been populated, used only to resolve a comdat group's signature symbol.
func (o *ObjectFile) symbolNameAt(idx uint32) string {
	if int(idx) >= len(o.elfSyms) {
		return ""
	}
	return elfStrTabName(o.symStrTab, o.elfSyms[idx].Name)
}

func elfStrTabName(strTab []byte, offset uint32) string {
	if offset >= uint32(len(strTab)) {
		return ""
	}
	end := offset
	for end < uint32(len(strTab)) && strTab[end] != 0 {
		end++
	}
	return string(strTab[offset:end])
}

// parseSymbols implements §4.C step 5: local symbols get their own private
// *sym.Symbol, global symbols are handed to the shared interner. Version
// suffixes ("@version" / "@@version") are split off the name before
// interning; actual rank-based resolution (which candidate wins) is
// internal/resolve's job, not the parser's.
func (o *ObjectFile) parseSymbols(ctx *Context) {
	o.Symbols = make([]*sym.Symbol, len(o.elfSyms))
	o.LocalSymbols = make([]*sym.Symbol, 0, o.firstGlobal)

	for i, esym := range o.elfSyms {
		if i == 0 {
			// index 0 is the reserved null symbol
			s := sym.NewSymbol("")
			o.Symbols[i] = s
			o.LocalSymbols = append(o.LocalSymbols, s)
			continue
		}

		rawName := elfStrTabName(o.symStrTab, esym.Name)
		name, _, _ := splitVersionSuffix(rawName)

		var s *sym.Symbol
		if uint32(i) < o.firstGlobal {
			s = sym.NewSymbol(name)
			o.LocalSymbols = append(o.LocalSymbols, s)
		} else {
			s = ctx.GetSymbol(name)
		}
		o.Symbols[i] = s

		if !esym.IsAbs() && !esym.IsUndef() && !esym.IsCommon() {
			shndx := uint32(esym.Shndx)
			if int(shndx) < len(o.InputSections) {
				if msec := o.MergeableSecs[shndx]; msec != nil {
					if frag, delta := msec.GetFragment(esym.Value); frag != nil {
						// Local symbols keep a private binding; globals still
						// route through TryResolve in internal/resolve, which
						// reads InputSections/MergeableSecs directly rather
						// than duplicating that lookup here.
						if uint32(i) < o.firstGlobal {
							s.SectionFragment = frag
							s.Value = delta
						}
					}
				} else if sec := o.InputSections[shndx]; sec != nil && uint32(i) < o.firstGlobal {
					s.InputSection = sec
					s.Value = esym.Value
				}
			}
		} else if uint32(i) < o.firstGlobal {
			s.Value = esym.Value
		}
	}
}

// splitVersionSuffix implements the "@"/"@@" version-suffix rule of §4.C
// step 5: a name containing "@@version" carries a default version; a name
// containing a single "@version" carries a non-default one.
func splitVersionSuffix(name string) (base, version string, isDefault bool) {
	if idx := strings.Index(name, "@@"); idx >= 0 {
		return name[:idx], name[idx+2:], true
	}
	if idx := strings.Index(name, "@"); idx >= 0 {
		return name[:idx], name[idx+1:], false
	}
	return name, "", false
}

// parseEhFrameSection locates the raw .eh_frame section (if any), walks it
// via internal/ehframe, and marks it not-alive per §4.C step 7 — its bytes
// flow to the output through the CIE/FDE tables instead.
func (o *ObjectFile) parseEhFrameSection() {
	for _, sec := range o.InputSections {
		if sec == nil || sec.Name != ".eh_frame" {
			continue
		}
		sec.IsEhFrame = true
		sec.SetAlive(false)
		o.EhFrameSection = sec

		relocs := o.Relocations[sec.RelBegin:sec.RelEnd]
		o.CIEs, o.FDEs = ehframe.Parse(o.Name, sec.Content, relocs)
		ehframe.LinkCIEs(o.CIEs, o.FDEs, func(idx uint32) *sym.Symbol {
			if int(idx) >= len(o.Symbols) {
				return nil
			}
			return o.Symbols[idx]
		})
		return
	}
}

// EhFrameSectionIndex reports the ELF section index of this file's raw
// .eh_frame section content, or -1 if it has none.
func (o *ObjectFile) EhFrameSectionIndex() int {
	for i, sec := range o.InputSections {
		if sec == o.EhFrameSection && sec != nil {
			return i
		}
	}
	return -1
}

// Ehdr exposes the decoded ELF header for callers that need the entry
// point or machine type.
func (o *ObjectFile) Ehdr() objfmt.Ehdr { return o.ehdr }

// FirstGlobal exposes the symbol-table's local/global boundary index.
func (o *ObjectFile) FirstGlobal() uint32 { return o.firstGlobal }

// SectionCount returns the number of ELF section-header entries parsed.
func (o *ObjectFile) SectionCount() int { return len(o.shdrs) }

// NumSymbols returns the length of the raw ELF symbol table.
func (o *ObjectFile) NumSymbols() int { return len(o.elfSyms) }

// ElfSym exposes one raw decoded symbol-table entry, for the resolver's
// rank computation.
func (o *ObjectFile) ElfSym(i int) objfmt.Sym { return o.elfSyms[i] }

// SectionOf returns the input section a symbol's section index resolves
// to, or nil for special indices (absolute, undefined, common) or a
// mergeable one.
func (o *ObjectFile) SectionOf(esym objfmt.Sym) *sym.InputSection {
	if esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
		return nil
	}
	idx := uint32(esym.Shndx)
	if int(idx) >= len(o.InputSections) {
		return nil
	}
	return o.InputSections[idx]
}

// FragmentOf returns the mergeable fragment (and residual delta) that a
// symbol's value resolves to, if its section was split into fragments.
func (o *ObjectFile) FragmentOf(esym objfmt.Sym) (*merge.SectionFragment, uint64) {
	if esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
		return nil, 0
	}
	idx := uint32(esym.Shndx)
	if int(idx) >= len(o.MergeableSecs) || o.MergeableSecs[idx] == nil {
		return nil, 0
	}
	return o.MergeableSecs[idx].GetFragment(esym.Value)
}

// ArrayPriority exposes parseArrayPriority for the output composer's
// init/fini ordering pass (§4.H).
func ArrayPriority(name string) int { return parseArrayPriority(name) }

// parseArrayPriority extracts the numeric suffix of a ".init_array.N" /
// ".fini_array.N" section name for §4.H's init/fini ordering; sections
// with no numeric suffix rank last (65536), matching the spec's default.
func parseArrayPriority(name string) int {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return 65536
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 65536
	}
	return n
}
