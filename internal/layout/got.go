package layout

import (
	"debug/elf"

	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
)

// ScanGotRelocations implements the x86-64 half of dongAxis-rvld's ScanRels
// pattern: walk every alive object's relocations and flag any target symbol
// that needs a GOT or GOT-TP slot, using this ISA's own PC-relative GOT
// access forms in place of dongAxis-rvld's RISC-V HI20 pair. GOTPCRELX and
// REX_GOTPCRELX are the linker-relaxable encodings of GOTPCREL emitted by
// modern assemblers; TLSGD/TLSLD each need a two-slot module-ID/offset pair,
// which this module still tracks as a single FlagNeedsGot slot since the
// output composer's byte emission (where the second slot's contents would
// differ) stays out of scope here same as CollectGotSlots's own boundary.
func ScanGotRelocations(objects []*object.ObjectFile) {
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for i := range o.Relocations {
			r := &o.Relocations[i]
			if r.TargetSymbol == nil {
				continue
			}
			switch elf.R_X86_64(r.Type) {
			case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX,
				elf.R_X86_64_GOT32, elf.R_X86_64_GOTPCREL64, elf.R_X86_64_GOT64,
				elf.R_X86_64_TLSGD, elf.R_X86_64_TLSLD:
				r.TargetSymbol.SetFlag(sym.FlagNeedsGot)
			case elf.R_X86_64_GOTTPOFF:
				r.TargetSymbol.SetFlag(sym.FlagNeedsGotTP)
			}
		}
	}
}

// GotSection is the synthetic .got output chunk: one 8-byte slot per
// distinct symbol flagged FlagNeedsGot, followed by one per symbol flagged
// FlagNeedsGotTP, mirroring OutputGotSectionWriter's split between its
// GotTLSSyms slot area and the earlier plain-GOT slots. It implements
// Chunker so it rides through Sort/AssignAddresses/AddSyntheticSymbols
// alongside every regular OutputSection; CopyBuf (the byte-emission
// method that writes each slot's TP-relative offset) is deliberately not
// reproduced, matching this module's output-composition boundary.
type GotSection struct {
	Name string
	Shdr sym.Shdr

	GotSyms   []*sym.Symbol
	GotTPSyms []*sym.Symbol

	addr, offset, size, align uint64
}

func newGotSection() *GotSection {
	g := &GotSection{Name: ".got", align: 8}
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	return g
}

func (g *GotSection) ChunkName() string  { return g.Name }
func (g *GotSection) GetShdr() *sym.Shdr { return &g.Shdr }
func (g *GotSection) Addr() uint64       { return g.addr }
func (g *GotSection) SetAddr(v uint64)   { g.addr = v }
func (g *GotSection) Offset() uint64     { return g.offset }
func (g *GotSection) SetOffset(v uint64) { g.offset = v }
func (g *GotSection) Size() uint64       { return g.size }
func (g *GotSection) Align() uint64      { return g.align }

// AddGotSymbol assigns s the next plain GOT slot, growing the section by
// one 8-byte entry. A symbol already holding a slot is left alone, since a
// symbol can be referenced by GOT-needing relocations from many files.
func (g *GotSection) AddGotSymbol(s *sym.Symbol) {
	if s.GotIndex >= 0 {
		return
	}
	s.GotIndex = len(g.GotSyms)
	g.GotSyms = append(g.GotSyms, s)
	g.size += 8
	g.Shdr.Size = g.size
}

// AddGotTPSymbol assigns s the next TP (thread-pointer-relative) GOT slot,
// tracked in its own index space from the plain GOT slots per §4.I's TLS
// access model.
func (g *GotSection) AddGotTPSymbol(s *sym.Symbol) {
	if s.GotTPIndex >= 0 {
		return
	}
	s.GotTPIndex = len(g.GotTPSyms)
	g.GotTPSyms = append(g.GotTPSyms, s)
	g.size += 8
	g.Shdr.Size = g.size
}

// CollectGotSlots implements dongAxis-rvld's ScanRels driver: walk every
// alive object's symbol table in file-priority then symbol-table order
// (the same declaration order dongAxis-rvld's own per-file loop walks),
// and for every symbol this file owns (sym.File == the walking file,
// dongAxis-rvld's own ownership dedup so a symbol defined in file A but
// referenced from B is only assigned once, when its owner is visited)
// that carries FlagNeedsGot/FlagNeedsGotTP, assign it a slot. Returns nil
// if no symbol in the link needs a GOT, so callers can skip adding a .got
// chunk to the layout entirely.
func CollectGotSlots(objects []*object.ObjectFile) *GotSection {
	var got *GotSection
	ensure := func() *GotSection {
		if got == nil {
			got = newGotSection()
		}
		return got
	}

	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, s := range o.Symbols {
			if s == nil || s.File != o.File {
				continue
			}
			if s.HasFlag(sym.FlagNeedsGot) {
				ensure().AddGotSymbol(s)
			}
			if s.HasFlag(sym.FlagNeedsGotTP) {
				ensure().AddGotTPSymbol(s)
			}
		}
	}
	return got
}
