package layout

import (
	"debug/elf"
	"testing"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
)

func TestCheckRelocationRangesWarnsOnOverflow(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	sec := sym.NewInputSection(f, ".text", sym.Shdr{Flags: 0x2 /*SHF_ALLOC*/}, nil)
	sec.Offset = 0 // this section's own assigned address
	sec.RelBegin, sec.RelEnd = 0, 1

	far := sym.NewSymbol("far_away")
	far.Value = 1 << 40 // far beyond any 32-bit PC-relative reach

	o := &object.ObjectFile{
		File:          f,
		InputSections: []*sym.InputSection{sec},
		Relocations: []sym.Relocation{
			{Type: uint32(elf.R_X86_64_PC32), TargetSymbol: far},
		},
	}

	errs := diag.NewErrors(false)
	CheckRelocationRanges([]*object.ObjectFile{o}, errs)

	if len(errs.Warnings()) != 1 {
		t.Fatalf("warnings = %d, want 1", len(errs.Warnings()))
	}
}

func TestCheckRelocationRangesSilentInRange(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	sec := sym.NewInputSection(f, ".text", sym.Shdr{Flags: 0x2}, nil)
	sec.Offset = 0x1000
	sec.RelBegin, sec.RelEnd = 0, 1

	near := sym.NewSymbol("near")
	near.Value = 0x2000

	o := &object.ObjectFile{
		File:          f,
		InputSections: []*sym.InputSection{sec},
		Relocations: []sym.Relocation{
			{Type: uint32(elf.R_X86_64_PC32), TargetSymbol: near},
		},
	}

	errs := diag.NewErrors(false)
	CheckRelocationRanges([]*object.ObjectFile{o}, errs)

	if len(errs.Warnings()) != 0 {
		t.Fatalf("warnings = %v, want none for an in-range displacement", errs.Warnings())
	}
}
