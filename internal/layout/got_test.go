package layout

import (
	"debug/elf"
	"testing"

	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
)

func TestScanGotRelocationsFlagsTarget(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	target := sym.NewSymbol("errno")

	o := &object.ObjectFile{
		File: f,
		Relocations: []sym.Relocation{
			{Type: uint32(elf.R_X86_64_GOTPCREL), TargetSymbol: target},
		},
	}

	ScanGotRelocations([]*object.ObjectFile{o})

	if !target.HasFlag(sym.FlagNeedsGot) {
		t.Fatal("GOTPCREL relocation must flag its target FlagNeedsGot")
	}
	if target.HasFlag(sym.FlagNeedsGotTP) {
		t.Fatal("a plain GOT reference must not also set FlagNeedsGotTP")
	}
}

func TestScanGotRelocationsFlagsTPTarget(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	target := sym.NewSymbol("tls_var")

	o := &object.ObjectFile{
		File: f,
		Relocations: []sym.Relocation{
			{Type: uint32(elf.R_X86_64_GOTTPOFF), TargetSymbol: target},
		},
	}

	ScanGotRelocations([]*object.ObjectFile{o})

	if !target.HasFlag(sym.FlagNeedsGotTP) {
		t.Fatal("GOTTPOFF relocation must flag its target FlagNeedsGotTP")
	}
}

func TestCollectGotSlotsAssignsDeterministicIndices(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)

	a := sym.NewSymbol("a")
	a.File = f
	a.SetFlag(sym.FlagNeedsGot)

	b := sym.NewSymbol("b")
	b.File = f
	b.SetFlag(sym.FlagNeedsGotTP)

	o := &object.ObjectFile{File: f, Symbols: []*sym.Symbol{a, b}}

	got := CollectGotSlots([]*object.ObjectFile{o})
	if got == nil {
		t.Fatal("expected a GotSection when a symbol needs a slot")
	}
	if a.GotIndex != 0 {
		t.Fatalf("a.GotIndex = %d, want 0", a.GotIndex)
	}
	if b.GotTPIndex != 0 {
		t.Fatalf("b.GotTPIndex = %d, want 0", b.GotTPIndex)
	}
	if got.Size() != 16 {
		t.Fatalf("got section size = %d, want 16 (one plain + one TP slot)", got.Size())
	}
}

func TestCollectGotSlotsNilWhenUnneeded(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	s := sym.NewSymbol("plain")
	s.File = f
	o := &object.ObjectFile{File: f, Symbols: []*sym.Symbol{s}}

	if got := CollectGotSlots([]*object.ObjectFile{o}); got != nil {
		t.Fatal("no symbol needs a GOT slot; CollectGotSlots must return nil")
	}
}

func TestGotSectionImplementsChunker(t *testing.T) {
	var _ Chunker = (*GotSection)(nil)
}
