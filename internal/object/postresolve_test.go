package object

import (
	"testing"

	"github.com/hcyang1106/rld/internal/ehframe"
	"github.com/hcyang1106/rld/internal/sym"
)

type fakeFragment struct{ addr uint64 }

func (f *fakeFragment) FragmentAddr() uint64 { return f.addr }

func TestResolveRelocationTargetsBindsSymbolOrFragment(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)

	plain := sym.NewSymbol("plain")
	frag := &fakeFragment{addr: 0x100}
	merged := sym.NewSymbol(".rodata.str")
	merged.SectionFragment = frag

	o := &ObjectFile{
		File:    f,
		Symbols: []*sym.Symbol{plain, merged},
		Relocations: []sym.Relocation{
			{SymIdx: 0},
			{SymIdx: 1},
		},
	}

	ResolveRelocationTargets([]*ObjectFile{o})

	if o.Relocations[0].TargetSymbol != plain {
		t.Fatal("relocation against a plain symbol must bind TargetSymbol")
	}
	if o.Relocations[1].TargetFragment != frag {
		t.Fatal("relocation against a mergeable symbol must bind TargetFragment instead")
	}
	if o.Relocations[1].TargetSymbol != nil {
		t.Fatal("a fragment-bound relocation must not also carry TargetSymbol")
	}
}

func TestResolveRelocationTargetsSkipsOutOfRangeIndex(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	o := &ObjectFile{
		File:        f,
		Symbols:     []*sym.Symbol{sym.NewSymbol("only")},
		Relocations: []sym.Relocation{{SymIdx: 5}},
	}

	ResolveRelocationTargets([]*ObjectFile{o})

	if o.Relocations[0].TargetSymbol != nil || o.Relocations[0].TargetFragment != nil {
		t.Fatal("an out-of-range symbol index must be skipped, not indexed into")
	}
}

func TestDedupCIEsCanonicalizesIdenticalContent(t *testing.T) {
	f1 := sym.NewFile("a.o", 0, false, false)
	f2 := sym.NewFile("b.o", 1, false, false)

	cieA := &ehframe.CIE{Bytes: []byte{1, 2, 3, 4}}
	cieB := &ehframe.CIE{Bytes: []byte{1, 2, 3, 4}}
	cieC := &ehframe.CIE{Bytes: []byte{9, 9, 9, 9}}

	oa := &ObjectFile{File: f1, CIEs: []*ehframe.CIE{cieA}}
	ob := &ObjectFile{File: f2, CIEs: []*ehframe.CIE{cieB, cieC}}

	DedupCIEs([]*ObjectFile{oa, ob})

	if cieA.Canonical != nil {
		t.Fatal("the first CIE seen with a given identity must remain its own canonical form")
	}
	if cieB.Canonical != cieA {
		t.Fatalf("cieB.Canonical = %v, want %v (identical content to cieA)", cieB.Canonical, cieA)
	}
	if cieC.Canonical != nil {
		t.Fatal("a CIE with distinct content must not be canonicalized onto an unrelated one")
	}
}

func TestExportedSectionRootsCollectsFlaggedSymbols(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	sec := sym.NewInputSection(f, ".text.pub", sym.Shdr{}, nil)

	exported := sym.NewSymbol("public_fn")
	exported.InputSection = sec
	exported.SetFlag(sym.FlagExported)

	hidden := sym.NewSymbol("private_fn")
	hidden.InputSection = sym.NewInputSection(f, ".text.priv", sym.Shdr{}, nil)

	o := &ObjectFile{File: f, Symbols: []*sym.Symbol{exported, hidden}}

	roots := ExportedSectionRoots([]*ObjectFile{o})

	if len(roots) != 1 || roots[0] != sec {
		t.Fatalf("roots = %v, want exactly [%v]", roots, sec)
	}
}
