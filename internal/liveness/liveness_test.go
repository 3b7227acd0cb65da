package liveness

import (
	"testing"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
)

func newAllocSection(f *sym.File, name string) *sym.InputSection {
	return sym.NewInputSection(f, name, sym.Shdr{Flags: 0x2 /*SHF_ALLOC*/}, nil)
}

func TestSectionGCSweepsUnreachableSection(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)

	entry := newAllocSection(f, ".text.main")
	dead := newAllocSection(f, ".text.dead")
	reached := newAllocSection(f, ".text.reached")

	entrySym := sym.NewSymbol("_start")
	entrySym.InputSection = entry

	// entry -> reached via a relocation edge.
	entry.RelBegin, entry.RelEnd = 0, 1

	o := &object.ObjectFile{
		File:          f,
		InputSections: []*sym.InputSection{entry, dead, reached},
		Relocations: []sym.Relocation{
			{TargetSymbol: &sym.Symbol{InputSection: reached}},
		},
	}

	cfg := config.Default()
	cfg.GCSections = true

	RunSectionGC(cfg, []*object.ObjectFile{o}, []*sym.Symbol{entrySym})

	if !entry.IsAlive() {
		t.Fatal("root section must remain alive")
	}
	if !reached.IsAlive() {
		t.Fatal("section reached via a relocation edge must remain alive")
	}
	if dead.IsAlive() {
		t.Fatal("unreachable section must be swept")
	}
}

func TestSectionGCDisabledKeepsEverything(t *testing.T) {
	f := sym.NewFile("a.o", 0, false, false)
	sec := newAllocSection(f, ".text.unreached")
	o := &object.ObjectFile{File: f, InputSections: []*sym.InputSection{sec}}

	RunSectionGC(config.Default(), []*object.ObjectFile{o}, nil)

	if !sec.IsAlive() {
		t.Fatal("gc_sections disabled must never kill a section")
	}
}

func TestIsCIdentifier(t *testing.T) {
	cases := map[string]bool{
		"my_section": true,
		"_leading":   true,
		"9leading":   false,
		"has-dash":   false,
		"":           false,
	}
	for name, want := range cases {
		if got := sym.IsCIdentifierName(name); got != want {
			t.Errorf("IsCIdentifierName(%q) = %v, want %v", name, got, want)
		}
	}
}
