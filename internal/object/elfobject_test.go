package object

import (
	"testing"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/sym"
	"github.com/hcyang1106/rld/internal/testutil"
)

func TestParseObjectFileBasics(t *testing.T) {
	content := testutil.ELFObject([]byte{0x90, 0x90, 0x90, 0x90}, []testutil.SymSpec{
		{Name: "local_helper", Bind: 0, Type: 2, Shndx: 2, Value: 0},
		{Name: "main", Bind: 1, Type: 2, Shndx: 2, Value: 2}, // global; parseSymbols leaves binding to internal/resolve
	}, 1)

	ctx := NewContext(diag.NewErrors(false))
	f := sym.NewFile("t.o", 0, false, false)
	o := ParseObjectFile(ctx, f, content)

	if o.SectionCount() != 5 {
		t.Fatalf("SectionCount = %d, want 5", o.SectionCount())
	}
	if o.NumSymbols() != 3 { // null + local + global
		t.Fatalf("NumSymbols = %d, want 3", o.NumSymbols())
	}
	if o.FirstGlobal() != 2 {
		t.Fatalf("FirstGlobal = %d, want 2", o.FirstGlobal())
	}

	local := o.LocalSymbols[1]
	if local.Name != "local_helper" || local.InputSection == nil {
		t.Fatalf("local_helper not bound to its section: %+v", local)
	}

	global := ctx.GetSymbol("main")
	if global.IsUndefined() == false {
		// parseSymbols alone never resolves globals; that's internal/resolve's job.
		t.Fatalf("global symbol should still be undefined before resolution runs")
	}
}
