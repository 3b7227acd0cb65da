package resolve

import (
	"testing"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
	"github.com/hcyang1106/rld/internal/testutil"
)

func TestExportDynamicFlagsDefaultVisibilityDefinitions(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	o := parse(t, ctx, "a.o", 0, false, []testutil.SymSpec{
		{Name: "public_fn", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)

	cfg := config.Default()
	cfg.ExportDynamic = true
	Resolve(ctx, cfg, []*object.ObjectFile{o}, nil)

	if !ctx.GetSymbol("public_fn").HasFlag(sym.FlagExported) {
		t.Fatal("-export-dynamic must flag a default-visibility definition FlagExported")
	}
}

func TestExportDynamicSkipsUndefined(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	o := parse(t, ctx, "a.o", 0, false, []testutil.SymSpec{
		{Name: "missing", Bind: 1, Type: 2, Shndx: 0, Value: 0},
	}, 0)

	cfg := config.Default()
	cfg.ExportDynamic = true
	cfg.UnresolvedSymbols = config.UnresolvedIgnore
	Resolve(ctx, cfg, []*object.ObjectFile{o}, nil)

	if ctx.GetSymbol("missing").HasFlag(sym.FlagExported) {
		t.Fatal("-export-dynamic must never export a symbol still undefined")
	}
}

func TestBsymbolicSuppressesExportDynamic(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	o := parse(t, ctx, "a.o", 0, false, []testutil.SymSpec{
		{Name: "public_fn", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)

	cfg := config.Default()
	cfg.ExportDynamic = true
	cfg.Bsymbolic = true
	Resolve(ctx, cfg, []*object.ObjectFile{o}, nil)

	if ctx.GetSymbol("public_fn").HasFlag(sym.FlagExported) {
		t.Fatal("-Bsymbolic must suppress -export-dynamic entirely")
	}
}

func TestBsymbolicFunctionsOnlySuppressesFunctions(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	o := parse(t, ctx, "a.o", 0, false, []testutil.SymSpec{
		{Name: "public_fn", Bind: 1, Type: 2 /*STT_FUNC*/, Shndx: 2, Value: 0},
		{Name: "public_var", Bind: 1, Type: 1 /*STT_OBJECT*/, Shndx: 2, Value: 4},
	}, 0)

	cfg := config.Default()
	cfg.ExportDynamic = true
	cfg.BsymbolicFunctions = true
	Resolve(ctx, cfg, []*object.ObjectFile{o}, nil)

	if ctx.GetSymbol("public_fn").HasFlag(sym.FlagExported) {
		t.Fatal("-Bsymbolic-functions must suppress export for a function symbol")
	}
	if !ctx.GetSymbol("public_var").HasFlag(sym.FlagExported) {
		t.Fatal("-Bsymbolic-functions must still export a data symbol")
	}
}
