package resolve

import (
	"testing"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
	"github.com/hcyang1106/rld/internal/testutil"
)

func parse(t *testing.T, ctx *object.Context, name string, priority int64, isInLib bool, syms []testutil.SymSpec, firstGlobal int) *object.ObjectFile {
	t.Helper()
	content := testutil.ELFObject([]byte{0x90, 0x90, 0x90, 0x90}, syms, firstGlobal)
	f := sym.NewFile(name, priority, isInLib, false)
	return object.ParseObjectFile(ctx, f, content)
}

func TestStrongBeatsWeak(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	strong := parse(t, ctx, "strong.o", 0, false, []testutil.SymSpec{
		{Name: "foo", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)
	weak := parse(t, ctx, "weak.o", 1, false, []testutil.SymSpec{
		{Name: "foo", Bind: 2, Type: 2, Shndx: 2, Value: 4},
	}, 0)

	Resolve(ctx, config.Default(), []*object.ObjectFile{strong, weak}, nil)

	foo := ctx.GetSymbol("foo")
	if foo.File != strong.File {
		t.Fatalf("strong definition should win regardless of file order, got file=%v", foo.File)
	}
}

func TestLazyArchiveBeatsCommon(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	common := parse(t, ctx, "common.o", 0, false, []testutil.SymSpec{
		{Name: "bar", Bind: 1, Type: 1, Common: true, Value: 4},
	}, 0)
	archived := parse(t, ctx, "libbar.a(bar.o)", 1, true, []testutil.SymSpec{
		{Name: "bar", Bind: 1, Type: 1, Shndx: 2, Value: 0},
	}, 0)

	Resolve(ctx, config.Default(), []*object.ObjectFile{common, archived}, nil)

	bar := ctx.GetSymbol("bar")
	if bar.File != archived.File {
		t.Fatalf("an archive member's real definition should outrank an active file's common symbol, got file=%v", bar.File)
	}
}

func TestArchiveLivenessPullsInMember(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	main := parse(t, ctx, "main.o", 0, false, []testutil.SymSpec{
		{Name: "helper", Bind: 1, Type: 2, Shndx: 0, Value: 0}, // SHN_UNDEF: strong undefined reference
	}, 0)
	lib := parse(t, ctx, "libhelper.a(helper.o)", 1, true, []testutil.SymSpec{
		{Name: "helper", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)

	if lib.IsAlive() {
		t.Fatal("archive member must start dead")
	}

	Resolve(ctx, config.Default(), []*object.ObjectFile{main, lib}, nil)

	if !lib.IsAlive() {
		t.Fatal("main.o's strong undefined reference to helper should have pulled in the archive member")
	}
}

func TestUnresolvedErrorPolicyRecordsError(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	main := parse(t, ctx, "main.o", 0, false, []testutil.SymSpec{
		{Name: "missing", Bind: 1, Type: 2, Shndx: 0, Value: 0},
	}, 0)

	Resolve(ctx, config.Default(), []*object.ObjectFile{main}, nil)

	if !ctx.Errors.HasErrors() {
		t.Fatal("an unresolved strong reference under the default ERROR policy should record an error")
	}
}
