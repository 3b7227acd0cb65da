package resolve

import (
	"strings"
	"testing"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/testutil"
)

func TestDuplicateStrongDefinitionIsReported(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	a := parse(t, ctx, "a.o", 0, false, []testutil.SymSpec{
		{Name: "foo", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)
	b := parse(t, ctx, "b.o", 1, false, []testutil.SymSpec{
		{Name: "foo", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)

	Resolve(ctx, config.Default(), []*object.ObjectFile{a, b}, nil)

	if !ctx.Errors.HasErrors() {
		t.Fatal("two strong definitions of foo must be reported as a duplicate symbol error")
	}
	found := false
	for _, msg := range ctx.Errors.Messages() {
		if strings.Contains(msg, "duplicate symbol") && strings.Contains(msg, "foo") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a duplicate symbol message naming foo, got %v", ctx.Errors.Messages())
	}
}

func TestNoDuplicateWhenOneDefinitionIsWeak(t *testing.T) {
	ctx := object.NewContext(diag.NewErrors(false))
	a := parse(t, ctx, "a.o", 0, false, []testutil.SymSpec{
		{Name: "foo", Bind: 1, Type: 2, Shndx: 2, Value: 0},
	}, 0)
	b := parse(t, ctx, "b.o", 1, false, []testutil.SymSpec{
		{Name: "foo", Bind: 2, Type: 2, Shndx: 2, Value: 4},
	}, 0)

	Resolve(ctx, config.Default(), []*object.ObjectFile{a, b}, nil)

	if ctx.Errors.HasErrors() {
		t.Fatalf("a weak definition losing to a strong one is not a duplicate, got %v", ctx.Errors.Messages())
	}
}
