package object_test

import (
	"testing"

	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
	"github.com/hcyang1106/rld/internal/testutil"
)

func TestParseDSO(t *testing.T) {
	content := testutil.DSOObject("libfoo.so.1", []testutil.DSOSymSpec{
		{Name: "foo_init", Value: 0x1000},
		{Name: "foo_weak_hook", Value: 0x2000, Weak: true},
	})

	if !object.IsSharedObject(content) {
		t.Fatal("DSOObject output should be detected as a shared object")
	}

	f := sym.NewFile("libfoo.so", 0, false, true)
	dso := object.ParseDSO(f, content)

	if dso.SOName != "libfoo.so.1" {
		t.Errorf("SOName = %q, want %q", dso.SOName, "libfoo.so.1")
	}
	if len(dso.Exports) != 2 {
		t.Fatalf("got %d exports, want 2", len(dso.Exports))
	}
	byName := make(map[string]object.DSOSymbol, len(dso.Exports))
	for _, e := range dso.Exports {
		byName[e.Name] = e
	}
	if got := byName["foo_init"]; got.Value != 0x1000 || got.Weak {
		t.Errorf("foo_init = %+v, want value 0x1000 non-weak", got)
	}
	if got := byName["foo_weak_hook"]; got.Value != 0x2000 || !got.Weak {
		t.Errorf("foo_weak_hook = %+v, want value 0x2000 weak", got)
	}
}

func TestIsSharedObjectRejectsRelocatable(t *testing.T) {
	content := testutil.ELFObject([]byte{0x90}, nil, 0)
	if object.IsSharedObject(content) {
		t.Fatal("an ET_REL object must not be classified as a shared object")
	}
}
