package object

import (
	"testing"

	"github.com/hcyang1106/rld/internal/diag"
)

func TestComdatGroupForInternsBySignature(t *testing.T) {
	ctx := NewContext(diag.NewErrors(false))

	a := ctx.ComdatGroupFor("_ZTIfoo")
	b := ctx.ComdatGroupFor("_ZTIfoo")
	if a != b {
		t.Fatal("two files declaring the same comdat signature must race for the same *sym.ComdatGroup")
	}

	other := ctx.ComdatGroupFor("_ZTIbar")
	if other == a {
		t.Fatal("distinct signatures must not share a group")
	}
}
