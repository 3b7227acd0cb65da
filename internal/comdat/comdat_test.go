package comdat

import (
	"testing"

	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
)

// TestLowestPriorityFileOwnsGroup exercises Run's CAS race directly on a
// single shared *sym.ComdatGroup. In a real link the two files never
// allocate their own group objects: object.Context.ComdatGroupFor interns
// by signature so both files' parseComdatGroups calls resolve to this
// same instance (see object.TestComdatGroupForInternsBySignature), which
// is the precondition this test assumes rather than reconstructs.
func TestLowestPriorityFileOwnsGroup(t *testing.T) {
	group := sym.NewComdatGroup("_ZTIfoo")

	fileA := sym.NewFile("a.o", 5, false, false)
	fileB := sym.NewFile("b.o", 1, false, false) // lower priority number wins

	memberA := sym.NewInputSection(fileA, ".gnu.linkonce.t.foo", sym.Shdr{}, nil)
	memberB := sym.NewInputSection(fileB, ".gnu.linkonce.t.foo", sym.Shdr{}, nil)

	objA := &object.ObjectFile{
		File:          fileA,
		InputSections: []*sym.InputSection{memberA},
		ComdatGroups:  []*sym.ComdatGroup{group},
		ComdatMembers: map[*sym.ComdatGroup][]int{group: {0}},
	}
	objB := &object.ObjectFile{
		File:          fileB,
		InputSections: []*sym.InputSection{memberB},
		ComdatGroups:  []*sym.ComdatGroup{group},
		ComdatMembers: map[*sym.ComdatGroup][]int{group: {0}},
	}

	Run([]*object.ObjectFile{objA, objB})

	if memberB.KilledByComdat {
		t.Fatal("the lowest-priority file's own members must survive")
	}
	if !memberA.KilledByComdat {
		t.Fatal("a losing file's group members must be killed")
	}
	if group.Owner() != 1 {
		t.Fatalf("group owner = %d, want 1 (b.o's priority)", group.Owner())
	}
}
