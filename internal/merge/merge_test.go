package merge

import (
	"sync"
	"testing"
)

func TestInsertDeduplicatesAcrossCallers(t *testing.T) {
	m := NewMergedSection(".rodata.str1.1")
	const n = 64
	var wg sync.WaitGroup
	frags := make([]*SectionFragment, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			frags[i] = m.Insert("hello\x00", 0)
		}(i)
	}
	wg.Wait()

	first := frags[0]
	for i, f := range frags {
		if f != first {
			t.Fatalf("frags[%d] = %p, want %p (all callers should get the same interned fragment)", i, f, first)
		}
	}
}

func TestInsertWidensAlignment(t *testing.T) {
	m := NewMergedSection(".rodata")
	f1 := m.Insert("abc", 0)
	f2 := m.Insert("abc", 3)
	if f1 != f2 {
		t.Fatal("re-inserting identical content must return the same fragment")
	}
	if f1.P2Align != 3 {
		t.Fatalf("P2Align = %d, want 3 (widened by second insert)", f1.P2Align)
	}
}

func TestSplitStringsIncludesTerminator(t *testing.T) {
	parent := NewMergedSection(".rodata.str1.1")
	content := []byte("hello\x00world\x00")
	m := Split(parent, content, 1, 0, true)

	if len(m.Fragments) != 2 {
		t.Fatalf("got %d fragments, want 2", len(m.Fragments))
	}
	if m.Fragments[0].Content != "hello\x00" {
		t.Fatalf("fragment[0] = %q, want %q", m.Fragments[0].Content, "hello\x00")
	}
	if m.Fragments[1].Content != "world\x00" {
		t.Fatalf("fragment[1] = %q, want %q", m.Fragments[1].Content, "world\x00")
	}
}

func TestSplitFixedSize(t *testing.T) {
	parent := NewMergedSection(".data.rel.ro")
	content := make([]byte, 16)
	for i := range content {
		content[i] = byte(i)
	}
	m := Split(parent, content, 4, 2, false)
	if len(m.Fragments) != 4 {
		t.Fatalf("got %d fragments, want 4", len(m.Fragments))
	}
}

func TestGetFragmentBinarySearch(t *testing.T) {
	parent := NewMergedSection(".rodata.str1.1")
	m := Split(parent, []byte("aaa\x00bb\x00c\x00"), 1, 0, true)
	// offsets: 0 ("aaa\0"), 4 ("bb\0"), 7 ("c\0")
	frag, delta := m.GetFragment(5)
	if frag != m.Fragments[1] || delta != 1 {
		t.Fatalf("GetFragment(5) = (%v, %d), want (fragment[1], 1)", frag, delta)
	}
}

func TestTwoObjectsSameStringMergeToOneCopy(t *testing.T) {
	// Scenario 4 from spec.md §8: two objects each contain "hello\0" in a
	// SHF_MERGE|SHF_STRINGS section; both relocations must resolve to the
	// same output address.
	parent := NewMergedSection(".rodata.str1.1")
	msecA := Split(parent, []byte("hello\x00"), 1, 0, true)
	msecB := Split(parent, []byte("hello\x00"), 1, 0, true)

	fragA, _ := msecA.GetFragment(0)
	fragB, _ := msecB.GetFragment(0)
	if fragA != fragB {
		t.Fatal("identical fragments from different objects must be the same interned handle")
	}

	fragA.SetAlive(true)
	parent.AssignOffsets()
	if fragA.FragmentAddr() != fragB.FragmentAddr() {
		t.Fatal("both relocations must resolve to the same effective address")
	}
}
