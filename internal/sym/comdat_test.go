package sym

import (
	"sync"
	"testing"
)

func TestComdatClaimOwnershipMinWins(t *testing.T) {
	g := NewComdatGroup("_ZN1XIiE3fooEv")
	priorities := []int64{7, 2, 9, 5, 2}
	var wg sync.WaitGroup
	wg.Add(len(priorities))
	for _, p := range priorities {
		go func(p int64) {
			defer wg.Done()
			g.ClaimOwnership(p)
		}(p)
	}
	wg.Wait()

	if g.Owner() != 2 {
		t.Fatalf("Owner() = %d, want 2 (minimum priority)", g.Owner())
	}
	if !g.IsOwner(2) {
		t.Fatal("IsOwner(2) should be true")
	}
	if g.IsOwner(5) {
		t.Fatal("IsOwner(5) should be false")
	}
}
