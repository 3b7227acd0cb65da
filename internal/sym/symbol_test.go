package sym

import (
	"sync"
	"testing"
)

func TestTryResolveKeepsBestRank(t *testing.T) {
	s := NewSymbol("foo")
	fileA := NewFile("a.o", 2, false, false)
	fileB := NewFile("b.o", 5, false, false)

	// Weak in A (rank 2) first.
	won := s.TryResolve(Priority(RankWeakRegular, fileA.Priority), func(sym *Symbol) {
		sym.File = fileA
	})
	if !won {
		t.Fatal("first candidate should always win")
	}

	// Strong in B (rank 1) should beat weak-in-A even though B has worse priority.
	won = s.TryResolve(Priority(RankStrongRegular, fileB.Priority), func(sym *Symbol) {
		sym.File = fileB
	})
	if !won {
		t.Fatal("strong definition should beat weak definition regardless of file priority")
	}
	if s.File != fileB {
		t.Fatalf("File = %v, want fileB", s.File)
	}

	// A second weak candidate must not displace the strong winner.
	fileC := NewFile("c.o", 1, false, false)
	won = s.TryResolve(Priority(RankWeakRegular, fileC.Priority), func(sym *Symbol) {
		sym.File = fileC
	})
	if won {
		t.Fatal("weak candidate must not beat an installed strong definition")
	}
	if s.File != fileB {
		t.Fatalf("File = %v, want to remain fileB", s.File)
	}
}

func TestTryResolveTieBrokenByPriority(t *testing.T) {
	s := NewSymbol("foo")
	fileHigh := NewFile("high.o", 2, false, false) // lower number = higher precedence
	fileLow := NewFile("low.o", 9, false, false)

	s.TryResolve(Priority(RankStrongRegular, fileLow.Priority), func(sym *Symbol) { sym.File = fileLow })
	won := s.TryResolve(Priority(RankStrongRegular, fileHigh.Priority), func(sym *Symbol) { sym.File = fileHigh })
	if !won {
		t.Fatal("same rank but better (lower) file priority should win")
	}
	if s.File != fileHigh {
		t.Fatalf("File = %v, want fileHigh", s.File)
	}
}

func TestTryResolveConcurrentSingleWinner(t *testing.T) {
	s := NewSymbol("race")
	const n = 200
	var wg sync.WaitGroup
	wins := make([]bool, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			wins[i] = s.TryResolve(Priority(RankStrongRegular, int64(i)), func(sym *Symbol) {
				sym.SymIdx = int64(i)
			})
		}(i)
	}
	wg.Wait()

	// The lowest priority (0) must be the final, and thus overall, winner.
	if s.SymIdx != 0 {
		t.Fatalf("SymIdx = %d, want 0 (lowest file priority)", s.SymIdx)
	}
}

func TestVisibilityMergeStricterWins(t *testing.T) {
	s := NewSymbol("v")
	s.Visibility = VisDefault
	s.MergeVisibility(VisProtected)
	if s.Visibility != VisProtected {
		t.Fatalf("Visibility = %v, want Protected", s.Visibility)
	}
	s.MergeVisibility(VisHidden)
	if s.Visibility != VisHidden {
		t.Fatalf("Visibility = %v, want Hidden", s.Visibility)
	}
	s.MergeVisibility(VisDefault)
	if s.Visibility != VisHidden {
		t.Fatal("hidden must not be overridden by a later default visibility")
	}
}

func TestVisibilityInternalCanonicalizesToHidden(t *testing.T) {
	if got := VisInternal.Canonical(); got != VisHidden {
		t.Fatalf("Internal.Canonical() = %v, want Hidden", got)
	}
}

func TestFileMarkAliveOnlyFlipsOnce(t *testing.T) {
	f := NewFile("lib.a(foo.o)", 3, true, false)
	if f.IsAlive() {
		t.Fatal("archive member should start dead")
	}
	if !f.MarkAlive() {
		t.Fatal("first MarkAlive should report the flip")
	}
	if f.MarkAlive() {
		t.Fatal("second MarkAlive should not report a flip")
	}
}
