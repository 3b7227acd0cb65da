package intern

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrCreateSingleFlight(t *testing.T) {
	table := New[int](64)
	var created atomic.Int32

	const goroutines = 64
	var wg sync.WaitGroup
	results := make([]int, goroutines)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			v, _ := table.GetOrCreate("shared-key", func() int {
				return int(created.Add(1))
			})
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Fatalf("create() called %d times, want exactly 1", got)
	}
	for i, v := range results {
		if v != 1 {
			t.Fatalf("results[%d] = %d, want 1 (single winner's value)", i, v)
		}
	}
}

func TestGetOrCreateDistinctKeys(t *testing.T) {
	table := New[string](4096)
	const n = 5000
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("sym_%d", i)
			v, existed := table.GetOrCreate(key, func() string { return key })
			if existed {
				t.Errorf("key %q reported existed on first insertion", key)
			}
			if v != key {
				t.Errorf("GetOrCreate(%q) = %q", key, v)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	table.Each(func(string, string) { count++ })
	if count != n {
		t.Fatalf("Each visited %d entries, want %d", count, n)
	}
}

func TestLookupMissing(t *testing.T) {
	table := New[int](16)
	if _, ok := table.Lookup("nope"); ok {
		t.Fatal("Lookup found a key that was never inserted")
	}
}

func TestDeleteThenLookup(t *testing.T) {
	table := New[int](16)
	table.GetOrCreate("foo", func() int { return 1 })
	table.Delete("foo")
	if _, ok := table.Lookup("foo"); ok {
		t.Fatal("key still present after Delete")
	}
	v, existed := table.GetOrCreate("foo", func() int { return 2 })
	if existed {
		t.Fatal("recreated key reported existed")
	}
	if v != 2 {
		t.Fatalf("v = %d, want 2", v)
	}
}
