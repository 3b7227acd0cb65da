// Package intern implements the concurrent string interner (component A):
// an open-addressed hash table divided into fixed-size shards, where a slot
// is one of empty / locked / present. Exactly one goroutine wins the race
// to populate any given key; every other caller either observes the
// completed slot or spins briefly on the locked sentinel.
package intern

import (
	"runtime"
	"sync/atomic"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/hash"
)

const (
	shardCount  = 16
	minCapacity = 2048
	maxRetry    = 128
	slotEmpty   = 0
	slotLocked  = 1
	slotPresent = 2
)

// Table is a concurrent name -> V map. V is typically a *sym.Symbol handle;
// the table only ever constructs a V once per distinct key, regardless of
// how many goroutines call GetOrCreate concurrently with that key.
type Table[V any] struct {
	shards [shardCount]*shard[V]
	shCap  int // slots per shard, power of two
}

type shard[V any] struct {
	slots []slotT[V]
}

type slotT[V any] struct {
	state atomic.Int32
	key   atomic.Pointer[string]
	value atomic.Pointer[V]
}

// New constructs a table sized for at least sizeHint distinct keys.
// Capacity is always a power of two and at least minCapacity, per §4.A.
func New[V any](sizeHint int) *Table[V] {
	total := minCapacity
	for total < sizeHint*2 {
		total *= 2
	}
	shCap := total / shardCount
	if shCap < 8 {
		shCap = 8
	}
	t := &Table[V]{shCap: shCap}
	for i := range t.shards {
		t.shards[i] = &shard[V]{slots: make([]slotT[V], shCap)}
	}
	return t
}

// GetOrCreate returns the interned value for key, calling create() at most
// once across all concurrent callers racing on the same key. create runs
// only after this goroutine has locked an empty slot, so its result is
// always published; a goroutine that finds a slot locked yields and
// re-examines that slot (see the retry loop below).
func (t *Table[V]) GetOrCreate(key string, create func() V) (value V, existed bool) {
	h := hash.String(key)
	shardIdx := h % shardCount
	sh := t.shards[shardIdx]
	mask := uint64(t.shCap - 1)
	idx := (h / shardCount) & mask

	for attempt := 0; attempt < maxRetry; attempt++ {
		slot := &sh.slots[idx]
		switch slot.state.Load() {
		case slotEmpty:
			if slot.state.CompareAndSwap(slotEmpty, slotLocked) {
				v := create()
				slot.value.Store(&v)
				k := key
				slot.key.Store(&k) // release publish of the key
				slot.state.Store(slotPresent)
				return v, false
			}
			// lost the race for this exact slot; re-examine it, don't advance.
		case slotLocked:
			runtime.Gosched()
		case slotPresent:
			if kp := slot.key.Load(); kp != nil && *kp == key {
				return *slot.value.Load(), true
			}
			idx = (idx + 1) & mask
		}
	}

	diag.Fatalf("interner: exceeded %d probes for key %q (shard %d full or pathologically collided)", maxRetry, key, shardIdx)
	panic("unreachable")
}

// Lookup returns the interned value for key without creating it.
func (t *Table[V]) Lookup(key string) (value V, ok bool) {
	h := hash.String(key)
	shardIdx := h % shardCount
	sh := t.shards[shardIdx]
	mask := uint64(t.shCap - 1)
	idx := (h / shardCount) & mask

	for attempt := 0; attempt < maxRetry; attempt++ {
		slot := &sh.slots[idx]
		switch slot.state.Load() {
		case slotEmpty:
			var zero V
			return zero, false
		case slotLocked:
			runtime.Gosched()
		case slotPresent:
			if kp := slot.key.Load(); kp != nil && *kp == key {
				return *slot.value.Load(), true
			}
			idx = (idx + 1) & mask
		}
	}
	var zero V
	return zero, false
}

// Each calls fn for every present entry. Only safe to call once no more
// concurrent GetOrCreate calls are in flight (i.e. after a pass barrier).
func (t *Table[V]) Each(fn func(key string, value V)) {
	for _, sh := range t.shards {
		for i := range sh.slots {
			slot := &sh.slots[i]
			if slot.state.Load() != slotPresent {
				continue
			}
			kp := slot.key.Load()
			vp := slot.value.Load()
			if kp != nil && vp != nil {
				fn(*kp, *vp)
			}
		}
	}
}

// Delete removes key from the table if present. Used to drop unused global
// symbols once their owning object turns out to be dead (liveness pass).
func (t *Table[V]) Delete(key string) {
	h := hash.String(key)
	shardIdx := h % shardCount
	sh := t.shards[shardIdx]
	mask := uint64(t.shCap - 1)
	idx := (h / shardCount) & mask

	for attempt := 0; attempt < maxRetry; attempt++ {
		slot := &sh.slots[idx]
		switch slot.state.Load() {
		case slotEmpty:
			return
		case slotLocked:
			runtime.Gosched()
		case slotPresent:
			if kp := slot.key.Load(); kp != nil && *kp == key {
				slot.value.Store(nil)
				slot.key.Store(nil)
				slot.state.Store(slotEmpty)
				return
			}
			idx = (idx + 1) & mask
		}
	}
}
