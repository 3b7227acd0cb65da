package ehframe

import (
	"encoding/binary"
	"testing"

	"github.com/hcyang1106/rld/internal/sym"
)

// buildRecord constructs one raw .eh_frame record: a 4-byte length prefix
// covering everything after it, a 4-byte back-pointer, then body.
func buildRecord(backPointer uint32, body []byte) []byte {
	rec := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint32(rec[4:], backPointer)
	copy(rec[8:], body)
	binary.LittleEndian.PutUint32(rec[0:], uint32(len(rec)-4))
	return rec
}

func TestParseSplitsCIEAndFDE(t *testing.T) {
	cie := buildRecord(0, []byte{1, 2, 3, 4})
	fdeBody := make([]byte, 8)
	fde := buildRecord(uint32(len(cie)+4), fdeBody) // back-pointer to the CIE above
	content := append(append([]byte{}, cie...), fde...)

	fdeBegin := uint64(len(cie))
	relocs := []sym.Relocation{{Offset: fdeBegin + 8, SymIdx: 3}}

	cies, fdes := Parse("a.o", content, relocs)
	if len(cies) != 1 {
		t.Fatalf("got %d CIEs, want 1", len(cies))
	}
	if len(fdes) != 1 {
		t.Fatalf("got %d FDEs, want 1", len(fdes))
	}
	if fdes[0].cieRefOffset != cies[0].Offset {
		t.Fatalf("FDE cieRefOffset = %d, want %d", fdes[0].cieRefOffset, cies[0].Offset)
	}
}

func TestParseSkipsFDEWithNoRelocations(t *testing.T) {
	cie := buildRecord(0, []byte{1})
	fde := buildRecord(uint32(len(cie)+4), make([]byte, 8))
	content := append(append([]byte{}, cie...), fde...)

	_, fdes := Parse("a.o", content, nil)
	if len(fdes) != 0 {
		t.Fatalf("got %d FDEs, want 0 (dead-on-arrival FDE must be skipped)", len(fdes))
	}
}

func TestLinkCIEsResolvesTargetSymbol(t *testing.T) {
	cie := buildRecord(0, []byte{1})
	fde := buildRecord(uint32(len(cie)+4), make([]byte, 8))
	content := append(append([]byte{}, cie...), fde...)

	relocs := []sym.Relocation{{Offset: uint64(len(cie)) + 8, SymIdx: 5}}
	cies, fdes := Parse("a.o", content, relocs)

	target := sym.NewSymbol("main")
	LinkCIEs(cies, fdes, func(idx uint32) *sym.Symbol {
		if idx == 5 {
			return target
		}
		return nil
	})

	if fdes[0].CIE != cies[0] {
		t.Fatal("FDE did not link to its CIE")
	}
	if fdes[0].TargetSymbol != target {
		t.Fatal("FDE did not resolve its target symbol")
	}
}

func TestIdentityHashMatchesEqualBytesAndNames(t *testing.T) {
	a := &CIE{Bytes: []byte{1, 2, 3}}
	b := &CIE{Bytes: []byte{1, 2, 3}}
	a.IdentityHash([]string{"personality"})
	b.IdentityHash([]string{"personality"})
	if !a.SameIdentity(b) {
		t.Fatal("identical bytes and referenced names must hash identically")
	}

	c := &CIE{Bytes: []byte{1, 2, 3}}
	c.IdentityHash([]string{"other_personality"})
	if a.SameIdentity(c) {
		t.Fatal("different referenced names must not collide")
	}
}
