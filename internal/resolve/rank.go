// Package resolve implements component D: the priority-based symbol
// resolution passes. The rank formula and pass ordering are grounded on
// dongAxis-rvld's GetRank/ResolveSymbols/MarkLiveObjects (the fullest
// reference resolver in the retrieval pack); the mutation itself goes
// through sym.Symbol.TryResolve rather than a bare comparison, since that
// is this module's single-mutation-point discipline for concurrent
// resolution. The rank tiers themselves follow the table verbatim
// (dongAxis's own scheme lacks shared-library ranks since rvld never
// links against DSOs).
package resolve

import (
	"debug/elf"

	"github.com/hcyang1106/rld/internal/objfmt"
	"github.com/hcyang1106/rld/internal/sym"
)

// rankOf computes the (rank<<24)+filePriority key for one regular-object
// symbol table entry. isLazy is true when the defining file is an archive
// member that has not yet been pulled into the link — any definition found
// there outranks an active file's common symbol but loses to any active
// file's real definition, since committing to a real definition should
// always be preferred over a tentative common allocation.
func rankOf(esym objfmt.Sym, filePriority int64, isLazy bool) uint64 {
	if isLazy {
		return sym.Priority(sym.RankLazyArchive, filePriority)
	}
	if esym.IsCommon() {
		return sym.Priority(sym.RankCommon, filePriority)
	}
	if esym.Bind() == elf.STB_WEAK {
		return sym.Priority(sym.RankWeakRegular, filePriority)
	}
	return sym.Priority(sym.RankStrongRegular, filePriority)
}

// rankOfDSO is rankOf's shared-library counterpart (ranks 3/4); a DSO
// export is never lazy and never common.
func rankOfDSO(weak bool, filePriority int64) uint64 {
	if weak {
		return sym.Priority(sym.RankWeakShared, filePriority)
	}
	return sym.Priority(sym.RankStrongShared, filePriority)
}
