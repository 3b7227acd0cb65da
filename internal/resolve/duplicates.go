package resolve

import (
	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sched"
)

// checkLTOIR implements passes.cc's tail-of-resolve_symbols check: this
// linker has no LTO/IR backend, so a symbol table that defines the
// well-known __gnu_lto_slim marker means some input is GCC/LLVM
// intermediate code rather than a real object file. That marker symbol
// resolves through the same interned table as everything else, so by the
// time regular resolution has settled, checking whether it ever got a
// defining file is enough — no separate bitcode sniff is needed.
func checkLTOIR(ctx *object.Context) {
	marker := ctx.GetSymbol("__gnu_lto_slim")
	if marker.File != nil {
		diag.Fatalf("%s: looks like this file contains a GCC intermediate code, but this linker does not support LTO", marker.File.Name)
	}
}

// checkDuplicateSymbols implements passes.cc's check_duplicate_symbols: for
// every global symbol table entry that is a real definition (not
// undefined, not common, not weak), if the canonical symbol it names ended
// up owned by some other file, the two files both defined it strongly and
// one merely won the priority race — report it as a duplicate rather than
// silently letting the loser's definition vanish. A definition whose own
// section is already not alive (e.g. a mergeable section that was split
// into fragments) is skipped, matching the section->is_alive guard in the
// original. Comdat de-duplication runs after this check and marks losers
// KilledByComdat rather than not-alive, so it does not affect this guard.
func checkDuplicateSymbols(ctx *object.Context, objects []*object.ObjectFile) {
	sched.ForEach(objects, func(o *object.ObjectFile) {
		if !o.IsAlive() {
			return
		}
		n := o.NumSymbols()
		for i := int(o.FirstGlobal()); i < n; i++ {
			esym := o.ElfSym(i)
			if esym.IsUndef() || esym.IsCommon() || esym.IsWeak() {
				continue
			}
			s := o.Symbols[i]
			if s.File == o.File {
				continue
			}
			if !esym.IsAbs() {
				if sec := o.SectionOf(esym); sec != nil && !sec.IsAlive() {
					continue
				}
			}
			ctx.Errors.Error("duplicate symbol: %s: %s: %s", o.Name, s.File.Name, s.Name)
		}
	})
}
