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
	"path/filepath"
	"strings"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/liveness"
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sched"
	"github.com/hcyang1106/rld/internal/sym"
)

// Result carries the roots the resolver assembled for the caller's
// liveness/GC/layout stages, since resolve.Resolve is the pass that first
// learns which symbols are entry points, forced-undefined roots, or
// exported.
type Result struct {
	EntrySymbol *sym.Symbol
	Roots       []*sym.Symbol // require_defined + undefined + entry, for the unresolved-claim pass and §4.E's GC roots
}

// Resolve runs every object file through the six-pass order of §4.D.
// objects must already be fully parsed (internal/object.ParseObjectFile);
// archive members are told apart from regular objects by
// object.ObjectFile.IsInLib, which sym.NewFile already seeds not-alive.
// dsos carries every parsed shared object on the link line (object.ParseDSO);
// pass nil when linking statically.
func Resolve(ctx *object.Context, cfg *config.Config, objects []*object.ObjectFile, dsos []*object.DSOFile) *Result {
	defer sched.Span("resolve")()

	applyWrapRewrite(ctx, cfg, objects)

	// Pass 1: lazy resolution for archive members. Every member was fully
	// parsed up front (this module has no separate "index-only" archive
	// scan), so a member's candidacy is exactly its own regular rank
	// computation with isLazy forced true regardless of file liveness —
	// once the archive-liveness pass below flips a member alive, regular
	// (pass 2) resolution reruns over it, pass 5 then covers it too, and
	// its real (non-lazy) rank naturally wins the
	// same symbol via TryResolve's strictly-better check.
	sched.ForEach(objects, func(o *object.ObjectFile) {
		if o.IsInLib {
			resolveGlobals(ctx, o, true)
		}
	})

	// Pass 2: regular resolution for non-library objects.
	sched.ForEach(objects, func(o *object.ObjectFile) {
		if !o.IsInLib {
			resolveGlobals(ctx, o, false)
		}
	})

	// Pass 3: shared-library resolution. Every DSO's export offers a
	// rank-3/4 candidacy the same way a regular object's real definition
	// does, just bound to FlagImported instead of an InputSection/fragment
	// since a DSO contributes no section content of its own.
	sched.ForEach(dsos, func(d *object.DSOFile) {
		resolveDSOExports(ctx, d)
	})

	// Pass 4: archive liveness. Iteratively promotes archive members whose
	// current winning symbol some alive file references strongly.
	liveness.RunArchiveLiveness(objects)

	// Re-run pass 2 over every alive file now that liveness may have
	// flipped members alive:
	// a freshly-live member's real (non-lazy) definition must overtake any
	// rank-5 placeholder still standing for the same symbol.
	sched.ForEach(objects, func(o *object.ObjectFile) {
		if o.IsAlive() {
			resolveGlobals(ctx, o, false)
		}
	})

	// Pass 5: common-symbol resolution. Every object's common symbols
	// were already offered a rank-6 candidacy in resolveGlobals above
	// (esym.IsCommon()); nothing further to do here beyond visibility.
	sched.ForEach(objects, func(o *object.ObjectFile) {
		if o.IsAlive() {
			mergeVisibility(cfg, o)
		}
	})

	checkLTOIR(ctx)
	checkDuplicateSymbols(ctx, objects)

	applyExportDynamic(ctx, cfg)

	roots := collectRoots(ctx, cfg)

	// Pass 6: claim remaining undefined per policy.
	claimUnresolved(ctx, cfg, objects, roots)

	var entry *sym.Symbol
	if cfg.Entry != "" {
		entry = ctx.GetSymbol(cfg.Entry)
	}
	return &Result{EntrySymbol: entry, Roots: roots}
}

// resolveGlobals offers every global symbol table entry of o as a
// candidate definition, per the rank formula. isLazy forces rank 5
// regardless of the entry's own weak/strong/common-ness, matching the
// spec's literal reading that any real archive-member definition
// outranks an active file's common symbol.
func resolveGlobals(ctx *object.Context, o *object.ObjectFile, isLazy bool) {
	n := o.NumSymbols()
	for i := int(o.FirstGlobal()); i < n; i++ {
		esym := o.ElfSym(i)
		if esym.IsUndef() {
			continue
		}
		name := o.Symbols[i].Name
		canonical := ctx.GetSymbol(name)
		priority := rankOf(esym, o.Priority, isLazy)

		// Visibility merge is independent of which candidate wins the rank
		// race: a losing definition's hidden/protected annotation still
		// narrows the symbol's final visibility, per §4.D.
		canonical.MergeVisibility(visibilityOf(esym.Visibility()))

		canonical.TryResolve(priority, func(s *sym.Symbol) {
			s.File = o.File
			s.Value = esym.Value
			s.Addend = 0
			// apply runs with s's mutex held, so flags are written
			// directly rather than through the locking SetFlag.
			if esym.IsWeak() {
				s.Flags |= sym.FlagWeak
			}
			if isLazy {
				s.Flags |= sym.FlagLazy
			}
			if esym.Type() == elf.STT_FUNC {
				s.Flags |= sym.FlagFunc
			}
			if esym.IsCommon() {
				s.InputSection = nil
				s.SectionFragment = nil
				return
			}
			if frag, delta := o.FragmentOf(esym); frag != nil {
				s.SectionFragment = frag
				s.Value = delta
				return
			}
			s.InputSection = o.SectionOf(esym)
		})
	}
}

// resolveDSOExports offers every exported dynamic symbol of a shared
// object as a rank-3/4 candidate. A DSO definition never owns section
// content, so the winning symbol is simply marked imported and bound to
// the export's address (relevant mainly for -Bsymbolic-style diagnostics;
// the actual PLT/GOT stub construction is an external, byte-emission-stage
// collaborator).
func resolveDSOExports(ctx *object.Context, d *object.DSOFile) {
	for _, exp := range d.Exports {
		canonical := ctx.GetSymbol(exp.Name)
		priority := rankOfDSO(exp.Weak, d.Priority)
		canonical.TryResolve(priority, func(s *sym.Symbol) {
			s.File = d.File
			s.Value = exp.Value
			s.InputSection = nil
			s.SectionFragment = nil
			s.Flags |= sym.FlagImported
			if exp.Weak {
				s.Flags |= sym.FlagWeak
			}
		})
	}
}

// mergeVisibility applies exclude_libs demotion: when o is an archive
// member whose archive basename (or "ALL") is listed, every symbol o
// defines is demoted to hidden. Each defining file's declared visibility
// is folded into the stricter-wins lattice by resolveGlobals, not here.
func mergeVisibility(cfg *config.Config, o *object.ObjectFile) {
	if !o.IsInLib {
		return
	}
	archive := o.Name // "path(member)", as cmd/rld names archive members
	if i := strings.LastIndexByte(archive, '('); i >= 0 {
		archive = archive[:i]
	}
	if !cfg.IsExcludedLib(filepath.Base(archive)) {
		return
	}
	n := o.NumSymbols()
	for i := int(o.FirstGlobal()); i < n; i++ {
		esym := o.ElfSym(i)
		if esym.IsUndef() {
			continue
		}
		o.Symbols[i].DemoteToHidden()
	}
}

// applyExportDynamic implements §6's -export-dynamic: every globally
// visible defined symbol becomes a dynamic-table export, which in turn
// makes its defining section a GC root (object.ExportedSectionRoots) even
// when nothing in this link references it — the whole point of the flag
// being that an external dlopen()'d module might reach it later. Symbols
// still undefined, or demoted to hidden/internal by exclude_libs or an
// explicit visibility annotation, are never exported regardless of the
// flag.
//
// -Bsymbolic/-Bsymbolic-functions bind global references to their own
// module's definition preferentially, which for this module's purposes
// means those definitions have nothing left to export: -Bsymbolic
// suppresses -export-dynamic entirely, and -Bsymbolic-functions
// suppresses it only for symbols resolveGlobals flagged sym.FlagFunc
// (STT_FUNC), leaving data symbols still exportable.
func applyExportDynamic(ctx *object.Context, cfg *config.Config) {
	if !cfg.ExportDynamic || cfg.Bsymbolic {
		return
	}
	ctx.Symbols.Each(func(_ string, s *sym.Symbol) {
		if s.IsUndefined() || s.Visibility != sym.VisDefault {
			return
		}
		if cfg.BsymbolicFunctions && s.HasFlag(sym.FlagFunc) {
			return
		}
		s.SetFlag(sym.FlagExported)
	})
}

// collectRoots assembles the entry symbol plus every undefined[]/
// require_defined[] name into the root set §4.E's GC and this pass's
// unresolved claim both need.
func collectRoots(ctx *object.Context, cfg *config.Config) []*sym.Symbol {
	var roots []*sym.Symbol
	if cfg.Entry != "" {
		roots = append(roots, ctx.GetSymbol(cfg.Entry))
	}
	for _, n := range cfg.Undefined {
		roots = append(roots, ctx.GetSymbol(n))
	}
	for _, n := range cfg.RequireDefined {
		roots = append(roots, ctx.GetSymbol(n))
	}
	return roots
}

// claimUnresolved implements pass 6: any symbol still at RankNone after
// every other pass is disposed of per unresolved_symbols policy. A name
// listed in require_defined[] is always fatal regardless of policy.
func claimUnresolved(ctx *object.Context, cfg *config.Config, objects []*object.ObjectFile, roots []*sym.Symbol) {
	required := make(map[string]bool, len(cfg.RequireDefined))
	for _, n := range cfg.RequireDefined {
		required[n] = true
	}

	sched.ForEach(objects, func(o *object.ObjectFile) {
		if !o.IsAlive() {
			return
		}
		n := o.NumSymbols()
		for i := int(o.FirstGlobal()); i < n; i++ {
			esym := o.ElfSym(i)
			if !esym.IsUndef() || esym.Bind() == elf.STB_WEAK {
				continue
			}
			s := o.Symbols[i]
			if !s.IsUndefined() || !s.ClaimReport() {
				continue
			}
			reportUnresolved(ctx, cfg, s, required)
		}
	})
	for _, s := range roots {
		if s.IsUndefined() && s.ClaimReport() {
			reportUnresolved(ctx, cfg, s, required)
		}
	}
}

// visibilityOf maps ELF's st_other visibility encoding (STV_DEFAULT=0,
// STV_INTERNAL=1, STV_HIDDEN=2, STV_PROTECTED=3) onto this module's own
// Visibility enum, whose values are ordered by strictness instead — the
// two encodings do not share numbering, so a bare cast would be wrong.
func visibilityOf(v elf.SymVis) sym.Visibility {
	switch v {
	case elf.STV_HIDDEN:
		return sym.VisHidden
	case elf.STV_PROTECTED:
		return sym.VisProtected
	case elf.STV_INTERNAL:
		return sym.VisInternal
	default:
		return sym.VisDefault
	}
}

func reportUnresolved(ctx *object.Context, cfg *config.Config, s *sym.Symbol, required map[string]bool) {
	if required[s.Name] {
		ctx.Errors.Error("undefined symbol required by require_defined: %s", s.Name)
		return
	}
	switch cfg.UnresolvedSymbols {
	case config.UnresolvedError:
		ctx.Errors.Error("undefined symbol: %s", s.Name)
	case config.UnresolvedWarn:
		ctx.Errors.Warn("undefined symbol: %s", s.Name)
	case config.UnresolvedIgnore:
		// treated as an imported symbol bound to address zero, matching
		// the "absolute-zero" disposition named in §4.D's pass order
		s.SetFlag(sym.FlagImported)
		s.Value = 0
	}
}
