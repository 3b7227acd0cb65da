package resolve

import (
	"strings"

	"github.com/hcyang1106/rld/internal/config"
	"github.com/hcyang1106/rld/internal/object"
)

// applyWrapRewrite implements §4.D's wrap-symbol rewrite: every *reference*
// to a wrapped name X is redirected to __wrap_X, and every reference to
// __real_X is redirected to X, before resolution ever runs. Since this
// module's parser interns straight from the raw symbol-table string (see
// object.ObjectFile.parseSymbols), the rewrite happens by replacing the
// entry's slot in the file's Symbols array with the interned symbol of the
// rewritten name; the raw symbol table entry itself is left unchanged.
//
// Both rewrites are gated on the entry being undefined at this site
// (elf.object-file.cc's insert_symbol does the same for __real_/__wrap_),
// since a *defining* occurrence of X is the normal --wrap use case: the
// real implementation must stay bound to X so the user's own __wrap_X
// wrapper can still call through to it, rather than being redirected to
// itself and leaving X permanently undefined.
//
// No repo in the retrieval pack implements --wrap, so this rewrite follows
// the convention as GNU ld documents it, applied in this module's own
// per-file symbol-array shape.
func applyWrapRewrite(ctx *object.Context, cfg *config.Config, objects []*object.ObjectFile) {
	if len(cfg.Wrap) == 0 {
		return
	}
	for _, o := range objects {
		for i := int(o.FirstGlobal()); i < len(o.Symbols); i++ {
			esym := o.ElfSym(i)
			if !esym.IsUndef() {
				continue
			}
			name := o.Symbols[i].Name
			if rest, ok := strings.CutPrefix(name, "__real_"); ok && cfg.IsWrapped(rest) {
				o.Symbols[i] = ctx.GetSymbol(rest)
				continue
			}
			if cfg.IsWrapped(name) {
				o.Symbols[i] = ctx.GetSymbol("__wrap_" + name)
			}
		}
	}
}
