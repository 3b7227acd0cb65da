package object

import (
	"sync"
	"sync/atomic"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/intern"
	"github.com/hcyang1106/rld/internal/merge"
	"github.com/hcyang1106/rld/internal/sym"
)

// Context is the process-wide state shared by every parallel parse task:
// the global symbol interner and the registry of merged sections keyed by
// output section name (".rodata.str1.1" etc. collapse across every input
// file). Both are safe for concurrent use from the per-file parse
// goroutines that §4.C describes running in parallel.
type Context struct {
	Symbols *intern.Table[*sym.Symbol]
	Errors  *diag.Errors

	mergedMu sync.Mutex
	merged   map[string]*merge.MergedSection

	comdatMu     sync.Mutex
	comdatGroups map[string]*sym.ComdatGroup

	nextPriority atomic.Int64
}

// NewContext constructs an empty, ready-to-use parse context.
func NewContext(errs *diag.Errors) *Context {
	c := &Context{
		Symbols: intern.New[*sym.Symbol](4096),
		Errors:  errs,
		merged:  make(map[string]*merge.MergedSection),
		comdatGroups: make(map[string]*sym.ComdatGroup),
	}
	c.nextPriority.Store(10000)
	return c
}

// GetSymbol returns the canonical global Symbol for name, creating it on
// first reference. This is the sole entry point for turning a global
// symbol table entry into the process-wide interned Symbol.
func (c *Context) GetSymbol(name string) *sym.Symbol {
	s, _ := c.Symbols.GetOrCreate(name, func() *sym.Symbol { return sym.NewSymbol(name) })
	return s
}

// MergedSectionFor returns the shared MergedSection for an output section
// name, creating it on first reference. Guarded by a plain mutex rather
// than the lock-free interner because MergedSection itself is what
// provides the fine-grained concurrency (per-shard locks over fragments);
// this outer map only needs to hand out one *MergedSection per name.
func (c *Context) MergedSectionFor(name string) *merge.MergedSection {
	c.mergedMu.Lock()
	defer c.mergedMu.Unlock()
	m, ok := c.merged[name]
	if !ok {
		m = merge.NewMergedSection(name)
		c.merged[name] = m
	}
	return m
}

// ComdatGroupFor returns the shared ComdatGroup for a section-group
// signature, creating it on first reference. Every file that declares the
// same signature must race for ownership of the same *ComdatGroup
// instance (see internal/comdat.Run's CAS-based ClaimOwnership), so this
// registry mirrors MergedSectionFor rather than letting each file's parser
// allocate its own group.
func (c *Context) ComdatGroupFor(signature string) *sym.ComdatGroup {
	c.comdatMu.Lock()
	defer c.comdatMu.Unlock()
	g, ok := c.comdatGroups[signature]
	if !ok {
		g = sym.NewComdatGroup(signature)
		c.comdatGroups[signature] = g
	}
	return g
}

// EachMergedSection calls fn once per registered merged section. Safe to
// call only after every parse task has finished.
func (c *Context) EachMergedSection(fn func(*merge.MergedSection)) {
	c.mergedMu.Lock()
	defer c.mergedMu.Unlock()
	for _, m := range c.merged {
		fn(m)
	}
}

// NextPriority hands out file priorities in command-line order (§4.D):
// lower numbers win ties. Archive members share the priority band of the
// slot that pulled them in but are further ordered among themselves by
// calling this once per member in archive order, so within one archive the
// earliest member still wins ties against later ones.
func (c *Context) NextPriority() int64 {
	return c.nextPriority.Add(1) - 1
}
