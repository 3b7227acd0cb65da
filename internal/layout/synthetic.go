package layout

import (
	"github.com/hcyang1106/rld/internal/object"
	"github.com/hcyang1106/rld/internal/sym"
)

// AddSyntheticSymbols implements §4.H's "Synthetic symbols" pass, run
// after AssignAddresses. Values are written directly rather than routed
// through Symbol.TryResolve: by this point every real candidate has
// already lost or won its rank race, and a synthetic definition installed
// here is authoritative regardless of what any input file declared with
// the same name (matching how a production linker's own internal object
// always wins symbol resolution for these names). chunks is the same
// slice AssignAddresses laid out, so a GotSection (if CollectGotSlots
// produced one) is visible here under the ".got" name exactly like a
// regular OutputSection would be.
func AddSyntheticSymbols(ctx *object.Context, chunks []Chunker, imageBase uint64) {
	define := func(name string, value uint64) {
		s := ctx.GetSymbol(name)
		s.Value = value
		s.Visibility = sym.VisHidden
	}

	byName := make(map[string]Chunker, len(chunks))
	for _, c := range chunks {
		byName[c.ChunkName()] = c
	}
	start := func(name string) (uint64, bool) {
		c, ok := byName[name]
		if !ok {
			return 0, false
		}
		return c.Addr(), true
	}
	end := func(name string) (uint64, bool) {
		c, ok := byName[name]
		if !ok {
			return 0, false
		}
		return c.Addr() + c.GetShdr().Size, true
	}

	define("__ehdr_start", imageBase)
	define("__executable_start", imageBase)

	if v, ok := rangeSpan(chunks, func(c Chunker) bool { return c.GetShdr().IsNobits() }); ok {
		define("__bss_start", v)
	}
	if v, ok := lastAllocEnd(chunks); ok {
		define("_end", v)
		define("end", v)
	}
	if v, ok := lastAllocEndWhere(chunks, func(c Chunker) bool { return c.GetShdr().IsExec() }); ok {
		define("_etext", v)
		define("etext", v)
	}
	if v, ok := lastAllocEndWhere(chunks, func(c Chunker) bool { return !c.GetShdr().IsNobits() }); ok {
		define("_edata", v)
		define("edata", v)
	}

	defineSpan := func(sectionName, startSym, endSym string) {
		if v, ok := start(sectionName); ok {
			define(startSym, v)
		}
		if v, ok := end(sectionName); ok {
			define(endSym, v)
		}
	}
	defineSpan(".init_array", "__init_array_start", "__init_array_end")
	defineSpan(".fini_array", "__fini_array_start", "__fini_array_end")
	defineSpan(".preinit_array", "__preinit_array_start", "__preinit_array_end")
	defineSpan(".eh_frame_hdr", "__GNU_EH_FRAME_HDR", "__GNU_EH_FRAME_HDR_end")
	defineSpan(".dynamic", "_DYNAMIC", "_DYNAMIC_end")
	defineSpan(".got", "_GLOBAL_OFFSET_TABLE_", "_GLOBAL_OFFSET_TABLE__end")

	for _, c := range chunks {
		name := c.ChunkName()
		if !sym.IsCIdentifierName(name) {
			continue
		}
		define("__start_"+name, c.Addr())
		define("__stop_"+name, c.Addr()+c.GetShdr().Size)
	}
}

func rangeSpan(chunks []Chunker, match func(Chunker) bool) (uint64, bool) {
	for _, c := range chunks {
		if c.GetShdr().IsAlloc() && match(c) {
			return c.Addr(), true
		}
	}
	return 0, false
}

func lastAllocEnd(chunks []Chunker) (uint64, bool) {
	var v uint64
	found := false
	for _, c := range chunks {
		if c.GetShdr().IsAlloc() {
			v = c.Addr() + c.GetShdr().Size
			found = true
		}
	}
	return v, found
}

func lastAllocEndWhere(chunks []Chunker, match func(Chunker) bool) (uint64, bool) {
	var v uint64
	found := false
	for _, c := range chunks {
		if c.GetShdr().IsAlloc() && match(c) {
			v = c.Addr() + c.GetShdr().Size
			found = true
		}
	}
	return v, found
}
