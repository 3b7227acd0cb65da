// Package layout implements component H: binning input sections into
// output sections, init/fini ordering, section ranking, address and
// file-offset assignment, and synthetic symbol definitions. The output
// section naming and ranking logic follows dongAxis-rvld's
// GetOutputName/SortOutputSections/doSetOsecOffsets — the retrieval
// pack's only linker with a full address-assignment pass — generalized
// to the simpler rank formula this system's own §4.H table specifies.
package layout

import (
	"strings"

	"github.com/hcyang1106/rld/internal/sym"
)

var collapsePrefixes = []string{
	".text.", ".data.rel.ro.", ".data.", ".rodata.", ".bss.rel.ro.", ".bss.",
	".init_array.", ".fini_array.", ".tbss.", ".tdata.", ".gcc_except_table.",
	".ctors.", ".dtors.", ".gnu.linkonce.",
}

// OutputName collapses one input section's name onto its output section's
// name, e.g. ".text.foo" -> ".text", the same numbered/dotted-suffix
// convention every gABI-following compiler emits for -ffunction-sections/
// -fdata-sections output.
func OutputName(name string, shdr sym.Shdr) string {
	if (name == ".rodata" || strings.HasPrefix(name, ".rodata.")) && shdr.IsMerge() {
		if shdr.IsMergeStrings() {
			return ".rodata.str"
		}
		return ".rodata.cst"
	}
	for _, prefix := range collapsePrefixes {
		stem := prefix[:len(prefix)-1]
		if name == stem || strings.HasPrefix(name, prefix) {
			return stem
		}
	}
	return name
}
