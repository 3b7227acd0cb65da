package layout

import (
	"debug/elf"

	"github.com/hcyang1106/rld/internal/diag"
	"github.com/hcyang1106/rld/internal/disasm"
	"github.com/hcyang1106/rld/internal/object"
)

// pc32Range is the signed displacement a 32-bit PC-relative relocation can
// encode; §4.H's address assignment is expected to keep every live
// PC-relative reference inside it, but a hand-written or hostile object
// can still ask the linker to bridge a gap wider than what the ISA's
// instruction encoding can represent.
const pc32Range = int64(1) << 31

// CheckRelocationRanges implements the range check §4.H leaves as a
// diagnostic rather than a fatal error: once every alive section has an
// output address (AssignAddresses has run), recompute each PC-relative
// relocation's displacement and warn on any that overflows what the
// encoding can hold. disasm.Hint supplies the offending instruction's
// mnemonic so the warning names something a user can grep for in their own
// disassembly instead of a bare hex offset.
func CheckRelocationRanges(objects []*object.ObjectFile, errs *diag.Errors) {
	for _, o := range objects {
		if !o.IsAlive() {
			continue
		}
		for _, sec := range o.InputSections {
			if sec == nil || !sec.IsAlive() || !sec.Shdr.IsAlloc() {
				continue
			}
			for _, r := range o.Relocations[sec.RelBegin:sec.RelEnd] {
				if !isPCRelative(r.Type) {
					continue
				}
				if r.TargetSymbol == nil && r.TargetFragment == nil {
					continue
				}
				var target uint64
				if r.TargetFragment != nil {
					target = r.TargetFragment.FragmentAddr() + r.Delta
				} else {
					target = r.TargetSymbol.Addr()
				}
				site := sec.Addr() + r.Offset
				delta := int64(target) - int64(site) + r.Addend
				if delta < -pc32Range || delta >= pc32Range {
					hint := ""
					if int(r.Offset) < len(sec.Content) {
						hint = disasm.Hint(disasm.MachineX86_64, sec.Content[r.Offset:])
					}
					if hint == "" {
						errs.Warn("relocation %s at %s+0x%x cannot reach its target (displacement 0x%x)", elf.R_X86_64(r.Type), sec.Name, r.Offset, delta)
					} else {
						errs.Warn("relocation %s at %s+0x%x targets instruction `%s`, which cannot reach the resolved address (displacement 0x%x)", elf.R_X86_64(r.Type), sec.Name, r.Offset, hint, delta)
					}
				}
			}
		}
	}
}

// isPCRelative restricts the check to the 32-bit PC-relative forms pc32Range
// applies to; PC8/PC16 would need their own narrower bounds and PC64 never
// overflows an int64 displacement, so neither belongs in this check.
func isPCRelative(t uint32) bool {
	switch elf.R_X86_64(t) {
	case elf.R_X86_64_PC32, elf.R_X86_64_PLT32, elf.R_X86_64_GOTPCREL,
		elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
		return true
	default:
		return false
	}
}
