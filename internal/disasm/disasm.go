// Package disasm supplies a best-effort instruction mnemonic for
// diagnostic messages only, never for relocation arithmetic itself.
// Typical use: "relocation R_X86_64_PC32 at offset 0x40 targets
// instruction `%s`, which cannot reach the resolved address" — a hint a
// user can grep for in their disassembly.
package disasm

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Machine identifies which decoder to use.
type Machine int

const (
	MachineUnknown Machine = iota
	MachineX86_64
	MachineARM64
)

// Hint decodes one instruction at the start of code and returns a short
// mnemonic string for diagnostics, or "" if it can't be decoded (e.g. code
// is empty, or the bytes aren't a valid instruction at this offset —
// common when disassembling a relocation site before relocations have
// been applied).
func Hint(m Machine, code []byte) string {
	switch m {
	case MachineX86_64:
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			return ""
		}
		return x86asm.GNUSyntax(inst, 0, nil)
	case MachineARM64:
		inst, err := arm64asm.Decode(code)
		if err != nil {
			return ""
		}
		return fmt.Sprint(inst)
	default:
		return ""
	}
}
