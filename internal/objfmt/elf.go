// Package objfmt expresses the "template-over-architecture" design note as
// a small interface with one implementation per (class, endianness) pair,
// each monomorphized against a concrete on-disk struct shape but exposing
// a single canonical (64-bit, host-endian-normalized) view to the rest of
// the linker. There are four ELF instantiations (32/64 x LE/BE) and one
// Mach-O instantiation (64-bit LE only, per spec).
package objfmt

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// Ehdr, Shdr and Sym are the canonical, width-normalized views the rest of
// the linker operates on regardless of the input's actual class. Decoding
// a 32-bit input widens its fields into these; encoding narrows back down
// only in the (external, out-of-scope) byte-emission stage.
type Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

func (s *Sym) Bind() elf.SymBind { return elf.SymBind(s.Info >> 4) }
func (s *Sym) Type() elf.SymType { return elf.SymType(s.Info & 0xf) }
func (s *Sym) IsUndef() bool     { return s.Shndx == uint16(elf.SHN_UNDEF) }
func (s *Sym) IsAbs() bool       { return s.Shndx == uint16(elf.SHN_ABS) }
func (s *Sym) IsCommon() bool    { return s.Shndx == uint16(elf.SHN_COMMON) }
func (s *Sym) IsWeak() bool      { return s.Bind() == elf.STB_WEAK }
func (s *Sym) Visibility() elf.SymVis {
	return elf.SymVis(s.Other & 0x3)
}

// Rel and Rela are the canonical relocation record shapes (REL vs RELA).
type Rel struct {
	Offset uint64
	Info   uint64
}
type Rela struct {
	Offset uint64
	Info   uint64
	Addend int64
}

func (r Rel) Sym() uint32  { return uint32(r.Info >> 32) }
func (r Rel) Type() uint32 { return uint32(r.Info) }
func (r Rela) Sym() uint32 { return uint32(r.Info >> 32) }
func (r Rela) Type() uint32 { return uint32(r.Info) }

// Decoder is the per-(class,endian) instantiation. Each method reads one
// fixed-size record from b (which must be at least the corresponding
// *Size()) and returns the canonical, widened struct.
type Decoder interface {
	Class() elf.Class
	Order() binary.ByteOrder
	EhdrSize() int
	ShdrSize() int
	SymSize() int
	RelSize() int
	RelaSize() int
	DecodeEhdr(b []byte) Ehdr
	DecodeShdr(b []byte) Shdr
	DecodeSym(b []byte) Sym
	DecodeRel(b []byte) Rel
	DecodeRela(b []byte) Rela
}

// DetectELF sniffs the ELF identification bytes and returns the matching
// Decoder. Overflow-prone fields (>65535 sections, large shstrtab index)
// are handled by callers reading Shdr[0]'s fields, per §4.C step 1 — the
// Decoder only concerns itself with fixed-size record layout.
func DetectELF(content []byte) (Decoder, error) {
	if len(content) < 20 || content[0] != 0x7f || content[1] != 'E' || content[2] != 'L' || content[3] != 'F' {
		return nil, fmt.Errorf("objfmt: missing ELF magic")
	}
	class := elf.Class(content[elf.EI_CLASS])
	data := elf.Data(content[elf.EI_DATA])

	var order binary.ByteOrder
	switch data {
	case elf.ELFDATA2LSB:
		order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("objfmt: unknown ELF data encoding %d", data)
	}

	switch class {
	case elf.ELFCLASS32:
		return &decoder32{order: order}, nil
	case elf.ELFCLASS64:
		return &decoder64{order: order}, nil
	default:
		return nil, fmt.Errorf("objfmt: unknown ELF class %d", class)
	}
}

// --- 64-bit instantiation -------------------------------------------------

type decoder64 struct{ order binary.ByteOrder }

func (d *decoder64) Class() elf.Class        { return elf.ELFCLASS64 }
func (d *decoder64) Order() binary.ByteOrder { return d.order }
func (d *decoder64) EhdrSize() int           { return 64 }
func (d *decoder64) ShdrSize() int           { return 64 }
func (d *decoder64) SymSize() int            { return 24 }
func (d *decoder64) RelSize() int            { return 16 }
func (d *decoder64) RelaSize() int           { return 24 }

func (d *decoder64) DecodeEhdr(b []byte) Ehdr {
	o := d.order
	var e Ehdr
	copy(e.Ident[:], b[:16])
	e.Type = o.Uint16(b[16:])
	e.Machine = o.Uint16(b[18:])
	e.Version = o.Uint32(b[20:])
	e.Entry = o.Uint64(b[24:])
	e.PhOff = o.Uint64(b[32:])
	e.ShOff = o.Uint64(b[40:])
	e.Flags = o.Uint32(b[48:])
	e.EhSize = o.Uint16(b[52:])
	e.PhEntSize = o.Uint16(b[54:])
	e.PhNum = o.Uint16(b[56:])
	e.ShEntSize = o.Uint16(b[58:])
	e.ShNum = o.Uint16(b[60:])
	e.ShStrndx = o.Uint16(b[62:])
	return e
}

func (d *decoder64) DecodeShdr(b []byte) Shdr {
	o := d.order
	return Shdr{
		Name:      o.Uint32(b[0:]),
		Type:      o.Uint32(b[4:]),
		Flags:     o.Uint64(b[8:]),
		Addr:      o.Uint64(b[16:]),
		Offset:    o.Uint64(b[24:]),
		Size:      o.Uint64(b[32:]),
		Link:      o.Uint32(b[40:]),
		Info:      o.Uint32(b[44:]),
		AddrAlign: o.Uint64(b[48:]),
		EntSize:   o.Uint64(b[56:]),
	}
}

func (d *decoder64) DecodeSym(b []byte) Sym {
	o := d.order
	return Sym{
		Name:  o.Uint32(b[0:]),
		Info:  b[4],
		Other: b[5],
		Shndx: o.Uint16(b[6:]),
		Value: o.Uint64(b[8:]),
		Size:  o.Uint64(b[16:]),
	}
}

func (d *decoder64) DecodeRel(b []byte) Rel {
	o := d.order
	return Rel{Offset: o.Uint64(b[0:]), Info: o.Uint64(b[8:])}
}

func (d *decoder64) DecodeRela(b []byte) Rela {
	o := d.order
	return Rela{
		Offset: o.Uint64(b[0:]),
		Info:   o.Uint64(b[8:]),
		Addend: int64(o.Uint64(b[16:])),
	}
}

// --- 32-bit instantiation, widened into the canonical 64-bit view --------

type decoder32 struct{ order binary.ByteOrder }

func (d *decoder32) Class() elf.Class        { return elf.ELFCLASS32 }
func (d *decoder32) Order() binary.ByteOrder { return d.order }
func (d *decoder32) EhdrSize() int           { return 52 }
func (d *decoder32) ShdrSize() int           { return 40 }
func (d *decoder32) SymSize() int            { return 16 }
func (d *decoder32) RelSize() int            { return 8 }
func (d *decoder32) RelaSize() int           { return 12 }

func (d *decoder32) DecodeEhdr(b []byte) Ehdr {
	o := d.order
	var e Ehdr
	copy(e.Ident[:], b[:16])
	e.Type = o.Uint16(b[16:])
	e.Machine = o.Uint16(b[18:])
	e.Version = o.Uint32(b[20:])
	e.Entry = uint64(o.Uint32(b[24:]))
	e.PhOff = uint64(o.Uint32(b[28:]))
	e.ShOff = uint64(o.Uint32(b[32:]))
	e.Flags = o.Uint32(b[36:])
	e.EhSize = o.Uint16(b[40:])
	e.PhEntSize = o.Uint16(b[42:])
	e.PhNum = o.Uint16(b[44:])
	e.ShEntSize = o.Uint16(b[46:])
	e.ShNum = o.Uint16(b[48:])
	e.ShStrndx = o.Uint16(b[50:])
	return e
}

func (d *decoder32) DecodeShdr(b []byte) Shdr {
	o := d.order
	return Shdr{
		Name:      o.Uint32(b[0:]),
		Type:      o.Uint32(b[4:]),
		Flags:     uint64(o.Uint32(b[8:])),
		Addr:      uint64(o.Uint32(b[12:])),
		Offset:    uint64(o.Uint32(b[16:])),
		Size:      uint64(o.Uint32(b[20:])),
		Link:      o.Uint32(b[24:]),
		Info:      o.Uint32(b[28:]),
		AddrAlign: uint64(o.Uint32(b[32:])),
		EntSize:   uint64(o.Uint32(b[36:])),
	}
}

func (d *decoder32) DecodeSym(b []byte) Sym {
	o := d.order
	return Sym{
		Name:  o.Uint32(b[0:]),
		Value: uint64(o.Uint32(b[4:])),
		Size:  uint64(o.Uint32(b[8:])),
		Info:  b[12],
		Other: b[13],
		Shndx: o.Uint16(b[14:]),
	}
}

func (d *decoder32) DecodeRel(b []byte) Rel {
	o := d.order
	info := o.Uint32(b[4:])
	return Rel{Offset: uint64(o.Uint32(b[0:])), Info: uint64(info>>8)<<32 | uint64(info&0xff)}
}

func (d *decoder32) DecodeRela(b []byte) Rela {
	o := d.order
	info := o.Uint32(b[4:])
	return Rela{
		Offset: uint64(o.Uint32(b[0:])),
		Info:   uint64(info>>8)<<32 | uint64(info&0xff),
		Addend: int64(int32(o.Uint32(b[8:]))),
	}
}
