package objfmt

import "encoding/binary"

// Mach-O is specified as 64-bit little-endian only (§6), so there is a
// single instantiation, unlike ELF's four. The struct shapes mirror
// <mach-o/loader.h> closely enough to decode directly with
// encoding/binary.

const MachMagic64 = 0xfeedfacf

type MachHeader64 struct {
	Magic      uint32
	CPUType    uint32
	CPUSubtype uint32
	FileType   uint32
	NCmds      uint32
	SizeOfCmds uint32
	Flags      uint32
	Reserved   uint32
}

const MachHeader64Size = 32

// Load command opcodes named in §6.
const (
	LcSegment64        = 0x19
	LcSymtab           = 0x2
	LcDataInCode       = 0x29
	LcDyldInfoOnly     = 0x80000022
	LcDyldExportsTrie  = 0x80000033
	LcIdDylib          = 0xd
)

type LoadCommand struct {
	Cmd     uint32
	CmdSize uint32
}

const LoadCommandSize = 8

type SegmentCommand64 struct {
	Segname  [16]byte
	VMAddr   uint64
	VMSize   uint64
	FileOff  uint64
	FileSize uint64
	MaxProt  uint32
	InitProt uint32
	NSects   uint32
	Flags    uint32
}

const SegmentCommand64Size = 72

type Section64 struct {
	Sectname  [16]byte
	Segname   [16]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

const Section64Size = 80

type SymtabCommand struct {
	SymOff  uint32
	NSyms   uint32
	StrOff  uint32
	StrSize uint32
}

const SymtabCommandSize = 16

type Nlist64 struct {
	StrX  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

const Nlist64Size = 16

type DataInCodeEntry struct {
	Offset uint32
	Length uint16
	Kind   uint16
}

const DataInCodeEntrySize = 8

type DyldInfoCommand struct {
	RebaseOff    uint32
	RebaseSize   uint32
	BindOff      uint32
	BindSize     uint32
	WeakBindOff  uint32
	WeakBindSize uint32
	LazyBindOff  uint32
	LazyBindSize uint32
	ExportOff    uint32
	ExportSize   uint32
}

type LinkeditDataCommand struct {
	DataOff  uint32
	DataSize uint32
}

const LinkeditDataCommandSize = 8

type DylibCommand struct {
	NameOffset         uint32
	Timestamp          uint32
	CurrentVersion     uint32
	CompatibilityVersion uint32
}

// CompactUnwindEntry mirrors __compact_unwind's fixed-offset layout named
// in §6: code_start, code_len, encoding, personality, lsda. Relocations
// against this section target these fields at fixed byte offsets.
type CompactUnwindEntry struct {
	CodeStart   uint64
	CodeLen     uint32
	Encoding    uint32
	Personality uint64
	LSDA        uint64
}

const CompactUnwindEntrySize = 32

var machOrder = binary.LittleEndian

func DecodeMachHeader64(b []byte) MachHeader64 {
	o := machOrder
	return MachHeader64{
		Magic:      o.Uint32(b[0:]),
		CPUType:    o.Uint32(b[4:]),
		CPUSubtype: o.Uint32(b[8:]),
		FileType:   o.Uint32(b[12:]),
		NCmds:      o.Uint32(b[16:]),
		SizeOfCmds: o.Uint32(b[20:]),
		Flags:      o.Uint32(b[24:]),
		Reserved:   o.Uint32(b[28:]),
	}
}

func DecodeLoadCommand(b []byte) LoadCommand {
	o := machOrder
	return LoadCommand{Cmd: o.Uint32(b[0:]), CmdSize: o.Uint32(b[4:])}
}

func DecodeSegmentCommand64(b []byte) SegmentCommand64 {
	o := machOrder
	var s SegmentCommand64
	copy(s.Segname[:], b[0:16])
	s.VMAddr = o.Uint64(b[16:])
	s.VMSize = o.Uint64(b[24:])
	s.FileOff = o.Uint64(b[32:])
	s.FileSize = o.Uint64(b[40:])
	s.MaxProt = o.Uint32(b[48:])
	s.InitProt = o.Uint32(b[52:])
	s.NSects = o.Uint32(b[56:])
	s.Flags = o.Uint32(b[60:])
	return s
}

func DecodeSection64(b []byte) Section64 {
	o := machOrder
	var s Section64
	copy(s.Sectname[:], b[0:16])
	copy(s.Segname[:], b[16:32])
	s.Addr = o.Uint64(b[32:])
	s.Size = o.Uint64(b[40:])
	s.Offset = o.Uint32(b[48:])
	s.Align = o.Uint32(b[52:])
	s.Reloff = o.Uint32(b[56:])
	s.Nreloc = o.Uint32(b[60:])
	s.Flags = o.Uint32(b[64:])
	s.Reserved1 = o.Uint32(b[68:])
	s.Reserved2 = o.Uint32(b[72:])
	s.Reserved3 = o.Uint32(b[76:])
	return s
}

func DecodeSymtabCommand(b []byte) SymtabCommand {
	o := machOrder
	return SymtabCommand{
		SymOff:  o.Uint32(b[0:]),
		NSyms:   o.Uint32(b[4:]),
		StrOff:  o.Uint32(b[8:]),
		StrSize: o.Uint32(b[12:]),
	}
}

func DecodeNlist64(b []byte) Nlist64 {
	o := machOrder
	return Nlist64{
		StrX:  o.Uint32(b[0:]),
		Type:  b[4],
		Sect:  b[5],
		Desc:  o.Uint16(b[6:]),
		Value: o.Uint64(b[8:]),
	}
}

func DecodeCompactUnwindEntry(b []byte) CompactUnwindEntry {
	o := machOrder
	return CompactUnwindEntry{
		CodeStart:   o.Uint64(b[0:]),
		CodeLen:     o.Uint32(b[8:]),
		Encoding:    o.Uint32(b[12:]),
		Personality: o.Uint64(b[16:]),
		LSDA:        o.Uint64(b[24:]),
	}
}
