package objfmt

import "bytes"

// FileKind classifies a raw input file the way §4.C step 1 does before any
// deeper parsing happens.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindEmpty
	KindELFObject
	KindELFShared
	KindMachOObject
	KindMachODylib
	KindArchive
)

const ArMagic = "!<arch>\n"

// SniffKind looks only at the magic bytes and a handful of header fields —
// enough to route to the right parser without decoding the whole file.
func SniffKind(content []byte) FileKind {
	if len(content) == 0 {
		return KindEmpty
	}
	if bytes.HasPrefix(content, []byte(ArMagic)) {
		return KindArchive
	}
	if len(content) >= 4 && content[0] == 0x7f && content[1] == 'E' && content[2] == 'L' && content[3] == 'F' {
		if len(content) < 18 {
			return KindUnknown
		}
		dec, err := DetectELF(content)
		if err != nil {
			return KindUnknown
		}
		ehdr := dec.DecodeEhdr(content)
		switch ehdr.Type {
		case 1: // ET_REL
			return KindELFObject
		case 3: // ET_DYN
			return KindELFShared
		default:
			return KindUnknown
		}
	}
	if len(content) >= 4 {
		magic := machOrder.Uint32(content[0:4])
		if magic == MachMagic64 {
			hdr := DecodeMachHeader64(content)
			switch hdr.FileType {
			case 1: // MH_OBJECT
				return KindMachOObject
			case 6: // MH_DYLIB
				return KindMachODylib
			}
		}
	}
	return KindUnknown
}
