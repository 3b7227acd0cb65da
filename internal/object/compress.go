package object

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"strings"

	"github.com/hcyang1106/rld/internal/diag"
)

// decompress expands a debug section's raw bytes if it is compressed,
// covering both the new-style SHF_COMPRESSED (a small Chdr header, ch_type
// ELFCOMPRESS_ZLIB) and the legacy ".zdebug" convention (a 12-byte "ZLIB"
// magic plus a big-endian uint64 uncompressed size), per §6. objName and
// name identify the owning file and section for any fatal diagnostic;
// isCompressedFlag is Shdr.IsCompressed() for the new-style case.
func decompress(objName, name string, content []byte, isCompressedFlag bool) []byte {
	switch {
	case isCompressedFlag:
		return decompressChdr(objName, name, content)
	case strings.HasPrefix(name, ".zdebug"):
		return decompressLegacy(content)
	default:
		return content
	}
}

const (
	elfCompressZlib = 1
)

// decompressChdr strips the Elf64_Chdr header (ch_type, ch_reserved,
// ch_size, ch_addralign — 24 bytes on a 64-bit target) and inflates the
// remainder. A header too short to hold a Chdr, or a ch_type other than
// ELFCOMPRESS_ZLIB, is corrupt/unsupported input and fatal, matching
// object-file.cc's decompress: "corrupted compressed section" when the
// data is shorter than sizeof(ElfChdr<E>), "unsupported compression type"
// when ch_type isn't ELFCOMPRESS_ZLIB.
func decompressChdr(objName, name string, content []byte) []byte {
	if len(content) < 24 {
		diag.Fatalf("object: %s: %s: corrupted compressed section", objName, name)
	}
	chType := binary.LittleEndian.Uint32(content[0:4])
	if chType != elfCompressZlib {
		diag.Fatalf("object: %s: %s: unsupported compression type", objName, name)
	}
	return inflate(content[24:])
}

// decompressLegacy strips the 12-byte "ZLIB"+size prefix used by pre-gABI
// toolchains for .zdebug sections.
func decompressLegacy(content []byte) []byte {
	if len(content) < 12 || string(content[0:4]) != "ZLIB" {
		return content
	}
	return inflate(content[12:])
}

func inflate(compressed []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		diag.Fatalf("object: corrupt compressed section: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	diag.MustNo(err)
	return out
}
