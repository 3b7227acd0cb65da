// Package object implements component C, the object parser: turning raw
// file bytes into the sym package's File/InputSection/Symbol graph. It also
// implements the archive member extraction supplement of §11 — ar(1) is not
// detailed in spec.md §6 beyond being named, so the concrete record layout
// is grounded on the teacher's own ArHdr in pkg/linker/elf.go.
package object

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/hcyang1106/rld/internal/diag"
)

// arMagic is the fixed 8-byte prefix of every ar(1) archive.
const arMagic = "!<arch>\n"

// arHdrSize is the fixed size of one archive member header record.
const arHdrSize = 60

// arHdr is the on-disk archive member header: name, mtime, uid, gid, mode,
// size (ASCII decimal) and a fixed two-byte magic trailer, laid out exactly
// as the teacher's ArHdr.
type arHdr struct {
	name [16]byte
	date [12]byte
	uid  [6]byte
	gid  [6]byte
	mode [8]byte
	size [10]byte
	fmag [2]byte
}

func decodeArHdr(b []byte) arHdr {
	var h arHdr
	copy(h.name[:], b[0:16])
	copy(h.date[:], b[16:28])
	copy(h.uid[:], b[28:34])
	copy(h.gid[:], b[34:40])
	copy(h.mode[:], b[40:48])
	copy(h.size[:], b[48:58])
	copy(h.fmag[:], b[58:60])
	return h
}

func (h arHdr) hasPrefix(s string) bool {
	return strings.HasPrefix(string(h.name[:]), s)
}

// isSymtab reports whether this member is the archive's own symbol index
// (name "/" for the 32-bit format, "/SYM64/" for the 64-bit one); the
// linker rebuilds its own symbol index during resolution, so this member is
// always skipped rather than trusted.
func (h arHdr) isSymtab() bool {
	return h.hasPrefix("/ ") || h.hasPrefix("/SYM64/ ")
}

// isStrtab reports whether this member is the long-filename string table.
func (h arHdr) isStrtab() bool {
	return h.hasPrefix("// ")
}

func (h arHdr) size_() int {
	n, err := strconv.Atoi(strings.TrimSpace(string(h.size[:])))
	diag.MustNo(err)
	return n
}

// readName resolves the member's name, following the GNU long-name
// convention where name is "/<offset>" into strTab, otherwise a short
// "name/" trimmed at its trailing slash.
func (h arHdr) readName(strTab []byte) string {
	if h.hasPrefix("/") {
		start, err := strconv.Atoi(strings.TrimSpace(string(h.name[1:])))
		diag.MustNo(err)
		end := start + bytes.Index(strTab[start:], []byte("/\n"))
		return string(strTab[start:end])
	}
	end := bytes.IndexByte(h.name[:], '/')
	if end == -1 {
		return strings.TrimRight(string(h.name[:]), " ")
	}
	return string(h.name[:end])
}

// Member is one extracted archive member: its resolved name and its raw
// content slice (aliasing the archive's own backing array).
type Member struct {
	Name    string
	Content []byte
}

// IsArchive reports whether content begins with the ar(1) magic.
func IsArchive(content []byte) bool {
	return bytes.HasPrefix(content, []byte(arMagic))
}

// ExtractArchive walks every member record of an ar(1) archive and returns
// the object members in file order, skipping the symbol index and the
// long-name string table (both bookkeeping records, not object content).
// Member records are padded to an even offset per the ar(1) format.
func ExtractArchive(content []byte) []Member {
	if !IsArchive(content) {
		diag.Fatalf("object: not an archive (missing %q magic)", arMagic)
	}

	var strTab []byte
	var members []Member

	pos := len(arMagic)
	for len(content)-pos > 1 {
		if pos%2 == 1 {
			pos++
		}
		if pos+arHdrSize > len(content) {
			break
		}
		h := decodeArHdr(content[pos:])
		bodyStart := pos + arHdrSize
		bodyEnd := bodyStart + h.size_()
		if bodyEnd > len(content) {
			diag.Fatalf("object: archive member overruns file length")
		}
		body := content[bodyStart:bodyEnd]
		pos = bodyEnd

		switch {
		case h.isSymtab():
			// rebuilt by the resolver; never trusted from the archive itself
		case h.isStrtab():
			strTab = body
		default:
			members = append(members, Member{Name: h.readName(strTab), Content: body})
		}
	}
	return members
}
