// Package hash supplies the content hashing used by the concurrent
// interner (shard selection), the mergeable-fragment table (shard
// selection) and the exception-frame processor (CIE identity).
// blake2b is used in place of the stdlib fnv/crc family because all three
// consumers hash arbitrary, sometimes attacker-influenced, object-file
// bytes at high volume across many goroutines and benefit from blake2b's
// speed and avalanche properties on short keys.
package hash

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Bytes returns a 64-bit hash of b suitable for shard/bucket selection.
func Bytes(b []byte) uint64 {
	sum := blake2b.Sum512(b)
	return binary.LittleEndian.Uint64(sum[:8])
}

// String is a convenience wrapper around Bytes for interned names.
func String(s string) uint64 {
	return Bytes([]byte(s))
}

// Digest is a full 256-bit content digest, used where a collision-resistant
// identity (not just a bucket hash) is required: CIE byte-identity
// comparison.
type Digest [32]byte

// Sum256 computes a Digest over b.
func Sum256(b []byte) Digest {
	return Digest(blake2b.Sum256(b))
}
