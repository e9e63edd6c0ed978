// Package buf holds the byte-level helpers shared by the page-backed allocators:
// little-endian cell header access and overflow-checked size arithmetic.
package buf

import "encoding/binary"

// I64LE reads a little-endian int64 at b[off:]. Returns 0 when out of bounds.
func I64LE(b []byte, off int) int64 {
	if !Has(b, off, 8) {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b[off:]))
}

// PutI64LE writes v little-endian at b[off:]. It reports false and writes nothing
// when out of bounds.
func PutI64LE(b []byte, off int, v int64) bool {
	if !Has(b, off, 8) {
		return false
	}
	binary.LittleEndian.PutUint64(b[off:], uint64(v))
	return true
}
