package iobuf

import "encoding/binary"

// FillIntegrity writes, for each 8-byte aligned position within buf, a
// 64-bit little-endian value equal to (file offset of that position +
// salt). A partial 8-byte tail is written correctly (only its valid bytes
// are overwritten). The workload engine treats salt=0 as "integrity
// checking disabled" and does not call this with it; the function itself
// accepts any salt, 0 included.
func FillIntegrity(buf []byte, fileOffset uint64, salt uint64) {
	var tmp [8]byte
	i := 0
	for ; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(buf[i:i+8], fileOffset+uint64(i)+salt)
	}
	if i < len(buf) {
		binary.LittleEndian.PutUint64(tmp[:], fileOffset+uint64(i)+salt)
		copy(buf[i:], tmp[:len(buf)-i])
	}
}

// VerifyResult reports the outcome of VerifyIntegrity.
type VerifyResult struct {
	OK             bool
	MismatchOffset uint64 // absolute file offset of the first differing byte
	Expected       uint64 // expected 8-byte little-endian value at that block
	Actual         uint64 // actual 8-byte little-endian value at that block
}

// VerifyIntegrity recomputes the expected buffer content for fileOffset/salt
// and compares it against buf, byte by byte within each 8-byte-aligned
// block. On the first mismatch it reports the exact file offset and the
// expected/actual 64-bit values, per spec.md §4.2/§7.
func VerifyIntegrity(buf []byte, fileOffset uint64, salt uint64) VerifyResult {
	var tmp [8]byte
	i := 0
	for ; i+8 <= len(buf); i += 8 {
		binary.LittleEndian.PutUint64(tmp[:], fileOffset+uint64(i)+salt)
		if !bytesEqual(buf[i:i+8], tmp[:]) {
			return mismatch(buf[i:i+8], tmp[:], fileOffset+uint64(i))
		}
	}
	if i < len(buf) {
		binary.LittleEndian.PutUint64(tmp[:], fileOffset+uint64(i)+salt)
		if !bytesEqual(buf[i:], tmp[:len(buf)-i]) {
			return mismatch(buf[i:], tmp[:len(buf)-i], fileOffset+uint64(i))
		}
	}
	return VerifyResult{OK: true}
}

func bytesEqual(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mismatch locates the first differing byte within a (possibly partial)
// 8-byte block and reports it as a full 64-bit expected/actual pair
// (the partial tail is zero-extended for reporting purposes).
func mismatch(actual, expected []byte, blockOffset uint64) VerifyResult {
	firstDiff := 0
	for firstDiff < len(actual) && actual[firstDiff] == expected[firstDiff] {
		firstDiff++
	}
	var a, e [8]byte
	copy(a[:], actual)
	copy(e[:], expected)
	return VerifyResult{
		OK:             false,
		MismatchOffset: blockOffset + uint64(firstDiff),
		Expected:       binary.LittleEndian.Uint64(e[:]),
		Actual:         binary.LittleEndian.Uint64(a[:]),
	}
}
