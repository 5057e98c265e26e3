package iobuf

import "unsafe"

// uintptrOf returns the address of a byte slice's backing array, used only
// to compute the page-alignment offset in newAlignedBuffer. It does not
// retain the pointer beyond the calculation.
func uintptrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
