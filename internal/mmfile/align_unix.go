//go:build unix

package mmfile

import "unsafe"

// pageOffset returns the distance from the start of b to the first page boundary.
func pageOffset(b []byte, page int) int {
	addr := uintptr(unsafe.Pointer(&b[0]))
	rem := int(addr % uintptr(page))
	if rem == 0 {
		return 0
	}
	return page - rem
}
