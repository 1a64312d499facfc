//go:build !unix

// Package mmfile provides platform-specific helpers for mapping and advising
// the raw memory an allocator manages.
package mmfile

// Anon returns heap memory when anonymous mappings are not available.
func Anon(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return []byte{}, func() error { return nil }, nil
	}
	return make([]byte, size), func() error { return nil }, nil
}

// Advise is a no-op where madvise is unavailable; the memory stays resident.
func Advise(b []byte) error {
	clear(b)
	return nil
}
