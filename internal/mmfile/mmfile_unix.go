//go:build unix

// Package mmfile provides platform-specific helpers for mapping and advising
// the raw memory an allocator manages.
package mmfile

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Anon maps size bytes of private, zero-filled anonymous memory.
// The returned cleanup unmaps it; calling cleanup twice is a no-op.
func Anon(size int) ([]byte, func() error, error) {
	if size < 0 {
		return nil, nil, fmt.Errorf("mmfile: negative mapping size %d", size)
	}
	if size == 0 {
		return []byte{}, func() error { return nil }, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, fmt.Errorf("mmfile: mmap %d bytes: %w", size, err)
	}
	cleanup := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		if errors.Is(err, unix.EINVAL) {
			// Treat double-unmap as no-op for callers.
			return nil
		}
		return err
	}
	return data, cleanup, nil
}

// Advise tells the kernel the pages backing b may be reclaimed. The address
// range stays valid and reads back as zeroes once the kernel drops the pages.
//
// Heap-backed slices are not page aligned; for those the aligned interior is
// advised and the ragged edges are zeroed by hand.
func Advise(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	page := unix.Getpagesize()
	start := pageOffset(b, page)
	if start >= len(b) {
		clear(b)
		return nil
	}
	end := start + (len(b)-start)/page*page
	if end == start {
		clear(b)
		return nil
	}
	clear(b[:start])
	clear(b[end:])
	if err := unix.Madvise(b[start:end], unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("mmfile: madvise(MADV_DONTNEED): %w", err)
	}
	return nil
}
