// Package types defines the identifiers, limits and typed errors shared by
// every slabkit package.
//
// The allocator hands out small, copyable handles (Handle) instead of raw
// pointers. A handle is the byte offset of a chunk inside the slab-data span,
// so the owning slab is recovered with a division and its metadata with an
// index into a dense header table.
//
// Errors carry a stable Kind so callers can branch on intent:
//
//	if errors.Is(err, types.ErrInvalidArgument) {
//	    // caller bug: bad id, size, address or release mode
//	}
//
// This package has no dependencies beyond the standard library.
package types
