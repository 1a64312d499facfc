// Package arena divides a caller-supplied span of raw memory into fixed-size
// slabs and keeps a dense table of per-slab metadata.
//
// # Overview
//
// An Arena owns two spans: the slab-data span that is carved into slabs, and
// a header span that mirrors the per-slab metadata in a fixed binary layout
// (see internal/format). The authoritative metadata lives in Header values,
// one packed atomic word per slab, so resolving a handle to its pool, class
// and chunk size is pure arithmetic plus one atomic load.
//
// # Slab Lifecycle
//
//	fresh ──AllocateSlab──▶ owned by a pool ──FreeSlab──▶ recycled
//	                                 │                       │
//	                                 └──AdviseSlab──▶ advised ──ReclaimAdvised──▶ recycled
//
// Slabs are never returned to the system. Advising a slab releases its
// physical pages with madvise but keeps the address range; advised slabs are
// not handed out again until reclaimed.
//
// # Thread Safety
//
// Header reads are lock-free. Slab grants, frees and header writes are
// serialized by an internal mutex that is always the innermost lock taken by
// the allocator.
package arena
