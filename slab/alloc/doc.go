// Package alloc implements allocation classes: fixed-chunk-size allocators
// that carve the slabs they own into equal chunks.
//
// # Overview
//
// A Class serves chunks of one size. Allocation is O(1):
//
//  1. pop the most recently freed chunk (LIFO free list)
//  2. otherwise carve the next chunk from the slab currently being carved
//  3. otherwise start carving the next slab granted to the class
//  4. otherwise ask the SlabSource (the owning pool) for a fresh slab
//
// When all four fail the class is exhausted and Allocate returns
// types.NilHandle. Exhaustion is a normal result, not an error.
//
// # Slab Release
//
// A slab leaves a class only through the release protocol. StartRelease marks
// the slab, pulls its free chunks off the free list into a per-slab bitmap and
// stops carving from it. Frees of chunks in a marked slab land in the bitmap,
// so eviction can drain the slab while other slabs keep serving allocations.
// CompleteRelease hands the drained slab back; AbortRelease returns it to
// service.
//
// # Size Classes
//
// GenerateAllocSizes builds an ascending geometric sequence of chunk sizes:
//
//	72, 96, 120, 152, 192, 240, 304, ...  (factor 1.25, 8-byte aligned)
//
// With ReduceFragmentation each size is snapped up to the largest size that
// still fits the same number of chunks in a slab.
//
// # Thread Safety
//
// Every Class method is safe for concurrent use. A class serializes its own
// state with a private mutex; distinct classes never contend.
package alloc
