// Package slab is a slab allocator for cache engines.
//
// An Allocator manages one contiguous slab-data span and a separate
// header span. The slab span is cut into fixed-size slabs; each slab is
// owned by one allocation class of one pool at a time and carved into
// equal chunks. Chunks are addressed by Handle, a byte offset into the
// slab span.
//
// # Allocation
//
//	a, err := slab.NewWithMapping(slab.DefaultConfig(), 256<<20)
//	pid, err := a.AddPool("items", 128<<20, nil, false)
//	h, err := a.Allocate(pid, 300)
//	if h.IsNil() {
//	    // pool exhausted, evict and retry
//	}
//	buf, _ := a.Bytes(h)
//	...
//	err = a.Free(h)
//
// Exhaustion is not an error: Allocate returns types.NilHandle.
//
// # Slab release
//
// Capacity moves between classes (ModeRebalance) and between pools
// (ModeResize) one slab at a time:
//
//	rc, err := a.StartSlabRelease(ctx, pid, victim, types.InvalidClassID, slab.ModeResize)
//	// evict or move every entry the cache still keeps in rc.Slab()
//	err = a.ProcessAllocForRelease(rc, h, evict)
//	...
//	err = a.CompleteSlabRelease(ctx, rc)
//
// While a slab is being released frees of its chunks still succeed, no new
// chunk is carved from it and scans skip it.
package slab
