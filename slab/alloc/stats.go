package alloc

import "sync/atomic"

// classCounters holds the monotonic counters of a class. They are updated
// with atomics so Stats never needs the class lock for them.
type classCounters struct {
	allocCalls    atomic.Uint64 // Total Allocate() calls
	allocFreeList atomic.Uint64 // Allocations served from the free list
	allocCarved   atomic.Uint64 // Allocations carved from a slab
	exhausted     atomic.Uint64 // Allocations that found no memory
	freeCalls     atomic.Uint64 // Successful Free() calls
	slabsAcquired atomic.Uint64 // Slabs obtained from the pool or a rebalance
	slabsReleased atomic.Uint64 // Slabs handed back by CompleteRelease
}

// Stats is a point-in-time view of a class.
type Stats struct {
	ChunkSize     uint32 `json:"chunk_size"`
	ChunksPerSlab uint32 `json:"chunks_per_slab"`
	Slabs         int    `json:"slabs"`
	Releasing     int    `json:"releasing"`
	FreeChunks    int    `json:"free_chunks"`
	Active        int64  `json:"active"`

	AllocCalls    uint64 `json:"alloc_calls"`
	AllocFreeList uint64 `json:"alloc_free_list"`
	AllocCarved   uint64 `json:"alloc_carved"`
	Exhausted     uint64 `json:"exhausted"`
	FreeCalls     uint64 `json:"free_calls"`
	SlabsAcquired uint64 `json:"slabs_acquired"`
	SlabsReleased uint64 `json:"slabs_released"`
}

// Stats returns a snapshot of the class.
func (c *Class) Stats() Stats {
	c.mu.Lock()
	s := Stats{
		ChunkSize:     c.chunkSize,
		ChunksPerSlab: c.perSlab,
		Slabs:         len(c.slabs),
		Releasing:     len(c.releasing),
		FreeChunks:    len(c.freeList),
		Active:        c.active,
	}
	c.mu.Unlock()

	s.AllocCalls = c.counters.allocCalls.Load()
	s.AllocFreeList = c.counters.allocFreeList.Load()
	s.AllocCarved = c.counters.allocCarved.Load()
	s.Exhausted = c.counters.exhausted.Load()
	s.FreeCalls = c.counters.freeCalls.Load()
	s.SlabsAcquired = c.counters.slabsAcquired.Load()
	s.SlabsReleased = c.counters.slabsReleased.Load()
	return s
}
