package slab

import "github.com/joshuapare/slabkit/slab/pool"

// Stats is a point-in-time view of the allocator.
type Stats struct {
	MemorySize      uint64       `json:"memory_size"`
	SlabSize        uint32       `json:"slab_size"`
	UsableSlabs     int          `json:"usable_slabs"`
	AllocatedSlabs  int          `json:"allocated_slabs"`
	AdvisedSlabs    int          `json:"advised_slabs"`
	UnreservedBytes uint64       `json:"unreserved_bytes"`
	AdvisedBytes    uint64       `json:"advised_bytes"`
	Pools           []pool.Stats `json:"pools"`
}

// Stats returns a snapshot of the allocator and every pool. Pools are read
// one after another, so the snapshot is not atomic across pools.
func (s *Allocator) Stats() Stats {
	st := Stats{
		MemorySize:      s.arena.MemorySize(),
		SlabSize:        s.cfg.SlabSize,
		UsableSlabs:     s.arena.UsableSlabCount(),
		AllocatedSlabs:  s.arena.AllocatedSlabCount(),
		AdvisedSlabs:    s.arena.AdvisedSlabCount(),
		UnreservedBytes: s.pools.UnreservedBytes(),
		AdvisedBytes:    s.pools.AdvisedBytes(),
	}
	for _, p := range s.pools.Pools() {
		st.Pools = append(st.Pools, p.Stats())
	}
	return st
}
