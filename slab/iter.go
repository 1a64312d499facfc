package slab

import (
	"iter"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/alloc"
)

// IterStatus tells a scan how to proceed after visiting a chunk.
type IterStatus = alloc.IterStatus

const (
	IterContinue = alloc.IterContinue
	IterSkipSlab = alloc.IterSkipSlab
	IterAbort    = alloc.IterAbort
)

// ForEachAllocation calls fn for every chunk offset of every assigned slab,
// free or not; fn must tell live chunks apart itself. The returned total
// counts slabs that were not scanned to the end: unassigned, advised or
// being released, and those fn skipped with IterSkipSlab.
// The scan takes no global lock.
func (s *Allocator) ForEachAllocation(fn func(types.Handle, types.AllocInfo) IterStatus) uint64 {
	var skipped uint64
	for i := range s.arena.UsableSlabCount() {
		idx := types.SlabIndex(i)
		hdr := s.arena.HeaderAt(idx)
		info := hdr.Info()
		if info.PoolID == types.InvalidPoolID || info.ClassID == types.InvalidClassID ||
			hdr.IsAdvised() || hdr.IsMarkedForRelease() {
			skipped++
			continue
		}
		c, err := s.class(info.PoolID, info.ClassID)
		if err != nil {
			skipped++
			continue
		}

		status := c.ForEachAllocation(idx, func(h types.Handle) IterStatus {
			return fn(h, info)
		})
		switch status {
		case IterAbort:
			return skipped
		case IterSkipSlab:
			s.log.Debug("slab skipped by scan", "slab", idx)
			skipped++
		}
	}
	return skipped
}

// Allocations yields every chunk that ForEachAllocation would visit.
// Stopping the range loop ends the scan.
func (s *Allocator) Allocations() iter.Seq2[types.Handle, types.AllocInfo] {
	return func(yield func(types.Handle, types.AllocInfo) bool) {
		s.ForEachAllocation(func(h types.Handle, info types.AllocInfo) IterStatus {
			if !yield(h, info) {
				return IterAbort
			}
			return IterContinue
		})
	}
}
