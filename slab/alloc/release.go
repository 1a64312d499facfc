package alloc

import (
	"math/bits"
	"slices"

	"github.com/joshuapare/slabkit/pkg/types"
)

// releaseState records which chunks of a releasing slab are free.
type releaseState struct {
	freed  []uint64 // bit per chunk
	nFreed uint32
}

func newReleaseState(chunks uint32) *releaseState {
	return &releaseState{freed: make([]uint64, (chunks+63)/64)}
}

// markFreed sets the bit for chunk k and reports whether it was clear.
func (rs *releaseState) markFreed(k uint32) bool {
	w, b := k/64, uint64(1)<<(k%64)
	if rs.freed[w]&b != 0 {
		return false
	}
	rs.freed[w] |= b
	rs.nFreed++
	return true
}

func (rs *releaseState) isFreed(k uint32) bool {
	return rs.freed[k/64]&(uint64(1)<<(k%64)) != 0
}

// forEachFreed calls fn with the index of every freed chunk in ascending order.
func (rs *releaseState) forEachFreed(fn func(k uint32)) {
	for w, word := range rs.freed {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			fn(uint32(w*64 + b))
			word &= word - 1
		}
	}
}

// OldestReleasableSlab returns the earliest-granted owned slab that is not
// already being released.
func (c *Class) OldestReleasableSlab() (types.SlabIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, i := range c.slabs {
		if c.releasing[i] == nil {
			return i, nil
		}
	}
	return types.InvalidSlab, types.InvalidWrap(ErrNoSlab, "class %d of pool %d", c.id, c.poolID)
}

// StartRelease marks slab i for release. Free chunks of the slab leave the
// free list and, together with chunks never carved, count as freed. It reports
// whether the slab is already fully drained.
func (c *Class) StartRelease(i types.SlabIndex) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ownsLocked(i) {
		return false, types.InvalidWrap(ErrNotOwned, "release slab %d from class %d", i, c.id)
	}
	if c.releasing[i] != nil {
		return false, types.InvalidWrap(ErrAlreadyReleasing, "release slab %d", i)
	}
	c.arena.SetMarkedForRelease(i, true)

	rs := newReleaseState(c.perSlab)
	c.freeList = slices.DeleteFunc(c.freeList, func(h types.Handle) bool {
		if s, _ := c.arena.SlabIndexOf(h); s != i {
			return false
		}
		rs.markFreed(c.chunkIndex(h))
		return true
	})

	switch {
	case c.curr == i:
		for k := c.currOff / c.chunkSize; k < c.perSlab; k++ {
			rs.markFreed(k)
		}
		c.curr = types.InvalidSlab
	case slices.Contains(c.uncarved, i):
		c.uncarved = slices.DeleteFunc(c.uncarved, func(s types.SlabIndex) bool { return s == i })
		for k := range c.perSlab {
			rs.markFreed(k)
		}
	}
	c.releasing[i] = rs

	c.log.Info("slab release started", "slab", i, "freed", rs.nFreed, "chunks", c.perSlab)
	return rs.nFreed == c.perSlab, nil
}

func (c *Class) releaseStateLocked(i types.SlabIndex) (*releaseState, error) {
	rs := c.releasing[i]
	if rs == nil {
		return nil, types.InvalidWrap(ErrNotReleasing, "slab %d of class %d", i, c.id)
	}
	return rs, nil
}

// checkReleasingChunkLocked validates that h is a chunk of releasing slab i.
func (c *Class) checkReleasingChunkLocked(i types.SlabIndex, h types.Handle) (*releaseState, error) {
	rs, err := c.releaseStateLocked(i)
	if err != nil {
		return nil, err
	}
	s, err := c.checkChunkLocked(h)
	if err != nil {
		return nil, err
	}
	if s != i {
		return nil, types.InvalidWrap(ErrForeignChunk, "%s is in slab %d, release is for slab %d", h, s, i)
	}
	return rs, nil
}

// IsAllocFreed reports whether chunk h of releasing slab i is free.
func (c *Class) IsAllocFreed(i types.SlabIndex, h types.Handle) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, err := c.checkReleasingChunkLocked(i, h)
	if err != nil {
		return false, err
	}
	return rs.isFreed(c.chunkIndex(h)), nil
}

// AllAllocsFreed reports whether every chunk of releasing slab i is free.
func (c *Class) AllAllocsFreed(i types.SlabIndex) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, err := c.releaseStateLocked(i)
	if err != nil {
		return false, err
	}
	return rs.nFreed == c.perSlab, nil
}

// ProcessAllocForRelease calls fn with h if h is still allocated. fn runs
// without the class lock held, so it may free h or read its memory; a
// concurrent free of h by someone else is not excluded.
func (c *Class) ProcessAllocForRelease(i types.SlabIndex, h types.Handle, fn func(types.Handle)) error {
	c.mu.Lock()
	rs, err := c.checkReleasingChunkLocked(i, h)
	freed := err == nil && rs.isFreed(c.chunkIndex(h))
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if !freed {
		fn(h)
	}
	return nil
}

// AbortRelease puts releasing slab i back into service. Chunks freed while the
// release was in progress go back on the free list.
func (c *Class) AbortRelease(i types.SlabIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, err := c.releaseStateLocked(i)
	if err != nil {
		return err
	}
	if rs.nFreed == c.perSlab {
		return types.InvalidWrap(ErrNothingOutstanding, "abort release of slab %d", i)
	}
	rs.forEachFreed(func(k uint32) {
		c.freeList = append(c.freeList, c.arena.HandleAt(i, k*c.chunkSize))
	})
	delete(c.releasing, i)
	c.arena.SetMarkedForRelease(i, false)
	c.log.Info("slab release aborted", "slab", i, "outstanding", c.perSlab-rs.nFreed)
	return nil
}

// CompleteRelease removes drained slab i from the class and clears its tag.
// The caller decides where the slab goes next.
func (c *Class) CompleteRelease(i types.SlabIndex) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, err := c.releaseStateLocked(i)
	if err != nil {
		return err
	}
	if rs.nFreed != c.perSlab {
		return types.InvalidWrap(ErrOutstanding, "complete release of slab %d: %d of %d chunks free",
			i, rs.nFreed, c.perSlab)
	}
	idx := slices.Index(c.slabs, i)
	if idx < 0 {
		panic(types.Invariantf("alloc: releasing slab %d missing from class %d", i, c.id))
	}
	c.slabs = slices.Delete(c.slabs, idx, idx+1)
	delete(c.releasing, i)
	c.arena.Reset(i)
	c.counters.slabsReleased.Add(1)
	c.log.Info("slab release completed", "slab", i, "slabs", len(c.slabs))
	return nil
}
