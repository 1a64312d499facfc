package alloc

import (
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/joshuapare/slabkit/slab/arena"
	"github.com/joshuapare/slabkit/pkg/types"
)

// SlabSource grants fresh slabs to a class. Pools implement it so every grant
// is charged against the pool budget.
type SlabSource interface {
	AcquireSlab() (types.SlabIndex, bool)
}

// IterStatus tells a slab walk how to proceed after visiting a chunk.
type IterStatus int

const (
	// IterContinue moves on to the next chunk.
	IterContinue IterStatus = iota
	// IterSkipSlab abandons the rest of the current slab.
	IterSkipSlab
	// IterAbort stops the whole walk.
	IterAbort
)

// Class allocates chunks of a single size from the slabs it owns.
type Class struct {
	id        types.ClassID
	poolID    types.PoolID
	chunkSize uint32
	perSlab   uint32
	arena     *arena.Arena
	source    SlabSource
	log       *slog.Logger

	mu        sync.Mutex
	slabs     []types.SlabIndex // owned slabs, oldest grant first
	uncarved  []types.SlabIndex // granted but not yet carved
	curr      types.SlabIndex   // slab being carved
	currOff   uint32            // next carve offset in curr
	freeList  []types.Handle    // freed chunks, LIFO
	releasing map[types.SlabIndex]*releaseState
	active    int64 // chunks handed out and not yet freed

	counters classCounters
}

// New creates a class serving chunkSize-byte chunks for pool pid.
func New(id types.ClassID, pid types.PoolID, chunkSize uint32, a *arena.Arena, src SlabSource, log *slog.Logger) (*Class, error) {
	if id == types.InvalidClassID || pid == types.InvalidPoolID {
		return nil, types.Invalidf("alloc: invalid ids pool %d class %d", pid, id)
	}
	if chunkSize == 0 || chunkSize > a.SlabSize() {
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: chunk size %d outside (0, %d]", chunkSize, a.SlabSize())
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Class{
		id:        id,
		poolID:    pid,
		chunkSize: chunkSize,
		perSlab:   a.SlabSize() / chunkSize,
		arena:     a,
		source:    src,
		log:       log.With("pool", pid, "class", id, "chunk_size", chunkSize),
		curr:      types.InvalidSlab,
		releasing: make(map[types.SlabIndex]*releaseState),
	}, nil
}

// ID returns the class id.
func (c *Class) ID() types.ClassID { return c.id }

// PoolID returns the id of the owning pool.
func (c *Class) PoolID() types.PoolID { return c.poolID }

// ChunkSize returns the fixed chunk size.
func (c *Class) ChunkSize() uint32 { return c.chunkSize }

// ChunksPerSlab returns how many chunks one slab holds.
func (c *Class) ChunksPerSlab() uint32 { return c.perSlab }

// Allocate returns a chunk, or types.NilHandle when neither the free list, the
// owned slabs nor the pool can supply one.
func (c *Class) Allocate() types.Handle {
	c.counters.allocCalls.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.freeList); n > 0 {
		h := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		c.active++
		c.counters.allocFreeList.Add(1)
		return h
	}

	if h, ok := c.carveLocked(); ok {
		return h
	}
	for len(c.uncarved) > 0 {
		c.startCarvingLocked(c.uncarved[0])
		c.uncarved = c.uncarved[1:]
		if h, ok := c.carveLocked(); ok {
			return h
		}
	}

	i, ok := c.source.AcquireSlab()
	if !ok {
		c.counters.exhausted.Add(1)
		return types.NilHandle
	}
	c.arena.Assign(i, c.poolID, c.id, c.chunkSize)
	c.slabs = append(c.slabs, i)
	c.counters.slabsAcquired.Add(1)
	c.log.Debug("slab acquired", "slab", i, "slabs", len(c.slabs))

	c.startCarvingLocked(i)
	h, ok := c.carveLocked()
	if !ok {
		panic(types.Invariantf("alloc: fresh slab %d yields no chunk of size %d", i, c.chunkSize))
	}
	return h
}

func (c *Class) startCarvingLocked(i types.SlabIndex) {
	c.curr = i
	c.currOff = 0
}

// carveLocked cuts the next chunk from the current slab. A slab marked for
// release is never carved.
func (c *Class) carveLocked() (types.Handle, bool) {
	if c.curr == types.InvalidSlab {
		return types.NilHandle, false
	}
	if c.arena.HeaderAt(c.curr).IsMarkedForRelease() || c.currOff/c.chunkSize >= c.perSlab {
		c.curr = types.InvalidSlab
		return types.NilHandle, false
	}
	h := c.arena.HandleAt(c.curr, c.currOff)
	c.currOff += c.chunkSize
	c.active++
	c.counters.allocCarved.Add(1)
	return h, true
}

// Free returns a chunk to the class.
func (c *Class) Free(h types.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, err := c.checkChunkLocked(h)
	if err != nil {
		return err
	}
	if rs := c.releasing[i]; rs != nil {
		if !rs.markFreed(c.chunkIndex(h)) {
			return types.InvalidWrap(ErrDoubleFree, "free %s", h)
		}
	} else {
		c.freeList = append(c.freeList, h)
	}
	c.active--
	c.counters.freeCalls.Add(1)
	return nil
}

// checkChunkLocked validates that h is a chunk of an owned slab and returns the slab.
func (c *Class) checkChunkLocked(h types.Handle) (types.SlabIndex, error) {
	i, ok := c.arena.SlabIndexOf(h)
	if !ok {
		return types.InvalidSlab, types.InvalidWrap(arena.ErrOutOfRange, "class %d: %s", c.id, h)
	}
	if !c.ownsLocked(i) {
		return types.InvalidSlab, types.InvalidWrap(ErrNotOwned, "class %d: %s in slab %d", c.id, h, i)
	}
	off := c.arena.OffsetInSlab(h)
	if off%c.chunkSize != 0 || off/c.chunkSize >= c.perSlab {
		return types.InvalidSlab, types.InvalidWrap(ErrMisaligned, "class %d: %s for chunk size %d", c.id, h, c.chunkSize)
	}
	return i, nil
}

// ownsLocked reports whether slab i is tagged for this class. Tags of owned
// slabs only change under c.mu, so the header is authoritative here.
func (c *Class) ownsLocked(i types.SlabIndex) bool {
	hdr := c.arena.HeaderAt(i)
	return hdr != nil && hdr.PoolID() == c.poolID && hdr.ClassID() == c.id
}

func (c *Class) chunkIndex(h types.Handle) uint32 {
	return c.arena.OffsetInSlab(h) / c.chunkSize
}

// OwnsSlab reports whether slab i currently belongs to the class.
func (c *Class) OwnsSlab(i types.SlabIndex) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ownsLocked(i)
}

// NumSlabs returns the number of slabs the class owns.
func (c *Class) NumSlabs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slabs)
}

// Slabs returns the owned slabs, oldest grant first.
func (c *Class) Slabs() []types.SlabIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.slabs)
}

// Active returns the number of chunks handed out and not yet freed.
func (c *Class) Active() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// AddSlab hands slab i to the class, typically as the receiver of a rebalance.
// The slab is carved lazily like any other grant.
func (c *Class) AddSlab(i types.SlabIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arena.Assign(i, c.poolID, c.id, c.chunkSize)
	c.slabs = append(c.slabs, i)
	c.uncarved = append(c.uncarved, i)
	c.counters.slabsAcquired.Add(1)
	c.log.Debug("slab received", "slab", i, "slabs", len(c.slabs))
}

// ForEachAllocation calls fn for every chunk offset of slab i, free or not.
// Slabs that are not owned, advised or being released are skipped without
// calling fn and reported as IterSkipSlab.
func (c *Class) ForEachAllocation(i types.SlabIndex, fn func(types.Handle) IterStatus) IterStatus {
	c.mu.Lock()
	eligible := c.ownsLocked(i) && c.releasing[i] == nil && !c.arena.HeaderAt(i).IsMarkedForRelease()
	c.mu.Unlock()
	if !eligible {
		return IterSkipSlab
	}
	for h := range c.Chunks(i) {
		switch fn(h) {
		case IterSkipSlab:
			return IterSkipSlab
		case IterAbort:
			return IterAbort
		}
	}
	return IterContinue
}

// Chunks lazily yields the handle of every chunk offset in slab i.
func (c *Class) Chunks(i types.SlabIndex) iter.Seq[types.Handle] {
	return func(yield func(types.Handle) bool) {
		for k := range c.perSlab {
			if !yield(c.arena.HandleAt(i, k*c.chunkSize)) {
				return
			}
		}
	}
}
