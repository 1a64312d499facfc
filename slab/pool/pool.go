package pool

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/arena"
)

// Pool routes allocations to its classes and charges slab grants against a
// byte budget. It implements alloc.SlabSource for its classes.
type Pool struct {
	id      types.PoolID
	name    string
	arena   *arena.Arena
	classes []*alloc.Class // ascending chunk size, index == class id
	log     *slog.Logger

	mu        sync.Mutex
	budget    uint64            // bytes
	committed uint64            // slabs charged to the pool, in classes or free
	free      []types.SlabIndex // pool-owned slabs no class holds, FIFO
}

func newPool(id types.PoolID, name string, budget uint64, sizes []uint32, a *arena.Arena, log *slog.Logger) (*Pool, error) {
	p := &Pool{
		id:     id,
		name:   name,
		arena:  a,
		budget: budget,
		log:    log.With("pool", id, "pool_name", name),
	}
	p.classes = make([]*alloc.Class, len(sizes))
	for cid, size := range sizes {
		c, err := alloc.New(types.ClassID(cid), id, size, a, p, log)
		if err != nil {
			return nil, err
		}
		p.classes[cid] = c
	}
	return p, nil
}

// ID returns the pool id.
func (p *Pool) ID() types.PoolID { return p.id }

// Name returns the normalized pool name.
func (p *Pool) Name() string { return p.name }

// NumClasses returns the number of allocation classes.
func (p *Pool) NumClasses() int { return len(p.classes) }

// AllocSizes returns the chunk size of every class, ascending.
func (p *Pool) AllocSizes() []uint32 {
	out := make([]uint32, len(p.classes))
	for i, c := range p.classes {
		out[i] = c.ChunkSize()
	}
	return out
}

// Class returns the class with the given id.
func (p *Pool) Class(cid types.ClassID) (*alloc.Class, error) {
	if int(cid) >= len(p.classes) {
		return nil, types.InvalidWrap(ErrUnknownClass, "pool %d has %d classes, got %d", p.id, len(p.classes), cid)
	}
	return p.classes[cid], nil
}

// ClassFor returns the smallest class whose chunks hold size bytes.
func (p *Pool) ClassFor(size uint32) (*alloc.Class, error) {
	if size == 0 {
		return nil, types.InvalidWrap(ErrZeroSize, "pool %d", p.id)
	}
	i, _ := slices.BinarySearchFunc(p.classes, size, func(c *alloc.Class, size uint32) int {
		switch {
		case c.ChunkSize() < size:
			return -1
		case c.ChunkSize() > size:
			return 1
		}
		return 0
	})
	if i == len(p.classes) {
		return nil, types.InvalidWrap(ErrSizeTooLarge, "pool %d: %d bytes, largest class %d",
			p.id, size, p.classes[len(p.classes)-1].ChunkSize())
	}
	return p.classes[i], nil
}

// Allocate returns a chunk of at least size bytes, or types.NilHandle when the
// best-fit class is exhausted.
func (p *Pool) Allocate(size uint32) (types.Handle, error) {
	c, err := p.ClassFor(size)
	if err != nil {
		return types.NilHandle, err
	}
	return c.Allocate(), nil
}

// Free returns h to class cid.
func (p *Pool) Free(h types.Handle, cid types.ClassID) error {
	c, err := p.Class(cid)
	if err != nil {
		return err
	}
	return c.Free(h)
}

// AcquireSlab grants a slab to one of the pool's classes. Slabs on the pool's
// free list go first; a fresh arena slab is taken only while the budget has
// room for it.
func (p *Pool) AcquireSlab() (types.SlabIndex, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) > 0 {
		i := p.free[0]
		p.free = p.free[1:]
		return i, true
	}
	if (p.committed+1)*p.slabSize() > p.budget {
		return types.InvalidSlab, false
	}
	i, ok := p.arena.AllocateSlab()
	if !ok {
		return types.InvalidSlab, false
	}
	p.committed++
	return i, true
}

// ReturnSlab takes back a slab a class has released. The slab goes back to
// the arena when the pool is over its budget and stays on the pool's free
// list otherwise. It reports whether the arena got the slab.
func (p *Pool) ReturnSlab(i types.SlabIndex) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overLimitLocked() {
		p.uncommitLocked(i)
		p.arena.FreeSlab(i)
		p.log.Info("slab returned to arena", "slab", i, "committed", p.committed)
		return true
	}
	p.free = append(p.free, i)
	p.log.Debug("slab parked on pool free list", "slab", i, "free", len(p.free))
	return false
}

// ReturnToArena hands a pool-owned slab straight back to the arena.
func (p *Pool) ReturnToArena(i types.SlabIndex) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uncommitLocked(i)
	p.arena.FreeSlab(i)
	p.log.Info("slab returned to arena", "slab", i, "committed", p.committed)
}

// AdviseSlab uncharges a pool-owned slab and advises its memory away.
func (p *Pool) AdviseSlab(i types.SlabIndex) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.arena.AdviseSlab(i); err != nil {
		return err
	}
	p.uncommitLocked(i)
	p.log.Info("slab advised away", "slab", i, "committed", p.committed)
	return nil
}

// TakeFreeSlab removes the oldest slab from the pool's free list. The slab
// stays charged to the pool.
func (p *Pool) TakeFreeSlab() (types.SlabIndex, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return types.InvalidSlab, false
	}
	i := p.free[0]
	p.free = p.free[1:]
	return i, true
}

func (p *Pool) uncommitLocked(i types.SlabIndex) {
	if p.committed == 0 {
		panic(types.Invariantf("pool %d: uncommit slab %d with nothing committed", p.id, i))
	}
	p.committed--
}

func (p *Pool) slabSize() uint64 { return uint64(p.arena.SlabSize()) }

func (p *Pool) overLimitLocked() bool { return p.committed*p.slabSize() > p.budget }

// OverLimit reports whether the pool holds more slab memory than its budget.
func (p *Pool) OverLimit() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overLimitLocked()
}

// AllSlabsAllocated reports whether every slab charged to the pool sits in a
// class and the budget has no room for another.
func (p *Pool) AllSlabsAllocated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) == 0 && (p.committed+1)*p.slabSize() > p.budget
}

// Budget returns the byte budget.
func (p *Pool) Budget() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budget
}

// CommittedBytes returns the slab memory charged to the pool.
func (p *Pool) CommittedBytes() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.committed * p.slabSize()
}

// FreeSlabCount returns the number of slabs on the pool's free list.
func (p *Pool) FreeSlabCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

func (p *Pool) setBudget(b uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.budget = b
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	ID             types.PoolID  `json:"id"`
	Name           string        `json:"name"`
	Budget         uint64        `json:"budget"`
	CommittedBytes uint64        `json:"committed_bytes"`
	FreeSlabs      int           `json:"free_slabs"`
	OverLimit      bool          `json:"over_limit"`
	Classes        []alloc.Stats `json:"classes"`
}

// Stats returns a snapshot of the pool and its classes.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		ID:             p.id,
		Name:           p.name,
		Budget:         p.budget,
		CommittedBytes: p.committed * p.slabSize(),
		FreeSlabs:      len(p.free),
		OverLimit:      p.overLimitLocked(),
	}
	p.mu.Unlock()

	s.Classes = make([]alloc.Stats, len(p.classes))
	for i, c := range p.classes {
		s.Classes[i] = c.Stats()
	}
	return s
}
