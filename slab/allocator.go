package slab

import (
	"log/slog"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/mmfile"
	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/alloc"
	"github.com/joshuapare/slabkit/slab/arena"
	"github.com/joshuapare/slabkit/slab/pool"
)

// Allocator composes the slab arena and the pool registry.
type Allocator struct {
	cfg   Config
	arena *arena.Arena
	pools *pool.Manager
	log   *slog.Logger

	unmap func() error // set by NewWithMapping
}

// New builds an allocator over caller-supplied spans. headerMem holds one
// types.HeaderSize record per slab; slabMem holds the slabs themselves. The
// allocator manages as many slabs as both spans can hold.
func New(cfg Config, headerMem, slabMem []byte) (*Allocator, error) {
	cfg = cfg.withDefaults()
	sizes, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	a, err := arena.New(headerMem, slabMem, cfg.SlabSize)
	if err != nil {
		return nil, err
	}
	s := &Allocator{
		cfg:   cfg,
		arena: a,
		pools: pool.NewManager(a, sizes, cfg.Logger),
		log:   cfg.Logger,
	}
	s.log.Info("allocator ready",
		"slabs", a.UsableSlabCount(), "slab_size", cfg.SlabSize, "default_classes", len(sizes))
	return s, nil
}

// NewWithMapping builds an allocator over an anonymous memory mapping of
// memorySize bytes, rounded down to whole slabs. Close releases the mapping.
func NewWithMapping(cfg Config, memorySize uint64) (*Allocator, error) {
	cfg = cfg.withDefaults()
	if _, err := cfg.validate(); err != nil {
		return nil, err
	}
	n := int(memorySize / uint64(cfg.SlabSize))
	if uint64(n) != memorySize/uint64(cfg.SlabSize) {
		return nil, types.Invalidf("slab: memory size %d out of range", memorySize)
	}
	size, ok := buf.MulOverflowSafe(n, int(cfg.SlabSize))
	if !ok || n == 0 {
		return nil, types.Invalidf("slab: memory size %d holds no %d-byte slab", memorySize, cfg.SlabSize)
	}
	slabMem, unmap, err := mmfile.Anon(size)
	if err != nil {
		return nil, err
	}
	s, err := New(cfg, make([]byte, n*types.HeaderSize), slabMem)
	if err != nil {
		_ = unmap()
		return nil, err
	}
	s.unmap = unmap
	return s, nil
}

// Close releases a mapping created by NewWithMapping. Handles and byte
// slices obtained from the allocator must not be used afterwards.
func (s *Allocator) Close() error {
	if s.unmap == nil {
		return nil
	}
	err := s.unmap()
	s.unmap = nil
	return err
}

// Allocate returns a chunk of at least size bytes from pool pid, or
// types.NilHandle when the pool cannot supply one.
func (s *Allocator) Allocate(pid types.PoolID, size uint32) (types.Handle, error) {
	p, err := s.pools.Pool(pid)
	if err != nil {
		return types.NilHandle, err
	}
	return p.Allocate(size)
}

// Free returns h to the class that owns its slab.
func (s *Allocator) Free(h types.Handle) error {
	hdr, err := s.arena.HeaderFor(h)
	if err != nil {
		return err
	}
	info := hdr.Info()
	if info.PoolID == types.InvalidPoolID {
		// Released between the lookup and the read.
		return types.InvalidWrap(arena.ErrUnassigned, "free %s", h)
	}
	p, err := s.pools.Pool(info.PoolID)
	if err != nil {
		panic(types.Invariantf("slab: %s tagged with unknown pool %d", h, info.PoolID))
	}
	return p.Free(h, info.ClassID)
}

// AllocInfo returns the pool, class and chunk size of h.
func (s *Allocator) AllocInfo(h types.Handle) (types.AllocInfo, error) {
	hdr, err := s.arena.HeaderFor(h)
	if err != nil {
		return types.AllocInfo{}, err
	}
	return hdr.Info(), nil
}

// Bytes returns the memory of chunk h, sized to its class.
func (s *Allocator) Bytes(h types.Handle) ([]byte, error) {
	hdr, err := s.arena.HeaderFor(h)
	if err != nil {
		return nil, err
	}
	return s.arena.ChunkBytes(h, hdr.AllocSize())
}

// AddPool creates a pool with a byte budget. A nil allocSizes uses the
// default class sizes.
func (s *Allocator) AddPool(name string, size uint64, allocSizes []uint32, ensureProvisionable bool) (types.PoolID, error) {
	return s.pools.AddPool(name, size, allocSizes, ensureProvisionable)
}

// GrowPool raises the budget of pid by bytes if enough memory is unreserved.
func (s *Allocator) GrowPool(pid types.PoolID, bytes uint64) (bool, error) {
	return s.pools.GrowPool(pid, bytes)
}

// ShrinkPool lowers the budget of pid by bytes. The pool may be over its
// limit until slab releases return the excess.
func (s *Allocator) ShrinkPool(pid types.PoolID, bytes uint64) (bool, error) {
	return s.pools.ShrinkPool(pid, bytes)
}

// ResizePools moves bytes of budget from src to dst.
func (s *Allocator) ResizePools(src, dst types.PoolID, bytes uint64) (bool, error) {
	return s.pools.ResizePools(src, dst, bytes)
}

// PoolID looks a pool up by name.
func (s *Allocator) PoolID(name string) (types.PoolID, error) { return s.pools.PoolID(name) }

// PoolName returns the name of pool pid.
func (s *Allocator) PoolName(pid types.PoolID) (string, error) { return s.pools.PoolName(pid) }

// PoolIDs returns every pool id in creation order.
func (s *Allocator) PoolIDs() []types.PoolID { return s.pools.PoolIDs() }

// Pool returns pool pid.
func (s *Allocator) Pool(pid types.PoolID) (*pool.Pool, error) { return s.pools.Pool(pid) }

// PoolsOverLimit returns the pools holding more slab memory than their budget.
func (s *Allocator) PoolsOverLimit() []types.PoolID { return s.pools.PoolsOverLimit() }

// MemorySize returns the bytes of slab memory under management.
func (s *Allocator) MemorySize() uint64 { return s.arena.MemorySize() }

// UnreservedMemorySize returns the memory not promised to any pool.
func (s *Allocator) UnreservedMemorySize() uint64 { return s.pools.UnreservedBytes() }

// AdvisedMemorySize returns the memory currently advised away.
func (s *Allocator) AdvisedMemorySize() uint64 { return s.pools.AdvisedBytes() }

// SlabSize returns the slab size.
func (s *Allocator) SlabSize() uint32 { return s.cfg.SlabSize }

// AllSlabsAllocated reports whether every usable slab has been granted.
func (s *Allocator) AllSlabsAllocated() bool { return s.arena.AllSlabsAllocated() }

// PoolAllSlabsAllocated reports whether pool pid has no room for another slab.
func (s *Allocator) PoolAllSlabsAllocated(pid types.PoolID) (bool, error) {
	p, err := s.pools.Pool(pid)
	if err != nil {
		return false, err
	}
	return p.AllSlabsAllocated(), nil
}

// AllocSizes returns the default class sizes.
func (s *Allocator) AllocSizes() []uint32 { return s.pools.DefaultAllocSizes() }

// AllocSize returns the chunk size of class cid in pool pid.
func (s *Allocator) AllocSize(pid types.PoolID, cid types.ClassID) (uint32, error) {
	c, err := s.class(pid, cid)
	if err != nil {
		return 0, err
	}
	return c.ChunkSize(), nil
}

// AllocationClassID returns the class of pool pid that serves size bytes.
func (s *Allocator) AllocationClassID(pid types.PoolID, size uint32) (types.ClassID, error) {
	p, err := s.pools.Pool(pid)
	if err != nil {
		return types.InvalidClassID, err
	}
	c, err := p.ClassFor(size)
	if err != nil {
		return types.InvalidClassID, err
	}
	return c.ID(), nil
}

// ReclaimAdvisedSlabs puts up to n advised slabs back into service and
// returns how many were reclaimed.
func (s *Allocator) ReclaimAdvisedSlabs(n int) int {
	got := s.arena.ReclaimAdvised(n)
	if got > 0 {
		s.pools.AddAdvised(-int64(got) * int64(s.cfg.SlabSize))
		s.log.Info("advised slabs reclaimed", "slabs", got)
	}
	return got
}

func (s *Allocator) class(pid types.PoolID, cid types.ClassID) (*alloc.Class, error) {
	p, err := s.pools.Pool(pid)
	if err != nil {
		return nil, err
	}
	return p.Class(cid)
}
