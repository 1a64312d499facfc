package types

import "fmt"

// -----------------------------------------------------------------------------
// Core Identifiers
// -----------------------------------------------------------------------------

type (
	// PoolID identifies a pool within an allocator. Ids are dense and never reused.
	PoolID uint8
	// ClassID identifies an allocation class within its pool.
	ClassID uint8
	// SlabIndex is the position of a slab inside the arena.
	SlabIndex uint32
)

const (
	// InvalidPoolID marks a slab header that belongs to no pool.
	InvalidPoolID PoolID = 0xFF
	// InvalidClassID marks a slab header that belongs to no class. It is also
	// the "unassigned" victim/receiver value in the release protocol.
	InvalidClassID ClassID = 0xFF
	// InvalidSlab is returned where no slab applies.
	InvalidSlab SlabIndex = ^SlabIndex(0)
)

// Handle is the byte offset of a chunk within the slab-data span.
type Handle uint64

// NilHandle is the empty allocation result.
const NilHandle = ^Handle(0)

// IsNil reports whether h is the empty result.
func (h Handle) IsNil() bool { return h == NilHandle }

func (h Handle) String() string {
	if h.IsNil() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(0x%x)", uint64(h))
}

// AllocInfo is the classification recovered from a bare handle.
type AllocInfo struct {
	PoolID    PoolID
	ClassID   ClassID
	AllocSize uint32
}
