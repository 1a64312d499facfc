package arena

import (
	"sync/atomic"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/pkg/types"
)

// unassignedWord is the packed form of a header that belongs to no pool.
var unassignedWord = format.HeaderRecord{
	PoolID:  uint8(types.InvalidPoolID),
	ClassID: uint8(types.InvalidClassID),
}.Pack()

// Header is the metadata record for one slab. The pool id, class id, chunk
// size and flags share a single atomic word so readers always observe a
// consistent (pool, class) pair.
type Header struct {
	word atomic.Uint64
}

// Record returns a consistent snapshot of the header.
func (h *Header) Record() format.HeaderRecord {
	return format.UnpackHeader(h.word.Load())
}

// PoolID returns the owning pool or types.InvalidPoolID.
func (h *Header) PoolID() types.PoolID { return types.PoolID(h.Record().PoolID) }

// ClassID returns the owning class or types.InvalidClassID.
func (h *Header) ClassID() types.ClassID { return types.ClassID(h.Record().ClassID) }

// AllocSize returns the chunk size; meaningful only when IsAssigned.
func (h *Header) AllocSize() uint32 { return h.Record().AllocSize }

// IsAssigned reports whether the slab is carved for some pool and class.
func (h *Header) IsAssigned() bool {
	r := h.Record()
	return types.PoolID(r.PoolID) != types.InvalidPoolID && types.ClassID(r.ClassID) != types.InvalidClassID
}

// IsAdvised reports whether the slab's memory has been advised away.
func (h *Header) IsAdvised() bool { return h.Record().Flags&format.FlagAdvised != 0 }

// IsMarkedForRelease reports whether a slab release is in progress.
func (h *Header) IsMarkedForRelease() bool {
	return h.Record().Flags&format.FlagMarkedForRelease != 0
}

// Info returns the allocation classification for chunks of this slab.
func (h *Header) Info() types.AllocInfo {
	r := h.Record()
	return types.AllocInfo{
		PoolID:    types.PoolID(r.PoolID),
		ClassID:   types.ClassID(r.ClassID),
		AllocSize: r.AllocSize,
	}
}
