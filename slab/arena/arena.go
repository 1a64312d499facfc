package arena

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/internal/mmfile"
	"github.com/joshuapare/slabkit/pkg/types"
)

var (
	// ErrOutOfRange indicates a handle outside the managed slab span.
	ErrOutOfRange = errors.New("arena: handle outside managed memory")

	// ErrUnassigned indicates a handle inside a slab that no class owns.
	ErrUnassigned = errors.New("arena: slab is not assigned to a pool")

	// ErrMisaligned indicates a handle that is not on a chunk boundary.
	ErrMisaligned = errors.New("arena: handle is not chunk aligned")
)

// Option configures an Arena.
type Option func(*Arena)

// WithAdviser replaces the function used to release the pages of an advised
// slab. The default is mmfile.Advise.
func WithAdviser(fn func([]byte) error) Option {
	return func(a *Arena) {
		if fn != nil {
			a.adviser = fn
		}
	}
}

// Arena carves the slab-data span into slabs and tracks their metadata.
type Arena struct {
	headerMem []byte
	slabMem   []byte
	slabSize  uint32
	slabShift uint
	headers   []Header
	adviser   func([]byte) error

	mu        sync.Mutex
	next      int               // first never-granted slab
	free      []types.SlabIndex // recycled slabs, FIFO
	advised   []types.SlabIndex // advised slabs, FIFO
	allocated int               // slabs currently granted to pools
}

// New builds an arena over the given spans. The number of usable slabs is
// bounded by both the slab-data span and the number of header records the
// header span can hold.
func New(headerMem, slabMem []byte, slabSize uint32, opts ...Option) (*Arena, error) {
	if !format.IsPow2(uint64(slabSize)) || slabSize < types.MinSlabSize || slabSize > types.MaxSlabSize {
		return nil, types.Invalidf("arena: slab size %d must be a power of two in [%d, %d]",
			slabSize, types.MinSlabSize, types.MaxSlabSize)
	}
	n := min(buf.FitCount(len(slabMem), int(slabSize)), buf.FitCount(len(headerMem), types.HeaderSize))
	if n == 0 {
		return nil, types.Invalidf("arena: %d header bytes and %d slab bytes hold no %d-byte slab",
			len(headerMem), len(slabMem), slabSize)
	}
	if uint64(n) >= uint64(types.InvalidSlab) {
		return nil, types.Invalidf("arena: %d slabs exceed the slab index space", n)
	}
	hdrBytes, err := buf.CheckSpan(len(headerMem), n, types.HeaderSize)
	if err != nil {
		return nil, types.Invalidf("arena: header region: %v", err)
	}
	a := &Arena{
		headerMem: headerMem[:hdrBytes],
		slabMem:   slabMem[:n*int(slabSize)],
		slabSize:  slabSize,
		slabShift: uint(bits.TrailingZeros32(slabSize)),
		headers:   make([]Header, n),
		adviser:   mmfile.Advise,
	}
	for _, opt := range opts {
		opt(a)
	}
	for i := range a.headers {
		a.writeLocked(types.SlabIndex(i), unassignedWord)
	}
	return a, nil
}

// SlabSize returns the size of every slab in bytes.
func (a *Arena) SlabSize() uint32 { return a.slabSize }

// UsableSlabCount returns the number of slabs the arena manages.
func (a *Arena) UsableSlabCount() int { return len(a.headers) }

// MemorySize returns the usable slab memory in bytes.
func (a *Arena) MemorySize() uint64 { return uint64(len(a.headers)) * uint64(a.slabSize) }

// SlabIndexOf returns the slab containing h.
func (a *Arena) SlabIndexOf(h types.Handle) (types.SlabIndex, bool) {
	if h.IsNil() || uint64(h) >= uint64(len(a.slabMem)) {
		return types.InvalidSlab, false
	}
	return types.SlabIndex(uint64(h) >> a.slabShift), true
}

// HandleAt returns the handle for byte offset off within slab i.
func (a *Arena) HandleAt(i types.SlabIndex, off uint32) types.Handle {
	return types.Handle(uint64(i)<<a.slabShift + uint64(off))
}

// OffsetInSlab returns the byte offset of h within its slab.
func (a *Arena) OffsetInSlab(h types.Handle) uint32 {
	return uint32(uint64(h) & uint64(a.slabSize-1))
}

// HeaderAt returns the header of slab i, or nil if i is out of range.
func (a *Arena) HeaderAt(i types.SlabIndex) *Header {
	if int(i) >= len(a.headers) {
		return nil
	}
	return &a.headers[i]
}

// HeaderFor resolves h to its slab header. It fails if h lies outside the
// span, inside an unassigned slab, or off the slab's chunk grid.
func (a *Arena) HeaderFor(h types.Handle) (*Header, error) {
	i, ok := a.SlabIndexOf(h)
	if !ok {
		return nil, types.InvalidWrap(ErrOutOfRange, "resolve %s", h)
	}
	hdr := &a.headers[i]
	r := hdr.Record()
	if types.PoolID(r.PoolID) == types.InvalidPoolID || types.ClassID(r.ClassID) == types.InvalidClassID {
		return nil, types.InvalidWrap(ErrUnassigned, "resolve %s in slab %d", h, i)
	}
	off := a.OffsetInSlab(h)
	if r.AllocSize == 0 || off%r.AllocSize != 0 || off/r.AllocSize >= a.slabSize/r.AllocSize {
		return nil, types.InvalidWrap(ErrMisaligned, "resolve %s for chunk size %d", h, r.AllocSize)
	}
	return hdr, nil
}

// SlabBytes returns the memory of slab i.
func (a *Arena) SlabBytes(i types.SlabIndex) []byte {
	start := uint64(i) << a.slabShift
	return a.slabMem[start : start+uint64(a.slabSize) : start+uint64(a.slabSize)]
}

// ChunkBytes returns the size bytes starting at h. The range must stay inside h's slab.
func (a *Arena) ChunkBytes(h types.Handle, size uint32) ([]byte, error) {
	i, ok := a.SlabIndexOf(h)
	if !ok {
		return nil, types.InvalidWrap(ErrOutOfRange, "chunk %s", h)
	}
	off := a.OffsetInSlab(h)
	if uint64(off)+uint64(size) > uint64(a.slabSize) {
		return nil, types.Invalidf("arena: chunk %s of %d bytes crosses slab %d", h, size, i)
	}
	s := a.SlabBytes(i)
	return s[off : off+size : off+size], nil
}

// AllocateSlab grants an unused slab. Never-used slabs are handed out in index
// order first, then recycled slabs in the order they were freed. Advised slabs
// are never granted. Returns false once no slab is available.
func (a *Arena) AllocateSlab() (types.SlabIndex, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var i types.SlabIndex
	switch {
	case a.next < len(a.headers):
		i = types.SlabIndex(a.next)
		a.next++
	case len(a.free) > 0:
		i = a.free[0]
		a.free = a.free[1:]
	default:
		return types.InvalidSlab, false
	}
	a.allocated++
	return i, true
}

// FreeSlab returns slab i to the arena and clears its header.
func (a *Arena) FreeSlab(i types.SlabIndex) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(i)
	a.writeLocked(i, unassignedWord)
	a.free = append(a.free, i)
}

// AdviseSlab releases the physical pages of slab i and parks it on the
// advised list. The slab must currently be granted to a pool.
func (a *Arena) AdviseSlab(i types.SlabIndex) error {
	if err := a.adviser(a.SlabBytes(i)); err != nil {
		return fmt.Errorf("arena: advise slab %d: %w", i, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked(i)
	rec := format.UnpackHeader(unassignedWord)
	rec.Flags = format.FlagAdvised
	a.writeLocked(i, rec.Pack())
	a.advised = append(a.advised, i)
	return nil
}

// ReclaimAdvised moves up to n advised slabs back into service and returns
// how many were moved.
func (a *Arena) ReclaimAdvised(n int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n = min(n, len(a.advised))
	for _, i := range a.advised[:n] {
		a.writeLocked(i, unassignedWord)
		a.free = append(a.free, i)
	}
	a.advised = a.advised[n:]
	return n
}

// AdvisedSlabCount returns the number of slabs currently advised away.
func (a *Arena) AdvisedSlabCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.advised)
}

// AllocatedSlabCount returns the number of slabs currently granted to pools.
func (a *Arena) AllocatedSlabCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated
}

// AllSlabsAllocated reports whether no slab is left to grant.
func (a *Arena) AllSlabsAllocated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next == len(a.headers) && len(a.free) == 0
}

// Assign tags slab i as carved into size-byte chunks for the given pool and class.
func (a *Arena) Assign(i types.SlabIndex, pid types.PoolID, cid types.ClassID, size uint32) {
	if pid == types.InvalidPoolID || cid == types.InvalidClassID || size == 0 || size > a.slabSize {
		panic(types.Invariantf("arena: assign slab %d to pool %d class %d size %d", i, pid, cid, size))
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := format.HeaderRecord{PoolID: uint8(pid), ClassID: uint8(cid), AllocSize: size}
	a.writeLocked(i, rec.Pack())
}

// Reset clears slab i back to the unassigned state without returning it.
func (a *Arena) Reset(i types.SlabIndex) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.writeLocked(i, unassignedWord)
}

// SetMarkedForRelease sets or clears the release mark on slab i.
func (a *Arena) SetMarkedForRelease(i types.SlabIndex, marked bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec := a.headers[i].Record()
	if marked {
		rec.Flags |= format.FlagMarkedForRelease
	} else {
		rec.Flags &^= format.FlagMarkedForRelease
	}
	a.writeLocked(i, rec.Pack())
}

// DecodeHeaders decodes the header mirror. It reflects every header write
// made before the call.
func (a *Arena) DecodeHeaders() []format.HeaderRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]format.HeaderRecord, len(a.headers))
	for i := range out {
		out[i] = format.DecodeHeader(a.headerMem, i)
	}
	return out
}

func (a *Arena) releaseLocked(i types.SlabIndex) {
	if a.allocated == 0 {
		panic(types.Invariantf("arena: release of slab %d with no slab granted", i))
	}
	a.allocated--
}

// writeLocked stores a header word and mirrors it into header memory.
func (a *Arena) writeLocked(i types.SlabIndex, w uint64) {
	a.headers[i].word.Store(w)
	format.EncodeHeader(a.headerMem, int(i), format.UnpackHeader(w))
}
