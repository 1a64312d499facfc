package alloc

import "errors"

var (
	// ErrNotOwned indicates a handle in a slab this class does not own.
	ErrNotOwned = errors.New("alloc: slab not owned by class")

	// ErrMisaligned indicates a handle that is not on this class's chunk grid.
	ErrMisaligned = errors.New("alloc: handle not chunk aligned")

	// ErrDoubleFree indicates a second free of a chunk in a releasing slab.
	ErrDoubleFree = errors.New("alloc: chunk already freed")

	// ErrNotReleasing indicates a release operation on a slab that is not being released.
	ErrNotReleasing = errors.New("alloc: slab is not being released")

	// ErrAlreadyReleasing indicates a second release of the same slab.
	ErrAlreadyReleasing = errors.New("alloc: slab release already in progress")

	// ErrForeignChunk indicates a handle that belongs to a different slab than the release.
	ErrForeignChunk = errors.New("alloc: handle outside the releasing slab")

	// ErrNothingOutstanding indicates an abort of a release whose slab is already drained.
	ErrNothingOutstanding = errors.New("alloc: no outstanding chunks in releasing slab")

	// ErrOutstanding indicates a completion attempt while chunks are still allocated.
	ErrOutstanding = errors.New("alloc: releasing slab still has outstanding chunks")

	// ErrNoSlab indicates a class with no slab eligible for release.
	ErrNoSlab = errors.New("alloc: class has no releasable slab")

	// ErrBadSizes indicates an unusable set of chunk sizes.
	ErrBadSizes = errors.New("alloc: invalid allocation sizes")

	// ErrFactorTooSmall indicates a growth factor that cannot make progress.
	ErrFactorTooSmall = errors.New("alloc: growth factor too small to make progress")
)
