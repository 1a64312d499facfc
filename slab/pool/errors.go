package pool

import "errors"

var (
	// ErrUnknownPool indicates a pool id or name that is not registered.
	ErrUnknownPool = errors.New("pool: unknown pool")

	// ErrUnknownClass indicates a class id the pool does not have.
	ErrUnknownClass = errors.New("pool: unknown allocation class")

	// ErrSizeTooLarge indicates a request larger than the largest class.
	ErrSizeTooLarge = errors.New("pool: size exceeds every allocation class")

	// ErrZeroSize indicates an allocation of zero bytes.
	ErrZeroSize = errors.New("pool: zero-byte allocation")

	// ErrDuplicateName indicates a pool name already in use.
	ErrDuplicateName = errors.New("pool: duplicate pool name")

	// ErrEmptyName indicates a pool without a name.
	ErrEmptyName = errors.New("pool: empty pool name")

	// ErrInsufficientMemory indicates a budget larger than the unreserved memory.
	ErrInsufficientMemory = errors.New("pool: not enough unreserved memory")

	// ErrNotProvisionable indicates a budget too small to give every class a slab.
	ErrNotProvisionable = errors.New("pool: budget cannot provision every class")
)
