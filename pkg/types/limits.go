package types

// ============================================================================
// Allocator Limits
// ============================================================================

const (
	// MaxPools is the number of pools a single allocator can hold.
	MaxPools = 64

	// MaxClasses is the number of allocation classes a pool can hold.
	MaxClasses = 128

	// Alignment is the granularity of every chunk size.
	Alignment = 8

	// HeaderSize is the size of one slab header record in header memory.
	HeaderSize = 8

	// DefaultSlabSize is the slab size used when the configuration leaves it unset.
	DefaultSlabSize = 4 << 20 // 4 MiB

	// MinSlabSize and MaxSlabSize bound the configurable slab size.
	MinSlabSize = 64 << 10 // 64 KiB
	MaxSlabSize = 1 << 30  // 1 GiB

	// DefaultMinAllocSize and DefaultGrowthFactor seed the size-class generator.
	DefaultMinAllocSize = 72
	DefaultGrowthFactor = 1.25
)
