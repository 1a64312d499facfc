package alloc

import (
	"slices"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/pkg/types"
)

// SizeConfig defines the geometric size-class strategy.
type SizeConfig struct {
	Factor  float64 // Growth factor between consecutive sizes, > 1.0
	MinSize uint32  // Smallest chunk size (rounded up to 8 bytes)
	MaxSize uint32  // Largest chunk size, <= slab size

	// ReduceFragmentation snaps each size up to the largest size that keeps
	// the same number of chunks per slab, so no slab tail is wasted.
	ReduceFragmentation bool
}

// DefaultSizeConfig returns the default generator settings for a slab size.
func DefaultSizeConfig(slabSize uint32) SizeConfig {
	return SizeConfig{
		Factor:  types.DefaultGrowthFactor,
		MinSize: types.DefaultMinAllocSize,
		MaxSize: slabSize,
	}
}

// GenerateAllocSizes computes the ascending chunk sizes for cfg:
//
//	MinSize, MinSize*Factor, MinSize*Factor^2, ... , MaxSize
//
// Every size is 8-byte aligned. Generation stops once a size no longer fits at
// least two chunks in a slab; MaxSize always closes the sequence.
func GenerateAllocSizes(cfg SizeConfig, slabSize uint32) ([]uint32, error) {
	switch {
	case cfg.Factor <= 1.0:
		return nil, types.InvalidWrap(ErrFactorTooSmall, "alloc: factor %v must be > 1.0", cfg.Factor)
	case cfg.MinSize == 0:
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: min size must be positive")
	case cfg.MaxSize > slabSize:
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: max size %d exceeds slab size %d", cfg.MaxSize, slabSize)
	case cfg.MinSize > cfg.MaxSize:
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: min size %d exceeds max size %d", cfg.MinSize, cfg.MaxSize)
	}

	var sizes []uint32
	size := format.Align8(cfg.MinSize)
	for size < cfg.MaxSize {
		perSlab := slabSize / size
		if perSlab <= 1 {
			break
		}
		if cfg.ReduceFragmentation {
			size = format.AlignDown8(slabSize / perSlab)
			if n := len(sizes); n > 0 && size <= sizes[n-1] {
				return nil, types.InvalidWrap(ErrFactorTooSmall,
					"alloc: factor %v makes no progress past %d bytes", cfg.Factor, sizes[n-1])
			}
			if size >= cfg.MaxSize {
				break
			}
		}
		sizes = append(sizes, size)

		next := format.Align8(uint32(float64(size) * cfg.Factor))
		if next <= size {
			return nil, types.InvalidWrap(ErrFactorTooSmall,
				"alloc: factor %v makes no progress past %d bytes", cfg.Factor, size)
		}
		size = next
	}

	last := min(format.Align8(cfg.MaxSize), slabSize)
	if n := len(sizes); n == 0 || last > sizes[n-1] {
		sizes = append(sizes, last)
	}
	if len(sizes) > types.MaxClasses {
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: %d sizes exceed %d classes", len(sizes), types.MaxClasses)
	}
	return sizes, nil
}

// ValidateAllocSizes returns sizes sorted ascending without duplicates, or an
// error if the set is empty, holds a zero or oversized entry, or needs more
// than types.MaxClasses classes.
func ValidateAllocSizes(sizes []uint32, slabSize uint32) ([]uint32, error) {
	if len(sizes) == 0 {
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: no allocation sizes")
	}
	out := slices.Clone(sizes)
	slices.Sort(out)
	out = slices.Compact(out)
	if out[0] == 0 {
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: zero allocation size")
	}
	if top := out[len(out)-1]; top > slabSize {
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: size %d exceeds slab size %d", top, slabSize)
	}
	if len(out) > types.MaxClasses {
		return nil, types.InvalidWrap(ErrBadSizes, "alloc: %d sizes exceed %d classes", len(out), types.MaxClasses)
	}
	return out, nil
}
