package slab

import (
	"log/slog"
	"time"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab/alloc"
)

// SizeConfig drives the default size-class generator.
type SizeConfig = alloc.SizeConfig

// GenerateAllocSizes computes class sizes for cfg and slabSize.
func GenerateAllocSizes(cfg SizeConfig, slabSize uint32) ([]uint32, error) {
	return alloc.GenerateAllocSizes(cfg, slabSize)
}

// BackoffConfig controls how CompleteSlabRelease waits for a slab to drain.
type BackoffConfig struct {
	Initial   time.Duration // first sleep between drain checks
	Max       time.Duration // cap for the doubling sleep
	WarnAfter int           // rounds before a warning is logged
}

// Config configures an Allocator. Zero fields take their defaults.
type Config struct {
	// AllocSizes are the class sizes of pools added without their own. When
	// empty they are generated from Sizes.
	AllocSizes []uint32

	// Sizes seeds the generator when AllocSizes is empty. A zero Factor
	// selects the default generator settings.
	Sizes SizeConfig

	SlabSize       uint32 // power of two, default types.DefaultSlabSize
	Logger         *slog.Logger
	ReleaseBackoff BackoffConfig
}

// DefaultConfig returns the configuration used for zero fields.
func DefaultConfig() Config {
	return Config{
		SlabSize: types.DefaultSlabSize,
		ReleaseBackoff: BackoffConfig{
			Initial:   50 * time.Microsecond,
			Max:       10 * time.Millisecond,
			WarnAfter: 1000,
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SlabSize == 0 {
		c.SlabSize = d.SlabSize
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.ReleaseBackoff.Initial <= 0 {
		c.ReleaseBackoff.Initial = d.ReleaseBackoff.Initial
	}
	if c.ReleaseBackoff.Max < c.ReleaseBackoff.Initial {
		c.ReleaseBackoff.Max = max(d.ReleaseBackoff.Max, c.ReleaseBackoff.Initial)
	}
	if c.ReleaseBackoff.WarnAfter <= 0 {
		c.ReleaseBackoff.WarnAfter = d.ReleaseBackoff.WarnAfter
	}
	if c.Sizes.Factor == 0 {
		c.Sizes = alloc.DefaultSizeConfig(c.SlabSize)
	}
	return c
}

// validate checks the slab size and resolves the default class sizes.
func (c Config) validate() ([]uint32, error) {
	if !format.IsPow2(uint64(c.SlabSize)) || c.SlabSize < types.MinSlabSize || c.SlabSize > types.MaxSlabSize {
		return nil, types.Invalidf("slab: slab size %d must be a power of two in [%d, %d]",
			c.SlabSize, types.MinSlabSize, types.MaxSlabSize)
	}
	if len(c.AllocSizes) > 0 {
		return alloc.ValidateAllocSizes(c.AllocSizes, c.SlabSize)
	}
	return alloc.GenerateAllocSizes(c.Sizes, c.SlabSize)
}
