package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/pkg/types"
	"github.com/joshuapare/slabkit/slab"
)

var (
	sizesFactor   float64
	sizesMin      uint32
	sizesMax      string
	sizesSlabSize string
	sizesReduce   bool
)

func init() {
	cmd := newSizesCmd()
	cmd.Flags().Float64Var(&sizesFactor, "factor", types.DefaultGrowthFactor, "Growth factor between classes (> 1.0)")
	cmd.Flags().Uint32Var(&sizesMin, "min", types.DefaultMinAllocSize, "Smallest class size in bytes")
	cmd.Flags().StringVar(&sizesMax, "max", "", "Largest class size (default: slab size)")
	cmd.Flags().StringVar(&sizesSlabSize, "slab-size", "4MiB", "Slab size, a power of two")
	cmd.Flags().BoolVar(&sizesReduce, "reduce-fragmentation", false, "Snap sizes so no slab tail is wasted")
	rootCmd.AddCommand(cmd)
}

func newSizesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sizes",
		Short: "Print the allocation class sizes for a configuration",
		Long: `The sizes command runs the size-class generator and prints every class
with its chunk size, chunks per slab and the bytes wasted at the end of
each slab.

Example:
  slabctl sizes
  slabctl sizes --factor 2 --min 64 --max 1MiB --slab-size 1MiB
  slabctl sizes --reduce-fragmentation --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSizes()
		},
	}
	return cmd
}

// SizeClass describes one generated class.
type SizeClass struct {
	Class    int    `json:"class"`
	Size     uint32 `json:"size"`
	PerSlab  uint32 `json:"per_slab"`
	Waste    uint32 `json:"waste"`
}

func runSizes() error {
	slabSize, err := parseSlabSize(sizesSlabSize)
	if err != nil {
		return err
	}
	maxSize := slabSize
	if sizesMax != "" {
		n, err := parseBytes(sizesMax)
		if err != nil {
			return err
		}
		if n > uint64(^uint32(0)) {
			return fmt.Errorf("max size %s too large", sizesMax)
		}
		maxSize = uint32(n)
	}

	cfg := slab.SizeConfig{
		Factor:              sizesFactor,
		MinSize:             sizesMin,
		MaxSize:             maxSize,
		ReduceFragmentation: sizesReduce,
	}
	printVerbose("Generating sizes: factor=%v min=%d max=%d slab=%d reduce=%v\n",
		cfg.Factor, cfg.MinSize, cfg.MaxSize, slabSize, cfg.ReduceFragmentation)

	sizes, err := slab.GenerateAllocSizes(cfg, slabSize)
	if err != nil {
		return fmt.Errorf("generate sizes: %w", err)
	}

	classes := make([]SizeClass, len(sizes))
	for i, s := range sizes {
		classes[i] = SizeClass{Class: i, Size: s, PerSlab: slabSize / s, Waste: slabSize % s}
	}

	if jsonOut {
		return printJSON(classes)
	}

	printInfo("Slab size: %s, %d classes\n\n", formatBytes(uint64(slabSize)), len(classes))
	printInfo("%-6s %10s %10s %8s\n", "CLASS", "SIZE", "PER SLAB", "WASTE")
	for _, c := range classes {
		printInfo("%-6d %10d %10d %8d\n", c.Class, c.Size, c.PerSlab, c.Waste)
	}
	return nil
}

func parseSlabSize(s string) (uint32, error) {
	n, err := parseBytes(s)
	if err != nil {
		return 0, err
	}
	if n < types.MinSlabSize || n > types.MaxSlabSize || n&(n-1) != 0 {
		return 0, fmt.Errorf("slab size %s must be a power of two between %s and %s",
			s, formatBytes(types.MinSlabSize), formatBytes(types.MaxSlabSize))
	}
	return uint32(n), nil
}
