package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/slabkit/cmd/slabctl/logger"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	logDir  string
)

var closeLog = func() error { return nil }

var rootCmd = &cobra.Command{
	Use:   "slabctl",
	Short: "Plan and exercise slab allocator layouts",
	Long: `slabctl is a tool for planning slab allocator size classes and for
driving an in-memory allocator through a seeded workload, including moving
capacity between pools with slab releases.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logs")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Write JSON logs to a dated file in this directory")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// initLogging enables the allocator logs when --verbose or --log-dir is set.
func initLogging() error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	fn, err := logger.Init(logger.Options{
		Enabled: verbose || logDir != "",
		LogDir:  logDir,
		Level:   level,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	closeLog = fn
	return nil
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

var byteUnits = []struct {
	suffix string
	shift  uint
}{
	{"GiB", 30}, {"MiB", 20}, {"KiB", 10},
	{"G", 30}, {"M", 20}, {"K", 10},
	{"B", 0},
}

// parseBytes parses a byte count with an optional binary suffix, e.g. "64MiB".
func parseBytes(s string) (uint64, error) {
	num, shift := strings.TrimSpace(s), uint(0)
	for _, u := range byteUnits {
		if strings.HasSuffix(num, u.suffix) {
			num, shift = strings.TrimSpace(strings.TrimSuffix(num, u.suffix)), u.shift
			break
		}
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte count %q", s)
	}
	if n > (^uint64(0))>>shift {
		return 0, fmt.Errorf("byte count %q overflows", s)
	}
	return n << shift, nil
}

// formatBytes renders n with the largest binary unit that divides it.
func formatBytes(n uint64) string {
	for _, u := range byteUnits[:3] {
		if n != 0 && n%(1<<u.shift) == 0 {
			return fmt.Sprintf("%d%s", n>>u.shift, u.suffix)
		}
	}
	return fmt.Sprintf("%dB", n)
}
