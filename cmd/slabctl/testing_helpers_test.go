package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/joshuapare/slabkit/pkg/types"
)

// resetFlags sets every flag to a small, fast configuration.
func resetFlags() {
	verbose, quiet, jsonOut, logDir = false, false, false, ""

	sizesFactor = types.DefaultGrowthFactor
	sizesMin = types.DefaultMinAllocSize
	sizesMax = ""
	sizesSlabSize = "4MiB"
	sizesReduce = false

	simMemory = "4MiB"
	simSlabSize = "256KiB"
	simPools = nil
	simOps = 5000
	simSeed = 1
	simMaxSize = "4KiB"
	simFreePct = 40
	simRebalance = false
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	// Drain concurrently so large outputs cannot fill the pipe.
	done := make(chan struct{})
	var buf bytes.Buffer
	go func() {
		defer close(done)
		_, _ = buf.ReadFrom(r)
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout
	<-done

	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON and decodes it into v if non-nil
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	if v == nil {
		var result any
		v = &result
	}
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Errorf("invalid JSON output: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("output missing expected string %q\nGot: %s", want, output)
		}
	}
}
