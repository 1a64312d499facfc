// Package buf contains overflow-safe arithmetic for validating memory spans.
package buf

import (
	"fmt"
	"math"
)

// MulOverflowSafe multiplies two non-negative ints, returning ok = false when
// the result would overflow int.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt/b {
		return 0, false
	}
	return a * b, true
}

// CheckSpan validates that count elements of elementSize bytes fit in a
// buffer of bufLen bytes. Returns the number of bytes the elements occupy.
//
// This is the recommended way to validate a table before indexing into it:
//
//	n, err := buf.CheckSpan(len(headerMem), slabs, types.HeaderSize)
//	if err != nil {
//	    return fmt.Errorf("arena: header region: %w", err)
//	}
func CheckSpan(bufLen, count, elementSize int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("negative count: %d", count)
	}
	if elementSize <= 0 {
		return 0, fmt.Errorf("non-positive element size: %d", elementSize)
	}
	total, ok := MulOverflowSafe(count, elementSize)
	if !ok {
		return 0, fmt.Errorf("size overflow: %d * %d", count, elementSize)
	}
	if total > bufLen {
		return 0, fmt.Errorf("span of %d bytes exceeds buffer of %d bytes", total, bufLen)
	}
	return total, nil
}

// FitCount returns how many elementSize elements fit in bufLen bytes.
func FitCount(bufLen, elementSize int) int {
	if bufLen <= 0 || elementSize <= 0 {
		return 0
	}
	return bufLen / elementSize
}
