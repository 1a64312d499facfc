package buf

import (
	"math"
	"testing"
)

func TestMulOverflowSafe(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int
		want   int
		wantOK bool
	}{
		{"zero", 0, 10, 0, true},
		{"small", 8, 512, 4096, true},
		{"overflow", math.MaxInt/2 + 1, 2, 0, false},
		{"negative", -1, 4, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MulOverflowSafe(tt.a, tt.b)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("MulOverflowSafe(%d, %d) = (%d, %v), want (%d, %v)",
					tt.a, tt.b, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCheckSpan(t *testing.T) {
	if n, err := CheckSpan(64, 8, 8); err != nil || n != 64 {
		t.Fatalf("CheckSpan exact fit = (%d, %v), want (64, nil)", n, err)
	}
	if _, err := CheckSpan(63, 8, 8); err == nil {
		t.Fatalf("CheckSpan should reject a span larger than the buffer")
	}
	if _, err := CheckSpan(64, -1, 8); err == nil {
		t.Fatalf("CheckSpan should reject negative counts")
	}
	if _, err := CheckSpan(64, 1, 0); err == nil {
		t.Fatalf("CheckSpan should reject zero element size")
	}
	if _, err := CheckSpan(math.MaxInt, math.MaxInt, 2); err == nil {
		t.Fatalf("CheckSpan should reject overflowing spans")
	}
}

func TestFitCount(t *testing.T) {
	if got := FitCount(100, 8); got != 12 {
		t.Fatalf("FitCount(100, 8) = %d, want 12", got)
	}
	if got := FitCount(0, 8); got != 0 {
		t.Fatalf("FitCount(0, 8) = %d, want 0", got)
	}
}
