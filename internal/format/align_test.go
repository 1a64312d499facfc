package format

import "testing"

func TestAlign8(t *testing.T) {
	tests := []struct{ in, up, down uint32 }{
		{0, 0, 0},
		{1, 8, 0},
		{7, 8, 0},
		{8, 8, 8},
		{9, 16, 8},
		{72, 72, 72},
		{90, 96, 88},
	}
	for _, tt := range tests {
		if got := Align8(tt.in); got != tt.up {
			t.Errorf("Align8(%d) = %d, want %d", tt.in, got, tt.up)
		}
		if got := AlignDown8(tt.in); got != tt.down {
			t.Errorf("AlignDown8(%d) = %d, want %d", tt.in, got, tt.down)
		}
	}
}

func TestIsPow2(t *testing.T) {
	for _, n := range []uint64{1, 2, 64 << 10, 4 << 20, 1 << 30} {
		if !IsPow2(n) {
			t.Errorf("IsPow2(%d) = false", n)
		}
	}
	for _, n := range []uint64{0, 3, 96 << 10, 1<<30 + 1} {
		if IsPow2(n) {
			t.Errorf("IsPow2(%d) = true", n)
		}
	}
}
