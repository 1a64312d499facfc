package main

import (
	"testing"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "4096", want: 4096},
		{in: "64KiB", want: 64 << 10},
		{in: "4MiB", want: 4 << 20},
		{in: "2 GiB", want: 2 << 30},
		{in: "16K", want: 16 << 10},
		{in: "100B", want: 100},
		{in: "", wantErr: true},
		{in: "1.5MiB", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "17179869184GiB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		0:        "0B",
		100:      "100B",
		64 << 10: "64KiB",
		3 << 20:  "3MiB",
		1 << 30:  "1GiB",
		1536:     "1536B",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestParseSlabSize(t *testing.T) {
	if got, err := parseSlabSize("1MiB"); err != nil || got != 1<<20 {
		t.Errorf("parseSlabSize(1MiB) = %d, %v", got, err)
	}
	for _, bad := range []string{"3MiB", "32KiB", "2GiB", "x"} {
		if _, err := parseSlabSize(bad); err == nil {
			t.Errorf("parseSlabSize(%q) succeeded", bad)
		}
	}
}
