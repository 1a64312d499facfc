package format

// Alignment utilities for chunk sizes and slab offsets.
// Every chunk size handed to an allocation class is a multiple of AlignmentMask+1.

// AlignmentMask is the mask for the 8-byte chunk alignment.
const AlignmentMask = 7

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
func Align8(n uint32) uint32 {
	return (n + AlignmentMask) &^ AlignmentMask
}

// AlignDown8 returns n aligned down to the previous 8-byte boundary.
//
// Example:
//
//	AlignDown8(15) = 8
//	AlignDown8(16) = 16
func AlignDown8(n uint32) uint32 {
	return n &^ AlignmentMask
}

// IsPow2 reports whether n is a non-zero power of two.
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
