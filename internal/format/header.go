package format

// Slab header record layout (8 bytes, little-endian uint64):
//
//	bits  0-7   pool id      (0xFF = unassigned)
//	bits  8-15  class id     (0xFF = unassigned)
//	bits 16-47  alloc size   (chunk size the slab is carved into)
//	bits 48-55  flags
//	bits 56-63  reserved, zero
const (
	HeaderRecordSize = 8

	headerPoolShift  = 0
	headerClassShift = 8
	headerSizeShift  = 16
	headerFlagShift  = 48
)

// Header flags.
const (
	FlagAdvised          uint8 = 1 << 0
	FlagMarkedForRelease uint8 = 1 << 1
)

// HeaderRecord is the decoded form of one slab header.
type HeaderRecord struct {
	PoolID    uint8
	ClassID   uint8
	AllocSize uint32
	Flags     uint8
}

// Pack encodes r into its 64-bit word.
func (r HeaderRecord) Pack() uint64 {
	return uint64(r.PoolID)<<headerPoolShift |
		uint64(r.ClassID)<<headerClassShift |
		uint64(r.AllocSize)<<headerSizeShift |
		uint64(r.Flags)<<headerFlagShift
}

// UnpackHeader decodes a 64-bit header word.
func UnpackHeader(w uint64) HeaderRecord {
	return HeaderRecord{
		PoolID:    uint8(w >> headerPoolShift),
		ClassID:   uint8(w >> headerClassShift),
		AllocSize: uint32(w >> headerSizeShift),
		Flags:     uint8(w >> headerFlagShift),
	}
}

// EncodeHeader writes the record for slab idx into the header region b.
func EncodeHeader(b []byte, idx int, r HeaderRecord) {
	PutU64(b, idx*HeaderRecordSize, r.Pack())
}

// DecodeHeader reads the record for slab idx from the header region b.
func DecodeHeader(b []byte, idx int) HeaderRecord {
	return UnpackHeader(ReadU64(b, idx*HeaderRecordSize))
}
