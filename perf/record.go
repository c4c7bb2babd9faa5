package perf

import "encoding/binary"

// Record types consumed by the drain algorithm. Values match the kernel's
// perf_event_type enum (include/uapi/linux/perf_event.h); every other
// record type is skipped silently.
const (
	recordTypeLost   = 2
	recordTypeSample = 9
)

const (
	headerSize     = 8 // type: u32, misc: u16, size: u16
	sampleLenSize  = 4 // u32 length prefix on a SAMPLE record
	lostIDSize     = 8 // u64 id, skipped
	lostCountSize  = 8 // u64 count
)

// recordHeader is the fixed-size tuple at the start of every record.
type recordHeader struct {
	Type uint32
	Misc uint16
	Size uint16
}

// copyFromRing transfers len(dst) bytes from the circular data area starting
// at ring offset start (unbounded, taken mod dataSize), splitting the copy
// across the wrap point when the span crosses it. This is the single
// primitive that makes every other decode in this file wrap-safe, including
// a record header that itself straddles the boundary.
func copyFromRing(dst []byte, ring []byte, dataSize uint64, start uint64) {
	n := uint64(len(dst))
	if n == 0 {
		return
	}

	s := start % dataSize
	e := (start + n) % dataSize

	if s < e {
		copy(dst, ring[s:e])
		return
	}

	first := dataSize - s
	copy(dst[:first], ring[s:dataSize])
	copy(dst[first:], ring[:e])
}

// readHeader decodes the record header at ring offset tail, handling wrap.
func (r *Ring) readHeader(tail uint64) recordHeader {
	var buf [headerSize]byte
	copyFromRing(buf[:], r.data, r.dataSize, tail)

	return recordHeader{
		Type: binary.LittleEndian.Uint32(buf[0:4]),
		Misc: binary.LittleEndian.Uint16(buf[4:6]),
		Size: binary.LittleEndian.Uint16(buf[6:8]),
	}
}

// readUint32 decodes a wrap-safe u32 at the given ring offset.
func (r *Ring) readUint32(offset uint64) uint32 {
	var buf [4]byte
	copyFromRing(buf[:], r.data, r.dataSize, offset)
	return binary.LittleEndian.Uint32(buf[:])
}

// readUint64 decodes a wrap-safe u64 at the given ring offset.
func (r *Ring) readUint64(offset uint64) uint64 {
	var buf [8]byte
	copyFromRing(buf[:], r.data, r.dataSize, offset)
	return binary.LittleEndian.Uint64(buf[:])
}

// copyPayload copies len(dst) wrap-safe bytes from the ring into dst,
// starting at the given ring offset. Used for SAMPLE payloads.
func (r *Ring) copyPayload(dst []byte, offset uint64) {
	copyFromRing(dst, r.data, r.dataSize, offset)
}
