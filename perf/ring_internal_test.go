package perf

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

// newFakeRing builds a Ring over plain Go-owned memory instead of a real
// perf_event_open mmap. This is the Go analogue of the reference
// implementation's syscall-override test harness: rather than swapping out
// the syscall layer, it swaps out the memory ReadEvents operates on, since
// every decode in this package only ever touches r.meta and r.data.
//
// dataSize must be a power of two. head/tail are the initial data_head and
// data_tail offsets (unmodded; ReadEvents always works in absolute offsets
// and mods by dataSize itself).
func newFakeRing(dataSize int, head, tail uint64) *Ring {
	metaBuf := make([]byte, 4096)
	meta := (*unix.PerfEventMmapPage)(unsafe.Pointer(&metaBuf[0]))
	meta.Data_head = head
	meta.Data_tail = tail

	return &Ring{
		fd:       -1,
		cpu:      0,
		meta:     meta,
		data:     make([]byte, dataSize),
		dataSize: uint64(dataSize),
		pageSize: 4096,
	}
}

// putHeader writes a record header at the given absolute ring offset,
// wrap-safe.
func (r *Ring) putHeader(offset uint64, typ uint32, size uint16) {
	var buf [headerSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], typ)
	binary.LittleEndian.PutUint16(buf[4:6], 0)
	binary.LittleEndian.PutUint16(buf[6:8], size)
	putToRing(r.data, r.dataSize, offset, buf[:])
}

// putSample writes a complete SAMPLE record (header + u32 length prefix +
// payload) at the given absolute ring offset and returns the offset one
// past the record, i.e. where the next record (or data_head) belongs.
func (r *Ring) putSample(offset uint64, payload []byte) uint64 {
	size := headerSize + sampleLenSize + len(payload)
	r.putHeader(offset, recordTypeSample, uint16(size))

	var lenBuf [sampleLenSize]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	putToRing(r.data, r.dataSize, offset+headerSize, lenBuf[:])

	putToRing(r.data, r.dataSize, offset+headerSize+sampleLenSize, payload)

	return offset + uint64(size)
}

// putLost writes a complete LOST record (header + u64 id + u64 count) at
// the given absolute ring offset and returns the offset one past it.
func (r *Ring) putLost(offset uint64, count uint64) uint64 {
	const size = headerSize + lostIDSize + lostCountSize
	r.putHeader(offset, recordTypeLost, size)

	var idBuf [lostIDSize]byte
	putToRing(r.data, r.dataSize, offset+headerSize, idBuf[:])

	var countBuf [lostCountSize]byte
	binary.LittleEndian.PutUint64(countBuf[:], count)
	putToRing(r.data, r.dataSize, offset+headerSize+lostIDSize, countBuf[:])

	return offset + size
}

// putToRing is copyFromRing run in reverse: it writes src into the
// circular buffer at offset start, splitting across the wrap point.
func putToRing(ring []byte, dataSize uint64, start uint64, src []byte) {
	n := uint64(len(src))
	if n == 0 {
		return
	}

	s := start % dataSize
	e := (start + n) % dataSize

	if s < e {
		copy(ring[s:e], src)
		return
	}

	first := dataSize - s
	copy(ring[s:dataSize], src[:first])
	copy(ring[:e], src[first:])
}
