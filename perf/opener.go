package perf

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/newtools/ebpf"
	"github.com/newtools/ebpf/internal/sys"
)

// defaultWakeupWatermark mirrors the teacher's flagWakeupWatermark default:
// the kernel wakes up the reader (i.e. the fd becomes readable) once this
// many bytes have been written, independent of any consumer blocking here.
const defaultWakeupWatermark = 1

// Reader is the Per-CPU Opener: it validates page counts, computes mapping
// sizes, opens and enables the perf event for a given CPU, and registers
// the resulting fd into the outer Map so bpf_perf_event_output() on that
// CPU targets this Ring.
type Reader struct {
	m        *ebpf.Map
	pageSize int
}

// NewReader binds a Reader to m, which must be a BPF_MAP_TYPE_PERF_EVENT_ARRAY.
func NewReader(m *ebpf.Map) (*Reader, error) {
	if m.Type() != ebpf.PerfEventArrayMapType {
		return nil, &InvalidMapType{MapType: m.Type()}
	}

	return &Reader{
		m:        m,
		pageSize: sys.PageSize(),
	}, nil
}

// Open opens a Ring for cpuID and registers its fd into the Reader's map.
// pageCount defaults to 2 when zero and must otherwise be a power of two.
//
// Opening the same cpuID twice is not rejected: the second call overwrites
// the map entry for cpuID with the new Ring's fd ("last opener wins"); the
// Reader does not track which CPUs have already been opened.
func (rd *Reader) Open(cpuID int, pageCount int) (*Ring, error) {
	if pageCount == 0 {
		pageCount = 2
	}

	if cpuID < 0 || uint32(cpuID) >= rd.m.MaxEntries() {
		return nil, &InvalidCpu{CPU: uint32(cpuID)}
	}

	ring, err := newRing(cpuID, rd.pageSize, pageCount)
	if err != nil {
		return nil, err
	}

	if err := rd.m.Put(uint32(cpuID), uint32(ring.RawFD())); err != nil {
		ring.Close()
		return nil, &UpdateElementError{Err: err}
	}

	return ring, nil
}

// newRing performs the three-step acquisition sequence of the Per-CPU
// Opener: open the perf event fd, mmap size+page_size bytes over it, then
// enable the event. Any failure after the fd is obtained releases what was
// already acquired before returning: the fd is closed directly if
// SetNonblock or mmap fails, and Ring.Close releases fd and mapping if
// enable fails.
func newRing(cpuID int, pageSize int, pageCount int) (*Ring, error) {
	if pageCount <= 0 || pageCount&(pageCount-1) != 0 {
		return nil, &InvalidPageCount{PageCount: pageCount}
	}

	dataSize := pageSize * pageCount

	fd, err := sys.PerfEventOpenRaw(cpuID, defaultWakeupWatermark)
	if err != nil {
		return nil, &OpenError{Err: err}
	}

	if err := sys.SetNonblock(fd); err != nil {
		sys.Close(fd)
		return nil, &OpenError{Err: err}
	}

	mmap, err := sys.Mmap(fd, dataSize+pageSize)
	if err != nil {
		sys.Close(fd)
		return nil, &MMapError{Err: err}
	}

	// This relies on the fact that we allocated size+page_size bytes and
	// that perf_event_mmap_page is smaller than a page.
	meta := (*unix.PerfEventMmapPage)(unsafe.Pointer(&mmap[0]))

	dataStart := meta.Data_offset
	if dataStart == 0 {
		// Older kernels don't populate Data_offset; the data area always
		// starts immediately after the metadata page in that case.
		dataStart = uint64(pageSize)
	}

	ring := &Ring{
		fd:       fd,
		cpu:      cpuID,
		mmap:     mmap,
		meta:     meta,
		data:     mmap[dataStart : dataStart+uint64(dataSize)],
		dataSize: uint64(dataSize),
		pageSize: pageSize,
	}
	runtime.SetFinalizer(ring, (*Ring).Close)

	if err := sys.PerfEventEnable(fd); err != nil {
		ring.Close()
		return nil, &PerfEventEnableError{Err: err}
	}

	return ring, nil
}
