package perf

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/newtools/ebpf/internal/sys"
)

// Ring is the Buffer Handle over a single per-CPU perf ring buffer: a
// contiguous mapping of one metadata page followed by a power-of-two-sized
// data area. It owns the file descriptor and the mapping exclusively.
//
// A Ring is produced by Reader.Open and must be released with Close once
// the caller is done draining it.
type Ring struct {
	fd  int
	cpu int

	mmap []byte
	meta *unix.PerfEventMmapPage

	// data is the circular data area, exactly dataSize bytes, backed by
	// the same mapping as meta.
	data     []byte
	dataSize uint64
	pageSize int

	closeOnce sync.Once
}

// RawFD exposes the perf event file descriptor for external level-triggered
// polling (epoll/poll). Callers must not close, mutate, or unmap it; Ring
// retains exclusive ownership.
func (r *Ring) RawFD() int {
	return r.fd
}

// CPU returns the CPU id this Ring was opened for.
func (r *Ring) CPU() int {
	return r.cpu
}

// Close is the scoped release: best-effort disable of the perf event,
// unmap of size+page_size bytes, then close of the file descriptor, in
// that order. It is idempotent and safe to call on a Ring whose
// construction failed partway through mmap or enable.
func (r *Ring) Close() error {
	r.closeOnce.Do(func() {
		runtime.SetFinalizer(r, nil)

		// Best-effort: a failure here must not prevent unmap/close from
		// running, and the kernel tears the event down on fd close anyway.
		_ = sys.PerfEventDisable(r.fd)

		if r.mmap != nil {
			_ = sys.Munmap(r.mmap)
			r.mmap = nil
		}

		_ = sys.Close(r.fd)
	})
	return nil
}
