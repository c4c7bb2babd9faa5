//go:build linux

package sys

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// PerfTypeSoftware and PerfCountSWBPFOutput select the software event that
// bpf_perf_event_output() writes samples to, mirroring the attr the teacher
// hand-rolled in perfEventAttr before x/sys/unix grew PerfEventAttr.
const (
	PerfTypeSoftware     = unix.PERF_TYPE_SOFTWARE
	PerfCountSWBPFOutput = unix.PERF_COUNT_SW_BPF_OUTPUT
	PerfSampleRaw        = unix.PERF_SAMPLE_RAW
	perfFlagFDCloexec    = unix.PERF_FLAG_FD_CLOEXEC
)

// PerfEventOpenRaw opens a PERF_TYPE_SOFTWARE/PERF_COUNT_SW_BPF_OUTPUT event
// bound to cpu, with PERF_SAMPLE_RAW samples and the given wakeup watermark.
func PerfEventOpenRaw(cpu int, wakeupWatermark int) (int, error) {
	attr := unix.PerfEventAttr{
		Type:        uint32(PerfTypeSoftware),
		Config:      uint64(PerfCountSWBPFOutput),
		Sample_type: uint64(PerfSampleRaw),
		Wakeup:      uint32(wakeupWatermark),
		Bits:        unix.PerfBitWatermark,
	}
	attr.Size = uint32(unsafe.Sizeof(attr))

	fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, perfFlagFDCloexec)
	if err != nil {
		return -1, errors.Wrapf(err, "perf_event_open(cpu=%d)", cpu)
	}
	return fd, nil
}

// PerfEventEnable and PerfEventDisable issue PERF_EVENT_IOC_ENABLE/DISABLE.
func PerfEventEnable(fd int) error {
	return unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_ENABLE, 0)
}

func PerfEventDisable(fd int) error {
	return unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_DISABLE, 0)
}

// Mmap maps length bytes of fd, read+write, shared, at any address, offset 0.
func Mmap(fd int, length int) ([]byte, error) {
	return unix.Mmap(fd, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

func Munmap(b []byte) error {
	return unix.Munmap(b)
}

// Close closes fd and returns close(2)'s error unchanged; best-effort
// release paths discard it.
func Close(fd int) error {
	return unix.Close(fd)
}

func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// PageSize is sysconf(_SC_PAGESIZE).
func PageSize() int {
	return unix.Getpagesize()
}
