package perf

import "fmt"

// InvalidPageCount is returned by Reader.Open when pageCount is not a power
// of two.
type InvalidPageCount struct {
	PageCount int
}

func (e *InvalidPageCount) Error() string {
	return fmt.Sprintf("invalid page count %d, the value must be a power of two", e.PageCount)
}

// OpenError wraps a perf_event_open failure.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string { return fmt.Sprintf("perf_event_open failed: %s", e.Err) }
func (e *OpenError) Unwrap() error { return e.Err }

// MMapError wraps an mmap failure.
type MMapError struct {
	Err error
}

func (e *MMapError) Error() string { return fmt.Sprintf("mmap failed: %s", e.Err) }
func (e *MMapError) Unwrap() error { return e.Err }

// PerfEventEnableError wraps a PERF_EVENT_IOC_ENABLE failure.
type PerfEventEnableError struct {
	Err error
}

func (e *PerfEventEnableError) Error() string {
	return fmt.Sprintf("PERF_EVENT_IOC_ENABLE failed: %s", e.Err)
}
func (e *PerfEventEnableError) Unwrap() error { return e.Err }

// ErrNoBuffers is returned by ReadEvents when called with an empty output
// buffer slice. The tail is not touched.
var ErrNoBuffers = fmt.Errorf("read_events() was called with no output buffers")

// MoreSpaceNeeded is returned when at least one output buffer is too small
// for the next sample record and no prior progress was made this call; see
// Ring.ReadEvents for the full capacity protocol.
type MoreSpaceNeeded struct {
	Size int
}

func (e *MoreSpaceNeeded) Error() string {
	return fmt.Sprintf("the buffer needs to be of at least %d bytes", e.Size)
}

// IOError is a passthrough for unexpected OS errors surfaced during a drain.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// InvalidMapType is returned when a Reader is constructed over a Map that
// isn't a BPF_MAP_TYPE_PERF_EVENT_ARRAY.
type InvalidMapType struct {
	MapType uint32
}

func (e *InvalidMapType) Error() string {
	return fmt.Sprintf("map has invalid type %d, expected PERF_EVENT_ARRAY", e.MapType)
}

// InvalidCpu is returned when a CPU id given to Open or a Multiplexer is out
// of range for the underlying map.
type InvalidCpu struct {
	CPU uint32
}

func (e *InvalidCpu) Error() string { return fmt.Sprintf("invalid cpu %d", e.CPU) }

// ErrNoCpus is returned when a Multiplexer is asked to open zero CPUs.
var ErrNoCpus = fmt.Errorf("no CPUs specified")

// UpdateElementError wraps a bpf_map_update_elem failure made while
// registering a ring's fd into the outer map.
type UpdateElementError struct {
	Err error
}

func (e *UpdateElementError) Error() string {
	return fmt.Sprintf("bpf_map_update_elem failed: %s", e.Err)
}
func (e *UpdateElementError) Unwrap() error { return e.Err }
