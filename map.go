package ebpf

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/newtools/ebpf/internal/sys"
)

// PerfEventArrayMapType identifies a BPF_MAP_TYPE_PERF_EVENT_ARRAY, the only
// map type a perf.Reader may be built on.
const PerfEventArrayMapType = sys.PerfEventArrayMapType

// HashMapType identifies a BPF_MAP_TYPE_HASH. perf.NewReader rejects a Map
// of this type; it exists so callers (and this package's own map-type-gate
// tests) have a concrete, constructible non-PerfEventArray map type to work
// with, without reaching for a general eBPF map/program loader.
const HashMapType = sys.HashMapType

// Map is a thin wrapper around a kernel BPF map, keyed by CPU id, whose
// values are perf event file descriptors. perf.Reader.Open registers each
// Ring it opens into a Map via Put; apart from Get, which tests use, nothing
// in this module reads back the stored values, the kernel side
// (bpf_perf_event_output) does.
type Map struct {
	fd         int
	mapType    uint32
	maxEntries uint32

	closeOnce sync.Once
}

// NewPerfEventArray creates a BPF_MAP_TYPE_PERF_EVENT_ARRAY with room for
// maxEntries CPUs (key size 4, value size 4: a CPU id maps to an fd).
func NewPerfEventArray(maxEntries uint32) (*Map, error) {
	m, err := NewMap(PerfEventArrayMapType, 4, 4, maxEntries)
	if err != nil {
		return nil, errors.Wrap(err, "create perf event array")
	}
	return m, nil
}

// NewMap creates a kernel BPF map of the given type via bpf(2)
// BPF_MAP_CREATE. perf.NewReader only accepts a Map whose Type is
// PerfEventArrayMapType; any other mapType is still a real, usable Map, just
// not one a perf.Reader can be built on.
func NewMap(mapType, keySize, valueSize, maxEntries uint32) (*Map, error) {
	fd, err := sys.MapCreate(mapType, keySize, valueSize, maxEntries)
	if err != nil {
		return nil, errors.Wrap(err, "create map")
	}

	m := &Map{
		fd:         fd,
		mapType:    mapType,
		maxEntries: maxEntries,
	}
	runtime.SetFinalizer(m, (*Map).Close)
	return m, nil
}

// Put stores value (an fd) at key (a CPU id).
func (m *Map) Put(key, value uint32) error {
	return sys.MapUpdateElem(m.fd, key, value)
}

// Get looks up the value stored at key via bpf(2) BPF_MAP_LOOKUP_ELEM. Used
// by tests to observe which fd a repeated Reader.Open call actually left
// behind in the map.
func (m *Map) Get(key uint32) (uint32, error) {
	return sys.MapLookupElem(m.fd, key)
}

// FD returns the map's file descriptor, e.g. to pin the map or look it up
// from a loaded eBPF program's instructions.
func (m *Map) FD() int { return m.fd }

// Type returns the map's type, as passed to NewMap (or
// PerfEventArrayMapType for NewPerfEventArray); this is what
// perf.NewReader's InvalidMapType guard checks.
func (m *Map) Type() uint32 { return m.mapType }

// MaxEntries returns the number of CPU-indexed slots the map has room for.
func (m *Map) MaxEntries() uint32 { return m.maxEntries }

// Close releases the map's file descriptor. Idempotent.
func (m *Map) Close() error {
	var err error
	m.closeOnce.Do(func() {
		runtime.SetFinalizer(m, nil)
		err = sys.Close(m.fd)
	})
	return err
}
