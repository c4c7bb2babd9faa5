//go:build linux

package sys

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// bpf map commands, see include/uapi/linux/bpf.h. Only the three commands the
// outer Map collaborator needs are defined; this is not a general bpf(2)
// binding.
const (
	bpfMapCreate     = 0
	bpfMapLookupElem = 1
	bpfMapUpdateElem = 2
)

// PerfEventArrayMapType is BPF_MAP_TYPE_PERF_EVENT_ARRAY.
const PerfEventArrayMapType = 4

// HashMapType is BPF_MAP_TYPE_HASH.
const HashMapType = 1

type bpfMapCreateAttr struct {
	mapType    uint32
	keySize    uint32
	valueSize  uint32
	maxEntries uint32
	flags      uint32
}

type bpfMapOpAttr struct {
	mapFD   uint32
	padding uint32
	key     uint64
	value   uint64
	flags   uint64
}

func bpfCall(cmd int, attr unsafe.Pointer, size uintptr) (uintptr, error) {
	r1, _, errno := unix.Syscall(unix.SYS_BPF, uintptr(cmd), uintptr(attr), size)
	if errno != 0 {
		return r1, errno
	}
	return r1, nil
}

// MapCreate creates a map of the given type via bpf(2) BPF_MAP_CREATE.
func MapCreate(mapType, keySize, valueSize, maxEntries uint32) (int, error) {
	attr := bpfMapCreateAttr{
		mapType:    mapType,
		keySize:    keySize,
		valueSize:  valueSize,
		maxEntries: maxEntries,
	}
	fd, err := bpfCall(bpfMapCreate, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return -1, errors.Wrap(err, "bpf map create")
	}
	return int(fd), nil
}

// MapUpdateElem stores value at key in the map backed by mapFD, used by the
// Per-CPU Opener to register a newly opened ring's fd into the outer map.
func MapUpdateElem(mapFD int, key, value uint32) error {
	attr := bpfMapOpAttr{
		mapFD: uint32(mapFD),
		key:   uint64(uintptr(unsafe.Pointer(&key))),
		value: uint64(uintptr(unsafe.Pointer(&value))),
	}
	_, err := bpfCall(bpfMapUpdateElem, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return errors.Wrapf(err, "bpf map update elem (fd=%d key=%d)", mapFD, key)
	}
	return nil
}

// MapLookupElem reads the value stored at key in the map backed by mapFD.
func MapLookupElem(mapFD int, key uint32) (uint32, error) {
	var value uint32
	attr := bpfMapOpAttr{
		mapFD: uint32(mapFD),
		key:   uint64(uintptr(unsafe.Pointer(&key))),
		value: uint64(uintptr(unsafe.Pointer(&value))),
	}
	_, err := bpfCall(bpfMapLookupElem, unsafe.Pointer(&attr), unsafe.Sizeof(attr))
	if err != nil {
		return 0, errors.Wrapf(err, "bpf map lookup elem (fd=%d key=%d)", mapFD, key)
	}
	return value, nil
}
