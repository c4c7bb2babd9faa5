package sys

import (
	"encoding/binary"
	"unsafe"
)

// nativeEndian is the byte order of the running machine, used wherever a
// struct shared with the kernel is decoded without an explicit wire format.
var nativeEndian binary.ByteOrder = func() binary.ByteOrder {
	var i uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()
