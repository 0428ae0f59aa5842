package packet

import (
	"unsafe"
)

func ptrOf(b []byte) unsafe.Pointer {
	return unsafe.Pointer(unsafe.SliceData(b))
}
