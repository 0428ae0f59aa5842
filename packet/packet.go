// Package packet defines the demuxed packet buffer and the bounded
// queues decoupling the demux rate from the consumer's pull rate.
package packet

// Alignment of the packet payload, dictated by the SIMD requirements of
// downstream codecs.
const Alignment = 32

// Packet is an opaque owned byte buffer. Packets carry no timing
// metadata; ordering within a stream kind is preserved by the queue
// discipline. The zero value is the empty sentinel.
type Packet struct {
	data []byte
}

// New copies b into freshly allocated aligned storage.
func New(b []byte) Packet {
	if len(b) == 0 {
		return Packet{}
	}
	return Packet{data: alignedCopy(b)}
}

func alignedCopy(b []byte) []byte {
	buf := make([]byte, len(b)+Alignment-1)
	off := 0
	for uintptr(ptrOf(buf[off:]))%Alignment != 0 {
		off++
	}
	data := buf[off : off+len(b) : off+len(b)]
	copy(data, b)
	return data
}

func (p Packet) Data() []byte {
	return p.data
}

func (p Packet) Len() int {
	return len(p.data)
}

// IsEmpty reports whether p is the empty sentinel returned when a queue
// has no packet to hand out.
func (p Packet) IsEmpty() bool {
	return len(p.data) == 0
}
