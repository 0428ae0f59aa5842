// output.go defines the composited output frame and the subscription
// handles through which it is delivered.

package mixer

import (
	"context"
)

// HostBuffer is a CPU-side BGRA image buffer produced by an image pass.
type HostBuffer struct {
	Width  int
	Height int
	Data   []byte
}

func NewHostBuffer(width, height int) *HostBuffer {
	return &HostBuffer{
		Width:  width,
		Height: height,
		Data:   make([]byte, width*height*4),
	}
}

// OutputFrame is one composited tick: the final image buffer plus the
// mixed 16-bit PCM samples. Subscribers share it read-only.
type OutputFrame struct {
	Image *HostBuffer
	Audio []int16
}

// Subscriber receives output frames synchronously on the mixer's
// executor goroutine; it must not perform long work.
type Subscriber func(context.Context, *OutputFrame)

// Subscription controls the membership of one subscriber; closing it
// removes the subscriber from the device.
type Subscription struct {
	device *Device
	id     uint64
}

func (s *Subscription) Close(ctx context.Context) error {
	if s.device == nil {
		return nil
	}
	d := s.device
	s.device = nil
	return d.disconnect(ctx, s.id)
}
