// queue.go implements the soft-capacity FIFO of demuxed packets.

package packet

import (
	"context"

	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
)

// Queue is a FIFO of packets with a soft capacity: TryPush always
// succeeds, and the producer is expected to throttle itself using Size
// against Capacity (the input pump does so via its back-pressure
// condition variable). Safe for concurrent producers and consumers.
type Queue struct {
	locker  xsync.Mutex
	items   []Packet
	head    int
	softCap int
}

func NewQueue(softCap int) *Queue {
	return &Queue{
		softCap: softCap,
	}
}

// TryPush enqueues a packet. It never blocks and never fails.
func (q *Queue) TryPush(ctx context.Context, pkt Packet) {
	q.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		q.items = append(q.items, pkt)
	})
}

// TryPop dequeues the oldest packet, if any.
func (q *Queue) TryPop(ctx context.Context) typing.Optional[Packet] {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() typing.Optional[Packet] {
		if q.head >= len(q.items) {
			return typing.Optional[Packet]{}
		}
		pkt := q.items[q.head]
		q.items[q.head] = Packet{}
		q.head++
		if q.head == len(q.items) {
			q.items = q.items[:0]
			q.head = 0
		}
		return typing.Opt(pkt)
	})
}

func (q *Queue) Size(ctx context.Context) int {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &q.locker, func() int {
		return len(q.items) - q.head
	})
}

func (q *Queue) IsEmpty(ctx context.Context) bool {
	return q.Size(ctx) == 0
}

// Capacity is the soft capacity the producer throttles against.
func (q *Queue) Capacity() int {
	return q.softCap
}

// AboveCapacity reports whether the queue currently holds more packets
// than its soft capacity.
func (q *Queue) AboveCapacity(ctx context.Context) bool {
	return q.Size(ctx) > q.softCap
}
