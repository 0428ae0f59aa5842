// demuxer.go states the contract the input pump requires from a
// demultiplexer.

package input

import (
	"context"
	"fmt"
)

type StreamKind int

const (
	StreamVideo = StreamKind(iota)
	StreamAudio
	StreamOther
)

func (k StreamKind) String() string {
	switch k {
	case StreamVideo:
		return "video"
	case StreamAudio:
		return "audio"
	default:
		return "other"
	}
}

type Rational struct {
	Num int
	Den int
}

func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

type StreamInfo struct {
	Index    int
	Kind     StreamKind
	TimeBase Rational
}

// Demuxer is the demultiplexer primitive the pump drives. The stream
// enumeration order is stable; ReadPacket returns io.EOF at end of
// stream; Seek takes a timestamp already rescaled into the reference
// stream's time base.
type Demuxer interface {
	Streams(ctx context.Context) []StreamInfo
	OpenDecoder(ctx context.Context, streamIndex int) (Rational, error)
	ReadPacket(ctx context.Context) (data []byte, streamIndex int, err error)
	Seek(ctx context.Context, streamIndex int, timestamp int64, backward bool) error
	Close(ctx context.Context) error
}
