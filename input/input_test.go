package input

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avmixer/diagnostics"
	"github.com/xaionaro-go/avmixer/packet"
)

type stubPacket struct {
	data        []byte
	streamIndex int
}

type stubDemuxer struct {
	streams    []StreamInfo
	decoderTB  map[int]Rational
	decoderErr map[int]error
	seekFails  bool

	mu            sync.Mutex
	packets       []stubPacket
	pos           int
	seekCount     int
	lastSeekIndex int
	lastSeekTS    int64
	closed        bool
}

var _ Demuxer = (*stubDemuxer)(nil)

func (d *stubDemuxer) Streams(ctx context.Context) []StreamInfo {
	return d.streams
}

func (d *stubDemuxer) OpenDecoder(ctx context.Context, streamIndex int) (Rational, error) {
	if err := d.decoderErr[streamIndex]; err != nil {
		return Rational{}, err
	}
	if tb, ok := d.decoderTB[streamIndex]; ok {
		return tb, nil
	}
	return Rational{Num: 1, Den: 25}, nil
}

func (d *stubDemuxer) ReadPacket(ctx context.Context) ([]byte, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pos >= len(d.packets) {
		return nil, 0, io.EOF
	}
	p := d.packets[d.pos]
	d.pos++
	return p.data, p.streamIndex, nil
}

func (d *stubDemuxer) Seek(ctx context.Context, streamIndex int, timestamp int64, backward bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seekFails {
		return errors.New("seek is not supported")
	}
	d.seekCount++
	d.lastSeekIndex = streamIndex
	d.lastSeekTS = timestamp
	d.pos = 0
	return nil
}

func (d *stubDemuxer) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *stubDemuxer) SeekCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seekCount
}

func videoAudioStreams() []StreamInfo {
	return []StreamInfo{
		{Index: 0, Kind: StreamVideo, TimeBase: Rational{Num: 1, Den: 90000}},
		{Index: 1, Kind: StreamAudio, TimeBase: Rational{Num: 1, Den: 48000}},
	}
}

func collectPackets(
	ctx context.Context,
	t *testing.T,
	get func(context.Context) packet.Packet,
	n int,
) [][]byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var got [][]byte
	for len(got) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after collecting %d/%d packets", len(got), n)
		}
		pkt := get(ctx)
		if pkt.IsEmpty() {
			time.Sleep(time.Millisecond)
			continue
		}
		got = append(got, pkt.Data())
	}
	return got
}

func TestNoLoopEOF(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams()}
	for i := 0; i < 10; i++ {
		d.packets = append(d.packets, stubPacket{data: []byte{byte(i)}, streamIndex: 0})
	}

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{Loop: false})
	require.NoError(t, err)
	defer in.Close(ctx)

	got := collectPackets(ctx, t, in.GetVideoPacket, 10)
	for i, data := range got {
		require.Equal(t, []byte{byte(i)}, data)
	}

	require.Eventually(t, func() bool { return in.IsEOF(ctx) }, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		require.True(t, in.GetVideoPacket(ctx).IsEmpty())
	}
}

func TestLoopWrap(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams()}
	for i := 0; i < 10; i++ {
		d.packets = append(d.packets,
			stubPacket{data: []byte{byte(i)}, streamIndex: 0},
			stubPacket{data: []byte{byte(i)}, streamIndex: 1},
		)
	}

	graph := diagnostics.NewGraph(ctx, "test")
	in, err := New(ctx, graph, d, Config{Loop: true})
	require.NoError(t, err)
	defer in.Close(ctx)

	got := collectPackets(ctx, t, in.GetVideoPacket, 25)
	for i, data := range got {
		require.Equal(t, []byte{byte(i % 10)}, data)
	}

	require.GreaterOrEqual(t, d.SeekCount(), 2)
	require.GreaterOrEqual(t, graph.TagCount(ctx, "seek"), uint64(2))
	require.False(t, in.IsEOF(ctx))
}

func TestBackPressure(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams()}
	for i := 0; i < 2; i++ {
		d.packets = append(d.packets,
			stubPacket{data: []byte{byte(i)}, streamIndex: 0},
			stubPacket{data: []byte{byte(i)}, streamIndex: 1},
		)
	}

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{Loop: true})
	require.NoError(t, err)
	defer in.Close(ctx)

	require.Eventually(t, func() bool {
		return in.VideoQueueSize(ctx) > PacketBufferCount &&
			in.AudioQueueSize(ctx) > PacketBufferCount
	}, 5*time.Second, time.Millisecond)

	// the pump now sits on its condition variable; in steady state the
	// queues hold at most one in-flight packet beyond the threshold
	for i := 0; i < 10; i++ {
		require.LessOrEqual(t, in.VideoQueueSize(ctx), PacketBufferCount+1)
		require.LessOrEqual(t, in.AudioQueueSize(ctx), PacketBufferCount+1)
		time.Sleep(5 * time.Millisecond)
	}

	// draining one queue resumes the pump
	for i := 0; i < 10; i++ {
		require.False(t, in.GetVideoPacket(ctx).IsEmpty())
	}
	require.Eventually(t, func() bool {
		return in.VideoQueueSize(ctx) > PacketBufferCount
	}, 5*time.Second, time.Millisecond)
}

func TestIsEOFOnlyAfterDraining(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams()}
	for i := 0; i < 3; i++ {
		d.packets = append(d.packets, stubPacket{data: []byte{byte(i)}, streamIndex: 0})
	}

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{Loop: false})
	require.NoError(t, err)
	defer in.Close(ctx)

	require.Eventually(t, func() bool {
		return in.VideoQueueSize(ctx) == 3
	}, time.Second, time.Millisecond)
	require.False(t, in.IsEOF(ctx))

	collectPackets(ctx, t, in.GetVideoPacket, 3)
	require.Eventually(t, func() bool { return in.IsEOF(ctx) }, time.Second, time.Millisecond)
}

func TestSeekFailurePreventsLoopWrap(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams(), seekFails: true}
	d.packets = append(d.packets, stubPacket{data: []byte{1}, streamIndex: 0})

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{Loop: true})
	require.NoError(t, err)
	defer in.Close(ctx)

	collectPackets(ctx, t, in.GetVideoPacket, 1)
	require.Eventually(t, func() bool { return in.IsEOF(ctx) }, time.Second, time.Millisecond)
}

func TestFpsRepairsSuspiciousTimeBase(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{
		streams:   videoAudioStreams(),
		decoderTB: map[int]Rational{0: {Num: 1, Den: 90000}},
	}

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{})
	require.NoError(t, err)
	defer in.Close(ctx)

	// 1/90000 is repaired to 1000/90000
	require.InDelta(t, 90.0, in.Fps(), 0.001)
}

func TestFpsSaneTimeBaseUntouched(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{
		streams:   videoAudioStreams(),
		decoderTB: map[int]Rational{0: {Num: 1001, Den: 30000}},
	}

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{})
	require.NoError(t, err)
	defer in.Close(ctx)

	require.InDelta(t, 29.97, in.Fps(), 0.001)
}

func TestNoUsableStream(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{
		streams: videoAudioStreams(),
		decoderErr: map[int]error{
			0: errors.New("no decoder"),
			1: errors.New("no decoder"),
		},
	}

	_, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{})
	require.ErrorIs(t, err, ErrNoUsableStream)
}

func TestOneFailedDecoderIsTolerated(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{
		streams:    videoAudioStreams(),
		decoderErr: map[int]error{0: errors.New("no decoder")},
	}
	d.packets = append(d.packets,
		stubPacket{data: []byte{1}, streamIndex: 0},
		stubPacket{data: []byte{2}, streamIndex: 1},
	)

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{})
	require.NoError(t, err)
	defer in.Close(ctx)

	// packets of the unusable video stream are dropped
	got := collectPackets(ctx, t, in.GetAudioPacket, 1)
	require.Equal(t, []byte{2}, got[0])
	require.Eventually(t, func() bool { return in.IsEOF(ctx) }, time.Second, time.Millisecond)
	require.Equal(t, 0, in.VideoQueueSize(ctx))
}

func TestSeekRescalesIntoReferenceStreamTimeBase(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams()}

	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{Loop: false})
	require.NoError(t, err)
	defer in.Close(ctx)

	require.NoError(t, in.Seek(ctx, 2_000_000, true))
	d.mu.Lock()
	defer d.mu.Unlock()
	require.Equal(t, 0, d.lastSeekIndex)
	require.Equal(t, int64(180000), d.lastSeekTS)
}

func TestCloseReleasesDemuxer(t *testing.T) {
	ctx := context.Background()

	d := &stubDemuxer{streams: videoAudioStreams()}
	in, err := New(ctx, diagnostics.NewGraph(ctx, "test"), d, Config{})
	require.NoError(t, err)

	require.NoError(t, in.Close(ctx))
	d.mu.Lock()
	defer d.mu.Unlock()
	require.True(t, d.closed)
}
