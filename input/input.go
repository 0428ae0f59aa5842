// Package input implements the input pump: it owns a demux source,
// fills one bounded packet queue per stream kind, loops the source on
// end-of-stream when configured, and throttles itself against the
// consumer's pull rate.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/xaionaro-go/avmixer/diagnostics"
	"github.com/xaionaro-go/avmixer/executor"
	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/avmixer/packet"
)

// PacketBufferCount is the soft capacity of each packet queue.
const PacketBufferCount = 50

const microsecondsPerSecond = 1_000_000

// Input demultiplexes a media source into per-kind packet queues. All
// demuxing happens on a dedicated single-threaded executor; consumers
// pull packets with GetVideoPacket/GetAudioPacket.
type Input struct {
	label string
	graph *diagnostics.Graph

	demuxer Demuxer
	loop    bool

	videoStreamIndex int
	audioStreamIndex int
	videoStreamTB    Rational
	audioStreamTB    Rational
	videoCodecTB     Rational
	audioCodecTB     Rational

	videoQueue *packet.Queue
	audioQueue *packet.Queue

	condLocker sync.Mutex
	cond       *sync.Cond

	executor *executor.Executor
}

// NewFromFile opens the container by filename/URL and starts the pump.
func NewFromFile(
	ctx context.Context,
	graph *diagnostics.Graph,
	filename string,
	cfg Config,
) (_ret *Input, _err error) {
	if filename == "" {
		return nil, fmt.Errorf("the provided filename is empty")
	}
	demuxer, err := OpenFile(ctx, filename, cfg.AuthKey, cfg.CustomOptions)
	if err != nil {
		return nil, err
	}
	i, err := New(ctx, graph, demuxer, cfg)
	if err != nil {
		_ = demuxer.Close(ctx)
		return nil, err
	}
	return i, nil
}

// New starts the pump over an already-opened demux source. The Input
// takes ownership of the demuxer.
func New(
	ctx context.Context,
	graph *diagnostics.Graph,
	demuxer Demuxer,
	cfg Config,
) (_ret *Input, _err error) {
	label := "input"
	if cfg.ParentLabel != "" {
		label = cfg.ParentLabel + "/input"
	}
	ctx = belt.WithField(ctx, "component", label)
	logger.Debugf(ctx, "New")
	defer func() { logger.Debugf(ctx, "/New: %v", _err) }()

	i := &Input{
		label:            label,
		graph:            graph,
		demuxer:          demuxer,
		loop:             cfg.Loop,
		videoStreamIndex: -1,
		audioStreamIndex: -1,
		videoQueue:       packet.NewQueue(PacketBufferCount),
		audioQueue:       packet.NewQueue(PacketBufferCount),
	}
	i.cond = sync.NewCond(&i.condLocker)

	graph.SetColor(ctx, "input-buffer", diagnostics.Color{R: 1, G: 1, B: 0})
	graph.SetColor(ctx, "seek", diagnostics.Color{R: 0.5, G: 1, B: 0.5})

	if err := i.openStreams(ctx); err != nil {
		return nil, err
	}

	i.executor = executor.New(ctx, label, 1)
	if err := i.executor.BeginInvoke(ctx, i.readStep); err != nil {
		return nil, fmt.Errorf("unable to enqueue the first pump iteration: %w", err)
	}
	logger.Infof(ctx, "started")
	return i, nil
}

// openStreams selects the first stream of each kind and initializes its
// decoder. Failure of one kind is tolerated; failure of both is fatal.
func (i *Input) openStreams(ctx context.Context) error {
	videoSeen, audioSeen := false, false
	for _, stream := range i.demuxer.Streams(ctx) {
		switch stream.Kind {
		case StreamVideo:
			if videoSeen {
				continue
			}
			videoSeen = true
			codecTB, err := i.demuxer.OpenDecoder(ctx, stream.Index)
			if err != nil {
				logger.Warnf(ctx, "could not open video stream #%d: %v", stream.Index, err)
				continue
			}
			i.videoStreamIndex = stream.Index
			i.videoStreamTB = stream.TimeBase
			i.videoCodecTB = fixTimeBase(codecTB)
		case StreamAudio:
			if audioSeen {
				continue
			}
			audioSeen = true
			codecTB, err := i.demuxer.OpenDecoder(ctx, stream.Index)
			if err != nil {
				logger.Warnf(ctx, "could not open audio stream #%d: %v", stream.Index, err)
				continue
			}
			i.audioStreamIndex = stream.Index
			i.audioStreamTB = stream.TimeBase
			i.audioCodecTB = fixTimeBase(codecTB)
		}
	}

	if i.videoStreamIndex < 0 && i.audioStreamIndex < 0 {
		return ErrNoUsableStream
	}
	if i.videoStreamIndex < 0 {
		logger.Warnf(ctx, "could not open any video stream")
	}
	if i.audioStreamIndex < 0 {
		logger.Warnf(ctx, "could not open any audio stream")
	}
	return nil
}

// fixTimeBase repairs time bases of containers that misreport the frame
// rate as 1/den.
func fixTimeBase(tb Rational) Rational {
	if tb.Num != 1 || tb.Den <= 1 {
		return tb
	}
	tb.Num = int(math.Pow(10, float64(int(math.Log10(float64(tb.Den)))-1)))
	return tb
}

// readStep is one pump iteration: read one packet, route it, publish
// diagnostics, enqueue the next iteration, and then wait while both
// queues are above capacity.
func (i *Input) readStep(ctx context.Context) {
	data, streamIndex, err := i.demuxer.ReadPacket(ctx)
	switch {
	case err == nil:
		switch streamIndex {
		case i.videoStreamIndex:
			i.videoQueue.TryPush(ctx, packet.New(data))
		case i.audioStreamIndex:
			i.audioQueue.TryPush(ctx, packet.New(data))
		}
	default:
		if !errors.Is(err, io.EOF) {
			logger.Warnf(ctx, "read failure, treating as end of stream: %v", err)
		}
		if !i.loop || i.Seek(ctx, 0, true) != nil {
			i.stop(ctx)
			return
		}
		i.graph.Tag(ctx, "seek")
	}

	runtime.Gosched()

	i.graph.UpdateValue(ctx, "input-buffer",
		float64(i.videoQueue.Size(ctx))/float64(PacketBufferCount))

	if err := i.executor.BeginInvoke(ctx, i.readStep); err != nil {
		return
	}

	i.condLocker.Lock()
	for i.executor.IsRunning() &&
		i.videoQueue.AboveCapacity(ctx) && i.audioQueue.AboveCapacity(ctx) {
		i.cond.Wait()
	}
	i.condLocker.Unlock()
}

// Seek rescales targetMicroseconds into the reference stream's time
// base (video if available, else audio) and issues a demux-layer seek.
func (i *Input) Seek(
	ctx context.Context,
	targetMicroseconds int64,
	backward bool,
) (_err error) {
	streamIndex := i.videoStreamIndex
	timeBase := i.videoStreamTB
	if streamIndex < 0 {
		streamIndex = i.audioStreamIndex
		timeBase = i.audioStreamTB
	}

	timestamp := targetMicroseconds
	if timeBase.Num > 0 && timeBase.Den > 0 {
		timestamp = int64(float64(targetMicroseconds) / microsecondsPerSecond *
			float64(timeBase.Den) / float64(timeBase.Num))
	}

	if err := i.demuxer.Seek(ctx, streamIndex, timestamp, backward); err != nil {
		logger.Warnf(ctx, "failed to seek: %v", err)
		return SeekError{StreamIndex: streamIndex, Timestamp: timestamp, Err: err}
	}
	return nil
}

// GetVideoPacket pops the oldest video packet; it returns the empty
// sentinel when the queue has drained.
func (i *Input) GetVideoPacket(ctx context.Context) packet.Packet {
	return i.getPacket(ctx, i.videoQueue)
}

// GetAudioPacket pops the oldest audio packet; it returns the empty
// sentinel when the queue has drained.
func (i *Input) GetAudioPacket(ctx context.Context) packet.Packet {
	return i.getPacket(ctx, i.audioQueue)
}

func (i *Input) getPacket(ctx context.Context, queue *packet.Queue) packet.Packet {
	i.broadcast()
	pkt := queue.TryPop(ctx)
	if !pkt.IsSet() {
		return packet.Packet{}
	}
	return pkt.Get()
}

// IsEOF reports whether the pump has stopped and both queues have been
// drained.
func (i *Input) IsEOF(ctx context.Context) bool {
	return !i.executor.IsRunning() &&
		i.videoQueue.IsEmpty(ctx) && i.audioQueue.IsEmpty(ctx)
}

// Fps is derived from the (repaired) video codec time base.
func (i *Input) Fps() float64 {
	if i.videoStreamIndex < 0 || i.videoCodecTB.Num == 0 {
		return 0
	}
	return float64(i.videoCodecTB.Den) / float64(i.videoCodecTB.Num)
}

// VideoQueueSize and AudioQueueSize are exposed for diagnostics.
func (i *Input) VideoQueueSize(ctx context.Context) int {
	return i.videoQueue.Size(ctx)
}

func (i *Input) AudioQueueSize(ctx context.Context) int {
	return i.audioQueue.Size(ctx)
}

func (i *Input) stop(ctx context.Context) {
	i.executor.Stop(ctx)
	i.broadcast()
}

// broadcast wakes the pump while holding the condition's mutex, so a
// wakeup cannot fall between the pump's predicate check and its wait.
func (i *Input) broadcast() {
	i.condLocker.Lock()
	i.cond.Broadcast()
	i.condLocker.Unlock()
}

// Close stops the pump and releases the demux resources (codec
// contexts first, format context last).
func (i *Input) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	i.executor.Clear(ctx)
	i.stop(ctx)
	if err := i.executor.WaitStopped(ctx); err != nil {
		return err
	}
	logger.Infof(ctx, "stopped")
	err := i.demuxer.Close(ctx)
	errmon.ObserveErrorCtx(ctx, err)
	return err
}

func (i *Input) String() string {
	return fmt.Sprintf("Input(%s)", i.label)
}
