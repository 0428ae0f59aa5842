// Package mixer implements the frame mixer device: on every tick it
// pulls a batch of layer frames, applies the tweened per-layer and root
// transforms, interlaces sub-fields when the output format requires it,
// and emits one composited output frame to every subscriber.
//
// All state mutation (transform tables, subscriber list, composition)
// is serialized on a single-threaded executor whose input queue is
// capped at 2, which back-pressures the upstream producer.
package mixer

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/avmixer/diagnostics"
	"github.com/xaionaro-go/avmixer/executor"
	"github.com/xaionaro-go/avmixer/frame"
	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/avmixer/pool"
	"github.com/xaionaro-go/avmixer/transform"
	"github.com/xaionaro-go/avmixer/tween"
	"github.com/xaionaro-go/avmixer/videoformat"
)

// ExecutorCapacity is the depth of the device's tick queue.
const ExecutorCapacity = 2

type Device struct {
	label      string
	formatDesc videoformat.Desc
	graph      *diagnostics.Graph
	easings    *tween.Registry

	imageMixer ImageMixer
	audioMixer AudioMixer

	// The tween state below is touched only on the executor
	// goroutine, so it needs no locking.
	rootImageTween *tween.Track[transform.Image]
	rootAudioTween *tween.Track[transform.Audio]
	imageTable     map[int]*tween.Track[transform.Image]
	audioTable     map[int]*tween.Track[transform.Audio]

	subscribers map[uint64]Subscriber
	nextSubID   uint64

	framePool *pool.Pool[frame.Frame]

	workStart time.Time
	tickStart time.Time

	executor *executor.Executor
}

// New creates a Device compositing into the given format via the given
// image/audio mixer primitives.
func New(
	ctx context.Context,
	cfg Config,
	imageMixer ImageMixer,
	audioMixer AudioMixer,
) *Device {
	label := "mixer"
	if cfg.ParentLabel != "" {
		label = cfg.ParentLabel + "/mixer"
	}
	ctx = belt.WithField(ctx, "component", label)

	easings := cfg.Easings
	if easings == nil {
		easings = tween.NewRegistry()
	}

	d := &Device{
		label:          label,
		formatDesc:     cfg.FormatDesc,
		graph:          diagnostics.NewGraph(ctx, label),
		easings:        easings,
		imageMixer:     imageMixer,
		audioMixer:     audioMixer,
		rootImageTween: tween.NewResting(transform.DefaultImage()),
		rootAudioTween: tween.NewResting(transform.DefaultAudio()),
		imageTable:     map[int]*tween.Track[transform.Image]{},
		audioTable:     map[int]*tween.Track[transform.Audio]{},
		subscribers:    map[uint64]Subscriber{},
		framePool: pool.NewPool(
			func() *frame.Frame { return &frame.Frame{} },
			func(f *frame.Frame) { f.Reset() },
		),
	}

	d.graph.AddGuide(ctx, "frame-time", 0.5)
	d.graph.SetColor(ctx, "frame-time", diagnostics.Color{R: 1, G: 0, B: 0})
	d.graph.SetColor(ctx, "tick-time", diagnostics.Color{R: 0.1, G: 0.7, B: 0.8})
	d.graph.SetColor(ctx, "input-buffer", diagnostics.Color{R: 1, G: 1, B: 0})

	d.executor = executor.New(ctx, label, ExecutorCapacity)
	logger.Infof(ctx, "successfully initialized")
	return d
}

func (d *Device) GetVideoFormatDesc() videoformat.Desc {
	return d.formatDesc
}

func (d *Device) Diagnostics() *diagnostics.Graph {
	return d.graph
}

// Connect registers a subscriber for composited output frames. The
// returned handle removes the subscription when closed.
func (d *Device) Connect(ctx context.Context, subscriber Subscriber) (*Subscription, error) {
	var id uint64
	err := d.executor.Invoke(ctx, func(ctx context.Context) {
		id = d.nextSubID
		d.nextSubID++
		d.subscribers[id] = subscriber
	})
	if err != nil {
		return nil, err
	}
	return &Subscription{device: d, id: id}, nil
}

func (d *Device) disconnect(ctx context.Context, id uint64) error {
	return d.executor.Invoke(ctx, func(ctx context.Context) {
		delete(d.subscribers, id)
	})
}

// Send enqueues one tick compositing the given batch of layer frames.
// It blocks while the executor queue is full, which is the device's
// back-pressure onto its producer.
func (d *Device) Send(ctx context.Context, frames []*frame.Frame) error {
	err := d.executor.BeginInvoke(ctx, func(ctx context.Context) {
		d.tick(ctx, frames)
	})
	if err != nil {
		return err
	}
	d.graph.SetValue(ctx, "input-buffer",
		float64(d.executor.Size())/float64(d.executor.Capacity()))
	return nil
}

func (d *Device) tick(ctx context.Context, frames []*frame.Frame) {
	now := time.Now()
	if !d.tickStart.IsZero() {
		d.graph.UpdateValue(ctx, "tick-time",
			now.Sub(d.tickStart).Seconds()/d.formatDesc.Interval.Seconds()*0.5)
	}
	d.tickStart = now
	d.workStart = now

	frames = filterFrames(frames)

	imageCh := d.mixImage(ctx, frames)
	audio := d.mixAudio(ctx, frames)
	image := <-imageCh

	d.emit(ctx, &OutputFrame{Image: image, Audio: audio})

	d.graph.UpdateValue(ctx, "frame-time",
		time.Since(d.workStart).Seconds()/d.formatDesc.Interval.Seconds()*0.5)
	d.graph.SetValue(ctx, "input-buffer",
		float64(d.executor.Size())/float64(d.executor.Capacity()))
}

func filterFrames(frames []*frame.Frame) []*frame.Frame {
	result := make([]*frame.Frame, 0, len(frames))
	for _, f := range frames {
		if f == nil || f.IsEmpty() || f.IsEOF() {
			continue
		}
		result = append(result, f)
	}
	return result
}

// mixImage runs the image pass. Every tween touched this tick is
// advanced exactly once: by one sub-tick for progressive output, by two
// (one per field) for interlaced output — independent of how many
// frames share a layer.
func (d *Device) mixImage(ctx context.Context, frames []*frame.Frame) <-chan *HostBuffer {
	pass := d.imageMixer.BeginPass(ctx)

	if d.formatDesc.Mode == videoformat.ModeProgressive {
		var rootValue transform.Image
		if len(frames) > 0 {
			rootValue = d.rootImageTween.Advance(1)
		}
		layerValues := map[int]transform.Image{}
		for _, f := range frames {
			id := f.LayerID()
			value, ok := layerValues[id]
			if !ok {
				value = d.advanceImageLayer(id, 1)
				layerValues[id] = value
			}
			pass.Accept(f, rootValue.Combine(value))
		}
		return pass.End()
	}

	var rootField1, rootField2 transform.Image
	if len(frames) > 0 {
		rootField1 = d.rootImageTween.Advance(1)
		rootField2 = d.rootImageTween.Advance(1)
	}
	type fieldPair struct {
		field1 transform.Image
		field2 transform.Image
	}
	layerValues := map[int]fieldPair{}
	for _, f := range frames {
		id := f.LayerID()
		values, ok := layerValues[id]
		if !ok {
			values = fieldPair{
				field1: d.advanceImageLayer(id, 1),
				field2: d.advanceImageLayer(id, 1),
			}
			layerValues[id] = values
		}
		eff1 := rootField1.Combine(values.field1)
		eff2 := rootField2.Combine(values.field2)
		if !eff1.Equal(eff2) {
			pass.AcceptInterlaced(f, f, eff1, eff2, d.formatDesc.Mode)
		} else {
			// Both sub-fields would be identical, a single
			// full-frame submission suffices.
			pass.Accept(f, eff2)
		}
	}
	return pass.End()
}

// mixAudio runs the audio pass, advancing each touched audio tween by
// the same total amount of sub-ticks as the image pass.
func (d *Device) mixAudio(ctx context.Context, frames []*frame.Frame) []int16 {
	pass := d.audioMixer.BeginPass(ctx)

	n := d.formatDesc.Mode.SubTicks()
	var rootValue transform.Audio
	if len(frames) > 0 {
		rootValue = d.rootAudioTween.Advance(n)
	}
	layerValues := map[int]transform.Audio{}
	for _, f := range frames {
		id := f.LayerID()
		value, ok := layerValues[id]
		if !ok {
			value = d.advanceAudioLayer(id, n)
			layerValues[id] = value
		}
		pass.Accept(f, rootValue.Combine(value))
	}
	return pass.End()
}

// advanceImageLayer advances the layer's tween by n sub-ticks. A layer
// without an entry is an identity tween at rest, which is not
// materialized.
func (d *Device) advanceImageLayer(id int, n int) transform.Image {
	track := d.imageTable[id]
	if track == nil {
		return transform.DefaultImage()
	}
	return track.Advance(n)
}

func (d *Device) advanceAudioLayer(id int, n int) transform.Audio {
	track := d.audioTable[id]
	if track == nil {
		return transform.DefaultAudio()
	}
	return track.Advance(n)
}

func (d *Device) emit(ctx context.Context, out *OutputFrame) {
	for _, subscriber := range d.subscribers {
		func() {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Errorf(ctx, "got panic in a subscriber of %s: %v:\n%s\n",
					d.label, r, debug.Stack())
			}()
			subscriber(ctx, out)
		}()
	}
}

// CreateFrame allocates a writable layer frame of the requested
// geometry from the device's buffer pool.
func (d *Device) CreateFrame(ctx context.Context, desc frame.PixelDesc) *frame.Frame {
	f := d.framePool.Get()
	f.Alloc(desc)
	return f
}

// CreateFrameWithResolution allocates a single-plane frame of the given
// geometry.
func (d *Device) CreateFrameWithResolution(
	ctx context.Context,
	width, height int,
	format frame.PixelFormat,
) *frame.Frame {
	return d.CreateFrame(ctx, frame.PixelDesc{
		Format: format,
		Planes: []frame.Plane{{Width: width, Height: height, BytesPerPixel: 4}},
	})
}

// CreateFrameWithFormat allocates a frame at the output resolution.
func (d *Device) CreateFrameWithFormat(
	ctx context.Context,
	format frame.PixelFormat,
) *frame.Frame {
	return d.CreateFrameWithResolution(ctx, d.formatDesc.Width, d.formatDesc.Height, format)
}

// RecycleFrame returns a frame obtained from CreateFrame to the pool.
// The caller must not touch the frame afterwards.
func (d *Device) RecycleFrame(ctx context.Context, f *frame.Frame) {
	if f == nil || f.IsEmpty() || f.IsEOF() {
		return
	}
	d.framePool.Put(f)
}

// Close stops the device. Pending ticks are discarded; the in-flight
// tick runs to completion.
func (d *Device) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()

	d.executor.Clear(ctx)
	d.executor.Stop(ctx)
	return d.executor.WaitStopped(ctx)
}

func (d *Device) String() string {
	return fmt.Sprintf("Device(%s)", d.label)
}
