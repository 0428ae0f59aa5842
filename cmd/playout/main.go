// The playout demo: pumps packets out of a media file while
// compositing an animated test layer into an output format, printing
// the pipeline's throughput once a second.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avmixer/diagnostics"
	"github.com/xaionaro-go/avmixer/frame"
	"github.com/xaionaro-go/avmixer/input"
	"github.com/xaionaro-go/avmixer/logger"
	"github.com/xaionaro-go/avmixer/mixer"
	"github.com/xaionaro-go/avmixer/transform"
	"github.com/xaionaro-go/avmixer/videoformat"
	"go.uber.org/atomic"
)

func main() {

	// parse the input

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s <media-file>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	loop := pflag.Bool("loop", false, "loop the source on end-of-stream")
	formatName := pflag.String("format", "720p50", "output format: pal, ntsc, 720p50 or 1080i50")

	pflag.Parse()
	if len(pflag.Args()) != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	filename := pflag.Arg(0)

	formatDesc, ok := videoformat.ByName(*formatName)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown format '%s'\n", *formatName)
		os.Exit(1)
	}

	// init the context

	ctx := withLogger(context.Background(), loggerLevel)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	defer belt.Flush(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// input pump

	logger.Debugf(ctx, "opening '%s' as the input...", filename)
	graph := diagnostics.NewGraph(ctx, "channel/input")
	in, err := input.NewFromFile(ctx, graph, filename, input.Config{
		Loop:        *loop,
		ParentLabel: "channel",
	})
	assert(ctx, err == nil, err)
	defer in.Close(ctx)
	logger.Infof(ctx, "input fps: %.2f", in.Fps())

	// mixer device

	device := mixer.New(ctx, mixer.Config{
		FormatDesc:  formatDesc,
		ParentLabel: "channel",
	},
		mixer.NewSoftwareImageMixer(formatDesc),
		mixer.NewSoftwareAudioMixer(formatDesc),
	)
	defer device.Close(ctx)

	var framesEmitted atomic.Uint64
	subscription, err := device.Connect(ctx, func(ctx context.Context, out *mixer.OutputFrame) {
		framesEmitted.Add(1)
	})
	assert(ctx, err == nil, err)
	defer subscription.Close(ctx)

	// an animated test layer: a white card sliding in over a second

	testFrame := device.CreateFrameWithResolution(ctx, formatDesc.Width/4, formatDesc.Height/4, frame.PixelFormatBGRA)
	testFrame.SetLayerID(10)
	fillPlane(testFrame.Plane(0), 0xFF)

	err = device.SetLayerImageTransform(ctx, 10, func() transform.Image {
		tr := transform.DefaultImage()
		tr.PosX = 0.375
		tr.PosY = 0.375
		return tr
	}(), int(time.Second/formatDesc.Interval), "easeoutcubic")
	assert(ctx, err == nil, err)

	// drive the ticks

	var packetsPulled atomic.Uint64
	var packetBytes atomic.Uint64

	tickTicker := time.NewTicker(formatDesc.Interval)
	defer tickTicker.Stop()
	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof(ctx, "finished")
			return

		case <-sigCh:
			logger.Infof(ctx, "interrupted")
			return

		case <-tickTicker.C:
			for {
				pkt := in.GetVideoPacket(ctx)
				if pkt.IsEmpty() {
					break
				}
				packetsPulled.Add(1)
				packetBytes.Add(uint64(pkt.Len()))
			}
			for {
				pkt := in.GetAudioPacket(ctx)
				if pkt.IsEmpty() {
					break
				}
				packetsPulled.Add(1)
				packetBytes.Add(uint64(pkt.Len()))
			}
			err := device.Send(ctx, []*frame.Frame{testFrame})
			assert(ctx, err == nil, err)
			if in.IsEOF(ctx) && !*loop {
				logger.Infof(ctx, "end of stream")
				return
			}

		case <-statusTicker.C:
			fmt.Printf(
				"emitted:%d pulled:%d (%s) input-buffer:%.2f seeks:%d\n",
				framesEmitted.Load(),
				packetsPulled.Load(),
				humanize.IBytes(packetBytes.Load()),
				graph.Value(ctx, "input-buffer"),
				graph.TagCount(ctx, "seek"),
			)
		}
	}
}

func fillPlane(plane []byte, value byte) {
	for idx := range plane {
		plane[idx] = value
	}
}
