package mixer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avmixer/frame"
	"github.com/xaionaro-go/avmixer/transform"
	"github.com/xaionaro-go/avmixer/videoformat"
)

func smallDesc(mode videoformat.Mode) videoformat.Desc {
	return videoformat.Desc{
		Width:          8,
		Height:         8,
		Mode:           mode,
		Interval:       time.Second / 25,
		SamplesPerTick: 8,
	}
}

func solidFrame(width, height int, value byte) *frame.Frame {
	f := &frame.Frame{}
	f.Alloc(frame.NewBGRADesc(width, height))
	plane := f.Plane(0)
	for idx := range plane {
		plane[idx] = value
	}
	return f
}

func TestSoftwareImageMixerOpaqueLayer(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareImageMixer(smallDesc(videoformat.ModeProgressive))

	pass := m.BeginPass(ctx)
	pass.Accept(solidFrame(8, 8, 0xFF), transform.DefaultImage())
	out := <-pass.End()

	require.Equal(t, 8, out.Width)
	require.Equal(t, 8, out.Height)
	for _, v := range out.Data {
		require.Equal(t, byte(0xFF), v)
	}
}

func TestSoftwareImageMixerOpacity(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareImageMixer(smallDesc(videoformat.ModeProgressive))

	tr := transform.DefaultImage()
	tr.Opacity = 0.5

	pass := m.BeginPass(ctx)
	pass.Accept(solidFrame(8, 8, 0xFF), tr)
	out := <-pass.End()

	// half of full white over black
	require.InDelta(t, 128, float64(out.Data[0]), 2)
}

func TestSoftwareImageMixerPositionOffset(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareImageMixer(smallDesc(videoformat.ModeProgressive))

	tr := transform.DefaultImage()
	tr.PosX = 0.5
	tr.PosY = 0.5

	pass := m.BeginPass(ctx)
	pass.Accept(solidFrame(4, 4, 0xFF), tr)
	out := <-pass.End()

	// the 4x4 layer lands in the bottom-right quadrant
	require.Equal(t, byte(0), out.Data[(0*8+0)*4])
	require.Equal(t, byte(0xFF), out.Data[(4*8+4)*4])
}

func TestSoftwareImageMixerInterlacedPair(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareImageMixer(smallDesc(videoformat.ModeInterlacedUpper))

	visible := transform.DefaultImage()
	hidden := transform.DefaultImage()
	hidden.Opacity = 0

	f := solidFrame(8, 8, 0xFF)
	pass := m.BeginPass(ctx)
	pass.AcceptInterlaced(f, f, visible, hidden, videoformat.ModeInterlacedUpper)
	out := <-pass.End()

	// upper field rows carry the visible sub-field, lower field rows
	// stay black
	require.Equal(t, byte(0xFF), out.Data[(0*8+0)*4])
	require.Equal(t, byte(0), out.Data[(1*8+0)*4])
	require.Equal(t, byte(0xFF), out.Data[(2*8+0)*4])
}

func TestSoftwareImageMixerScaling(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareImageMixer(smallDesc(videoformat.ModeProgressive))

	tr := transform.DefaultImage()
	tr.ScaleX = 0.5
	tr.ScaleY = 0.5

	pass := m.BeginPass(ctx)
	pass.Accept(solidFrame(8, 8, 0xFF), tr)
	out := <-pass.End()

	// the layer shrinks to the top-left quadrant
	require.Equal(t, byte(0xFF), out.Data[(0*8+0)*4])
	require.Equal(t, byte(0), out.Data[(6*8+6)*4])
}

func TestSoftwareImageMixerClip(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareImageMixer(smallDesc(videoformat.ModeProgressive))

	tr := transform.DefaultImage()
	tr.Clip = transform.Rect{X: 0, Y: 0, W: 0.5, H: 1}

	pass := m.BeginPass(ctx)
	pass.Accept(solidFrame(8, 8, 0xFF), tr)
	out := <-pass.End()

	require.Equal(t, byte(0xFF), out.Data[(0*8+0)*4])
	require.Equal(t, byte(0), out.Data[(0*8+7)*4])
}

func TestSoftwareAudioMixerGainAndPan(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareAudioMixer(smallDesc(videoformat.ModeProgressive))

	f := &frame.Frame{}
	f.SetAudio([]int16{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000})

	tr := transform.DefaultAudio()
	tr.Gain = 0.5
	tr.Pan = 1 // hard right

	pass := m.BeginPass(ctx)
	pass.Accept(f, tr)
	out := pass.End()

	require.Len(t, out, 8)
	require.Equal(t, int16(0), out[0])   // left is silent
	require.Equal(t, int16(500), out[1]) // right at half gain
}

func TestSoftwareAudioMixerSumsLayersAndClamps(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareAudioMixer(smallDesc(videoformat.ModeProgressive))

	f1 := &frame.Frame{}
	f1.SetAudio([]int16{30000, 30000})
	f2 := &frame.Frame{}
	f2.SetAudio([]int16{30000, -30000})

	pass := m.BeginPass(ctx)
	pass.Accept(f1, transform.DefaultAudio())
	pass.Accept(f2, transform.DefaultAudio())
	out := pass.End()

	require.Equal(t, int16(32767), out[0]) // clamped
	require.Equal(t, int16(0), out[1])
}

func TestSoftwareAudioMixerEmptyPassIsSilence(t *testing.T) {
	ctx := context.Background()
	m := NewSoftwareAudioMixer(smallDesc(videoformat.ModeProgressive))

	out := m.BeginPass(ctx).End()
	require.Len(t, out, 8)
	for _, s := range out {
		require.Equal(t, int16(0), s)
	}
}

func TestTwoEmptyTicksProduceIdenticalOutput(t *testing.T) {
	ctx := context.Background()
	desc := smallDesc(videoformat.ModeProgressive)
	device := New(ctx, Config{FormatDesc: desc},
		NewSoftwareImageMixer(desc), NewSoftwareAudioMixer(desc))
	defer device.Close(ctx)

	outputs := make(chan *OutputFrame, 2)
	_, err := device.Connect(ctx, func(ctx context.Context, out *OutputFrame) {
		outputs <- out
	})
	require.NoError(t, err)

	require.NoError(t, device.Send(ctx, nil))
	require.NoError(t, device.Send(ctx, nil))

	out1 := <-outputs
	out2 := <-outputs
	require.Equal(t, out1.Image.Data, out2.Image.Data)
	require.Equal(t, out1.Audio, out2.Audio)
}
