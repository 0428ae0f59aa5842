// audio_mixer.go states the audio-pass contract the device drives and
// provides a reference implementation mixing interleaved stereo PCM.

package mixer

import (
	"context"
	"math"

	"github.com/xaionaro-go/avmixer/frame"
	"github.com/xaionaro-go/avmixer/transform"
	"github.com/xaionaro-go/avmixer/videoformat"
)

// AudioPass accumulates the frames of one tick and returns the mixed
// sample vector on End.
type AudioPass interface {
	Accept(f *frame.Frame, tr transform.Audio)
	End() []int16
}

type AudioMixer interface {
	BeginPass(ctx context.Context) AudioPass
}

// SoftwareAudioMixer sums the 16-bit PCM contributions of all layers
// into one vector of SamplesPerTick interleaved stereo samples,
// applying per-layer gain and pan.
type SoftwareAudioMixer struct {
	desc videoformat.Desc
}

var _ AudioMixer = (*SoftwareAudioMixer)(nil)

func NewSoftwareAudioMixer(desc videoformat.Desc) *SoftwareAudioMixer {
	return &SoftwareAudioMixer{desc: desc}
}

func (m *SoftwareAudioMixer) BeginPass(ctx context.Context) AudioPass {
	return &softwareAudioPass{
		acc: make([]int32, m.desc.SamplesPerTick),
	}
}

type softwareAudioPass struct {
	acc []int32
}

func (p *softwareAudioPass) Accept(f *frame.Frame, tr transform.Audio) {
	pan := tr.Pan
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	leftGain := tr.Gain
	rightGain := tr.Gain
	if pan > 0 {
		leftGain *= 1 - pan
	}
	if pan < 0 {
		rightGain *= 1 + pan
	}

	samples := f.Audio()
	n := min(len(samples), len(p.acc))
	for idx := 0; idx < n; idx++ {
		gain := leftGain
		if idx%2 == 1 {
			gain = rightGain
		}
		p.acc[idx] += int32(float64(samples[idx]) * gain)
	}
}

func (p *softwareAudioPass) End() []int16 {
	result := make([]int16, len(p.acc))
	for idx, s := range p.acc {
		switch {
		case s > math.MaxInt16:
			result[idx] = math.MaxInt16
		case s < math.MinInt16:
			result[idx] = math.MinInt16
		default:
			result[idx] = int16(s)
		}
	}
	return result
}
