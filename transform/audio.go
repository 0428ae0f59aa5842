package transform

// Audio describes the gain and channel mixing of a layer. Pan is kept
// unclamped so that Combine stays associative; it is clamped to [-1,1]
// at application time by the audio mixer.
type Audio struct {
	Gain float64
	Pan  float64
}

// DefaultAudio is the identity of Combine.
func DefaultAudio() Audio {
	return Audio{
		Gain: 1,
		Pan:  0,
	}
}

func (t Audio) Combine(child Audio) Audio {
	return Audio{
		Gain: t.Gain * child.Gain,
		Pan:  t.Pan + child.Pan,
	}
}

func (t Audio) Equal(other Audio) bool {
	return t == other
}

func (t Audio) Interpolate(dest Audio, k float64) Audio {
	return Audio{
		Gain: lerp(t.Gain, dest.Gain, k),
		Pan:  lerp(t.Pan, dest.Pan, k),
	}
}
