package videoformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeSubTicks(t *testing.T) {
	require.Equal(t, 1, ModeProgressive.SubTicks())
	require.Equal(t, 2, ModeInterlacedUpper.SubTicks())
	require.Equal(t, 2, ModeInterlacedLower.SubTicks())
}

func TestByName(t *testing.T) {
	desc, ok := ByName("pal")
	require.True(t, ok)
	require.Equal(t, PAL, desc)
	require.Equal(t, ModeInterlacedUpper, desc.Mode)

	_, ok = ByName("2160p120")
	require.False(t, ok)
}

func TestSamplesPerTickMatchesCadence(t *testing.T) {
	// 48 kHz stereo at 50 fps
	require.Equal(t, 1920, HD720p50.SamplesPerTick)
	// 48 kHz stereo at 25 fps
	require.Equal(t, 3840, PAL.SamplesPerTick)
}
