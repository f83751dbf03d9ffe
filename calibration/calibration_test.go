package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoltsToAmpsEndpoints(t *testing.T) {
	for _, ampsMax := range []float64{20, 50} {
		c, err := NewConverter(Range{VinMin: 0, VinMax: 10, AmpsMin: 0, AmpsMax: ampsMax})
		require.NoError(t, err)
		assert.Equal(t, 0.0, c.VoltsToAmps(0))
		assert.InDelta(t, ampsMax, c.VoltsToAmps(10), 1e-9)
	}
}

func TestVoltsToAmpsMidScale(t *testing.T) {
	c, err := NewConverter(Range{VinMin: 0, VinMax: 10, AmpsMin: 0, AmpsMax: 20})
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.Factor())
	assert.Equal(t, 10.0, c.VoltsToAmps(5.0))
}

func TestVoltsToAmpsIsLinear(t *testing.T) {
	c, err := NewConverter(DefaultRange)
	require.NoError(t, err)
	a, b := 1.25, 3.5
	assert.InDelta(t, c.VoltsToAmps(a)+c.VoltsToAmps(b), c.VoltsToAmps(a+b), 1e-9)
	assert.InDelta(t, 3*c.VoltsToAmps(a), c.VoltsToAmps(3*a), 1e-9)
}

func TestZeroSpanRejected(t *testing.T) {
	_, err := NewConverter(Range{VinMin: 5, VinMax: 5, AmpsMax: 20})
	require.ErrorIs(t, err, ErrZeroSpan)
}

func TestAllToAmps(t *testing.T) {
	c, err := NewConverter(Range{VinMax: 10, AmpsMax: 20})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6, 0.8, 0.7}, c.AllToAmps([]float64{0.3, 0.4, 0.35}), 1e-9)
}

func TestGallonsPumped(t *testing.T) {
	p := Pump{GallonsPerMinute: 60, TransportVolume: 10}
	assert.InDelta(t, 20.0, p.GallonsPumped(30*time.Second), 1e-9)

	// Short runs go negative unless clamped.
	assert.InDelta(t, -8.0, p.GallonsPumped(2*time.Second), 1e-9)
	p.ClampNegative = true
	assert.Equal(t, 0.0, p.GallonsPumped(2*time.Second))
	assert.Equal(t, 0.0, p.GallonsPumped(0))
}

func TestWatts(t *testing.T) {
	assert.Equal(t, 600.0, DefaultPump.Watts(5))
}
