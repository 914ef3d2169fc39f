package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeatDefaultTempo(t *testing.T) {
	b := NewBeat()
	assert.Equal(t, float64(DefaultBPM), b.BPM())

	b.Advance(0.5) // one beat at 120
	assert.InDelta(t, 1.0, b.Value(), 1e-9)
}

func TestBeatTapTempo(t *testing.T) {
	b := NewBeat()
	// four taps half a second apart
	for i := 0; i < 4; i++ {
		b.Tap(10.0 + 0.5*float64(i))
	}
	assert.InDelta(t, 120, b.BPM(), 1e-9)

	// faster train
	for i := 0; i < 5; i++ {
		b.Tap(20.0 + 0.25*float64(i))
	}
	assert.InDelta(t, 240, b.BPM(), 1e-9)
}

func TestBeatTapTimeoutRestartsMeasurement(t *testing.T) {
	b := NewBeat()
	b.Tap(0)
	b.Tap(0.5)
	assert.InDelta(t, 120, b.BPM(), 1e-9)

	// a single tap after a long gap keeps the old estimate
	b.Tap(10)
	assert.InDelta(t, 120, b.BPM(), 1e-9)

	b.Tap(11)
	assert.InDelta(t, 60, b.BPM(), 1e-9)
}

func TestBeatCoincidentTapsKeepTempoFinite(t *testing.T) {
	b := NewBeat()
	b.Tap(5)
	b.Tap(5) // same clock reading twice

	assert.Equal(t, float64(DefaultBPM), b.BPM())

	b.Advance(0.5)
	assert.False(t, math.IsInf(b.Value(), 0))
	assert.InDelta(t, 1.0, b.Value(), 1e-9)
}

func TestBeatPhaseNeverJumpsOnRetap(t *testing.T) {
	b := NewBeat()
	b.Advance(2)
	before := b.Value()

	b.Tap(30)
	b.Tap(30.25)
	assert.Equal(t, before, b.Value())

	b.Advance(0.25)
	assert.Greater(t, b.Value(), before)
}
