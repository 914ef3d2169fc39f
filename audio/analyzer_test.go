package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism-vj/prism/uniform"
)

func TestRingSnapshot(t *testing.T) {
	r := NewRing(8)
	r.Write([]float32{1, 2, 3, 4})

	dst := make([]float32, 4)
	r.Snapshot(dst)
	assert.Equal(t, []float32{1, 2, 3, 4}, dst)

	// Snapshot does not consume.
	r.Snapshot(dst)
	assert.Equal(t, []float32{1, 2, 3, 4}, dst)

	// Wrap-around keeps only the most recent samples.
	r.Write([]float32{5, 6, 7, 8, 9, 10})
	r.Snapshot(dst)
	assert.Equal(t, []float32{7, 8, 9, 10}, dst)
}

func TestZeroWindowYieldsZeroEnergy(t *testing.T) {
	a := NewAnalyzer(512, 44100)
	a.Process(1.0 / 60)

	assert.Zero(t, a.Volume())
	for _, c := range []*channelState{a.l, a.r} {
		assert.Zero(t, c.volume)
		for k := 0; k < bandCount; k++ {
			assert.Zero(t, c.bands[k])
		}
	}
}

func TestDerivedValuesStayFinite(t *testing.T) {
	a := NewAnalyzer(512, 44100)

	// A loud full-scale sine plus clipping-level noise.
	chunk := make([]float32, 2048)
	for i := range chunk {
		chunk[i] = float32(math.Sin(float64(i)*0.3)) * 1.5
	}
	a.Feed(chunk)

	for i := 0; i < 10; i++ {
		a.Process(1.0 / 60)
	}

	for _, c := range []*channelState{a.l, a.r} {
		for _, arr := range [][]float32{c.raw, c.smooth, c.integrated, c.spectrum, c.spectrumIntegrated} {
			for _, v := range arr {
				require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
			}
		}
		require.False(t, math.IsNaN(float64(c.volume)))
	}
	assert.Greater(t, a.Volume(), float32(0))
}

func TestNonFiniteSamplesTreatedAsSilence(t *testing.T) {
	a := NewAnalyzer(256, 44100)

	chunk := make([]float32, 512)
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	for i := range chunk {
		switch i % 2 {
		case 0:
			chunk[i] = nan
		default:
			chunk[i] = inf
		}
	}
	a.Feed(chunk)
	a.Process(1.0 / 60)

	assert.Zero(t, a.Volume())
	for _, v := range a.RawSpectrum() {
		assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
}

func TestSignalRaisesBandEnergy(t *testing.T) {
	const (
		size = 1024
		rate = 44100
	)
	a := NewAnalyzer(size, rate)

	// 110 Hz sine lands well inside the bass band.
	chunk := make([]float32, size*2)
	for i := 0; i < size; i++ {
		s := float32(math.Sin(2 * math.Pi * 110 * float64(i) / rate))
		chunk[i*2] = s
		chunk[i*2+1] = s
	}
	a.Feed(chunk)
	a.Process(1.0 / 60)

	assert.Greater(t, a.l.bands[bandBass], a.l.bands[bandHigh])
	assert.Greater(t, a.l.volume, float32(0.1))
}

func TestPublishWritesStoreEntries(t *testing.T) {
	a := NewAnalyzer(256, 44100)
	a.Process(1.0 / 60)

	store := uniform.NewStore()
	a.Publish(store)

	for _, name := range []string{
		"volume", "volumeIntegrated",
		"bass", "bassSmooth", "bassIntegrated", "bassSmoothIntegrated",
		"mid", "midSmooth", "midIntegrated", "midSmoothIntegrated",
		"high", "highSmooth", "highIntegrated", "highSmoothIntegrated",
	} {
		v, ok := store.Get(name)
		require.True(t, ok, name)
		vec, ok := v.(uniform.Vec)
		require.True(t, ok, name)
		assert.Len(t, vec, 3, name)
	}
}

func TestDecayAlphaFrameRateIndependent(t *testing.T) {
	// One 100ms step decays the same amount as ten 10ms steps.
	tau := float32(0.5)
	one := 1 - decayAlpha(0.1, tau)

	many := float32(1)
	for i := 0; i < 10; i++ {
		many *= 1 - decayAlpha(0.01, tau)
	}
	assert.InDelta(t, float64(one), float64(many), 1e-3)
}

func TestInterleavedAccessorSizes(t *testing.T) {
	a := NewAnalyzer(512, 44100)
	a.Process(1.0 / 60)

	assert.Len(t, a.Samples(), 512*2)
	assert.Len(t, a.RawSpectrum(), 512) // size/2 per channel
	assert.Len(t, a.Spectrum(), SpectrumBins*2)
}
