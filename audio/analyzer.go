package audio

import (
	"log/slog"
	"math"

	"github.com/chewxy/math32"
	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/prism-vj/prism/uniform"
)

// Analysis tunables. The exact constants are performance taste, not physics;
// they are variables so a host can re-tune them.
var (
	// SmoothTau is the time constant of the fast exponential smoothing,
	// in seconds. The effective decay is scaled by the tick's wall-clock
	// delta, so smoothing is frame-rate independent.
	SmoothTau = float32(0.08)

	// IntegrateTau is the longer horizon used for the "integrated"
	// variants of every base signal.
	IntegrateTau = float32(2.0)

	// Band boundaries in Hz.
	BassBand = [2]float64{20, 250}
	MidBand  = [2]float64{250, 4000}
	HighBand = [2]float64{4000, 20000}
)

// SpectrumBins is the size of the perceptually-binned spectrum texture.
const SpectrumBins = 100

const (
	bandBass = iota
	bandMid
	bandHigh
	bandCount
)

type channelState struct {
	win        []float32
	scratch    []float64
	raw        []float32 // instantaneous magnitude spectrum
	smooth     []float32
	integrated []float32

	spectrum           []float32 // SpectrumBins, smoothed
	spectrumIntegrated []float32

	bands                 [bandCount]float32
	bandsSmooth           [bandCount]float32
	bandsIntegrated       [bandCount]float32
	bandsSmoothIntegrated [bandCount]float32

	volume           float32
	volumeIntegrated float32
}

func newChannelState(size int) *channelState {
	return &channelState{
		win:                make([]float32, size),
		scratch:            make([]float64, size),
		raw:                make([]float32, size/2),
		smooth:             make([]float32, size/2),
		integrated:         make([]float32, size/2),
		spectrum:           make([]float32, SpectrumBins),
		spectrumIntegrated: make([]float32, SpectrumBins),
	}
}

// Analyzer turns raw sample windows into spectra, smoothed and integrated
// variants, band energies and RMS volume, once per tick. It is pure math:
// uploading the results to GPU textures is the resource arena's job.
type Analyzer struct {
	size       int
	sampleRate int

	left, right *Ring
	l, r        *channelState

	warnedNonFinite bool
}

// NewAnalyzer creates an analyzer with the given FFT window size (a power of
// two) and sample rate.
func NewAnalyzer(size, sampleRate int) *Analyzer {
	return &Analyzer{
		size:       size,
		sampleRate: sampleRate,
		left:       NewRing(size * 2),
		right:      NewRing(size * 2),
		l:          newChannelState(size),
		r:          newChannelState(size),
	}
}

// WindowSize returns the FFT window size.
func (a *Analyzer) WindowSize() int { return a.size }

// Feed deinterleaves a stereo chunk into the channel rings. Safe to call
// from the device producer goroutine.
func (a *Analyzer) Feed(interleaved []float32) {
	n := len(interleaved) / 2
	l := make([]float32, n)
	r := make([]float32, n)
	for i := 0; i < n; i++ {
		l[i] = interleaved[i*2]
		r[i] = interleaved[i*2+1]
	}
	a.left.Write(l)
	a.right.Write(r)
}

// Pump drains whatever chunks the device has queued, without blocking.
// Called once per tick; a nil channel (silent device) is a no-op.
func (a *Analyzer) Pump(ch <-chan []float32) {
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			a.Feed(chunk)
		default:
			return
		}
	}
}

// Process consumes the most recent window from each ring and recomputes the
// full spectrum state. dt is the tick's wall-clock delta in seconds.
func (a *Analyzer) Process(dt float32) {
	a.left.Snapshot(a.l.win)
	a.right.Snapshot(a.r.win)
	a.sanitize(a.l.win)
	a.sanitize(a.r.win)
	a.processChannel(a.l, dt)
	a.processChannel(a.r, dt)
}

// sanitize replaces non-finite samples with silence.
func (a *Analyzer) sanitize(win []float32) {
	for i, s := range win {
		if math32.IsNaN(s) || math32.IsInf(s, 0) {
			win[i] = 0
			if !a.warnedNonFinite {
				a.warnedNonFinite = true
				slog.Warn("audio: non-finite input sample, treating as silence")
			}
		}
	}
}

func (a *Analyzer) processChannel(c *channelState, dt float32) {
	// Windowed FFT magnitude, normalized by 2/N.
	for i, s := range c.win {
		c.scratch[i] = float64(s)
	}
	window.Apply(c.scratch, window.Hann)
	spec := fft.FFTReal(c.scratch)
	norm := 2.0 / float64(a.size)
	for i := range c.raw {
		c.raw[i] = float32(cmplxAbs(spec[i]) * norm)
	}

	alpha := decayAlpha(dt, SmoothTau)
	beta := decayAlpha(dt, IntegrateTau)
	for i, x := range c.raw {
		c.smooth[i] += (x - c.smooth[i]) * alpha
		c.integrated[i] += (x - c.integrated[i]) * beta
	}

	a.binSpectrum(c.smooth, c.spectrum)
	for i := range c.spectrumIntegrated {
		c.spectrumIntegrated[i] += (c.spectrum[i] - c.spectrumIntegrated[i]) * beta
	}

	c.bands[bandBass] = a.bandEnergy(c.raw, BassBand)
	c.bands[bandMid] = a.bandEnergy(c.raw, MidBand)
	c.bands[bandHigh] = a.bandEnergy(c.raw, HighBand)
	for k := 0; k < bandCount; k++ {
		c.bandsSmooth[k] += (c.bands[k] - c.bandsSmooth[k]) * alpha
		c.bandsIntegrated[k] += (c.bands[k] - c.bandsIntegrated[k]) * beta
		c.bandsSmoothIntegrated[k] += (c.bandsSmooth[k] - c.bandsSmoothIntegrated[k]) * beta
	}

	c.volume = rms(c.win)
	c.volumeIntegrated += (c.volume - c.volumeIntegrated) * beta
}

// binSpectrum buckets the half spectrum into SpectrumBins perceptual bins
// using a square-root frequency curve, max-pooling within each bin.
func (a *Analyzer) binSpectrum(src, dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
	fmax := float32(len(src))
	for i, v := range src {
		bi := int(math32.Sqrt(float32(i)/fmax) * float32(len(dst)))
		if bi >= len(dst) {
			bi = len(dst) - 1
		}
		if v > dst[bi] {
			dst[bi] = v
		}
	}
}

// bandEnergy averages the magnitude spectrum over a frequency range.
func (a *Analyzer) bandEnergy(spec []float32, band [2]float64) float32 {
	binHz := float64(a.sampleRate) / float64(a.size)
	lo := int(band[0] / binHz)
	hi := int(band[1] / binHz)
	if hi > len(spec) {
		hi = len(spec)
	}
	if lo >= hi {
		return 0
	}
	var sum float32
	for _, v := range spec[lo:hi] {
		sum += v
	}
	return sum / float32(hi-lo)
}

// Publish writes all derived values into the store.
func (a *Analyzer) Publish(store *uniform.Store) {
	mix := func(l, r float32) float32 { return (l + r) * 0.5 }
	vec3 := func(l, r float32) uniform.Vec { return uniform.Vec{l, r, mix(l, r)} }

	store.Set("volume", vec3(a.l.volume, a.r.volume))
	store.Set("volumeIntegrated", vec3(a.l.volumeIntegrated, a.r.volumeIntegrated))

	names := [bandCount]string{"bass", "mid", "high"}
	for k := 0; k < bandCount; k++ {
		store.Set(names[k], vec3(a.l.bands[k], a.r.bands[k]))
		store.Set(names[k]+"Smooth", vec3(a.l.bandsSmooth[k], a.r.bandsSmooth[k]))
		store.Set(names[k]+"Integrated", vec3(a.l.bandsIntegrated[k], a.r.bandsIntegrated[k]))
		store.Set(names[k]+"SmoothIntegrated", vec3(a.l.bandsSmoothIntegrated[k], a.r.bandsSmoothIntegrated[k]))
	}
}

// Samples returns the current raw window, interleaved L/R for the RG32F
// samples texture.
func (a *Analyzer) Samples() []float32 { return interleave(a.l.win, a.r.win) }

// RawSpectrum returns the interleaved instantaneous magnitude spectrum.
func (a *Analyzer) RawSpectrum() []float32 { return interleave(a.l.raw, a.r.raw) }

// Spectrum returns the interleaved smoothed, binned spectrum.
func (a *Analyzer) Spectrum() []float32 { return interleave(a.l.spectrum, a.r.spectrum) }

// SpectrumIntegrated returns the interleaved integrated binned spectrum.
func (a *Analyzer) SpectrumIntegrated() []float32 {
	return interleave(a.l.spectrumIntegrated, a.r.spectrumIntegrated)
}

// Volume returns the mixed instantaneous RMS volume.
func (a *Analyzer) Volume() float32 { return (a.l.volume + a.r.volume) * 0.5 }

func interleave(l, r []float32) []float32 {
	out := make([]float32, len(l)*2)
	for i := range l {
		out[i*2] = l[i]
		out[i*2+1] = r[i]
	}
	return out
}

// decayAlpha converts a time constant into a per-tick lerp factor such that
// the effective decay is independent of tick rate.
func decayAlpha(dt, tau float32) float32 {
	if tau <= 0 {
		return 1
	}
	return 1 - math32.Exp(-dt/tau)
}

func rms(win []float32) float32 {
	if len(win) == 0 {
		return 0
	}
	var sum float32
	for _, s := range win {
		sum += s * s
	}
	return math32.Sqrt(sum / float32(len(win)))
}

func cmplxAbs(z complex128) float64 {
	return math.Hypot(real(z), imag(z))
}
