package engine

// Tap tempo. The beat value is a phase accumulator in beats: it only ever
// moves forward, and retapping changes its slope without snapping it back,
// so shaders animating on fract(beat) never jump on a tempo change.

const (
	// DefaultBPM drives the beat uniform before the first tap.
	DefaultBPM = 120

	// tapTimeout starts a fresh measurement when the gap since the last
	// tap exceeds it.
	tapTimeout = 2.0
)

type Beat struct {
	first float64
	last  float64
	taps  int
	bpm   float64
	value float64
}

func NewBeat() *Beat {
	return &Beat{bpm: DefaultBPM}
}

// Tap records one tap at the given clock time and re-estimates the tempo
// from the running tap train.
func (b *Beat) Tap(now float64) {
	if b.taps == 0 || now-b.last > tapTimeout {
		b.first = now
		b.last = now
		b.taps = 1
		return
	}
	b.taps++
	b.last = now
	// Coincident taps would divide by zero and drive the phase non-finite.
	if span := b.last - b.first; span > 0 {
		b.bpm = 60 * float64(b.taps-1) / span
	}
}

// Advance integrates the beat phase over one tick.
func (b *Beat) Advance(dt float64) {
	b.value += dt * b.bpm / 60
}

// Value returns the accumulated beat count.
func (b *Beat) Value() float64 { return b.value }

// BPM returns the current tempo estimate.
func (b *Beat) BPM() float64 { return b.bpm }
