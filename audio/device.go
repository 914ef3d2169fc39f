package audio

// A Device produces a stream of interleaved stereo sample chunks. Producers
// run on their own goroutine or callback thread; consumers drain the channel
// without blocking the render tick.
type Device interface {
	// Start begins capture and returns a receive-only channel of interleaved
	// stereo float32 chunks.
	Start() (<-chan []float32, error)
	// Stop terminates the stream and closes the channel.
	Stop() error
	// SampleRate returns the sample rate of the device.
	SampleRate() int
}

// NullDevice produces eternal silence. It stands in when no capture device
// could be opened, so the engine starts with zero audio sources instead of
// failing.
type NullDevice struct {
	rate int
}

func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{rate: sampleRate}
}

// Start returns a nil channel, which blocks forever on receive.
func (d *NullDevice) Start() (<-chan []float32, error) { return nil, nil }

func (d *NullDevice) Stop() error { return nil }

func (d *NullDevice) SampleRate() int { return d.rate }
