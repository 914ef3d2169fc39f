package audio

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures live audio through portaudio and acts as a pure
// producer, sending interleaved stereo chunks to a channel.
type Microphone struct {
	sampleRate  int
	channels    int
	nameSubstr  string
	stream      *portaudio.Stream
	audioChan   chan []float32
	isStreaming bool
}

// NewMicrophone prepares a capture device. When nameSubstr is non-empty the
// first input device whose name contains it (case insensitive) is used,
// otherwise the host default.
func NewMicrophone(sampleRate int, nameSubstr string) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate, channels: 2, nameSubstr: nameSubstr}, nil
}

func pickInputDevice(nameSubstr string) (*portaudio.DeviceInfo, error) {
	host, err := portaudio.DefaultHostApi()
	if err != nil {
		return nil, err
	}
	if nameSubstr == "" {
		return host.DefaultInputDevice, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 &&
			strings.Contains(strings.ToLower(dev.Name), strings.ToLower(nameSubstr)) {
			return dev, nil
		}
	}
	slog.Warn("audio: no input device matched, using default", "substr", nameSubstr)
	return host.DefaultInputDevice, nil
}

// audioCallback runs on the portaudio thread. It copies the input slice,
// since portaudio reuses its buffer, and never blocks.
func (m *Microphone) audioCallback(in []float32) {
	dataCopy := make([]float32, len(in))
	copy(dataCopy, in)

	select {
	case m.audioChan <- dataCopy:
	default:
		slog.Warn("audio: channel full, dropping chunk")
	}
}

// Start opens the stream and begins producing interleaved stereo chunks.
func (m *Microphone) Start() (<-chan []float32, error) {
	m.audioChan = make(chan []float32, 16)

	dev, err := pickInputDevice(m.nameSubstr)
	if err != nil {
		close(m.audioChan)
		return nil, err
	}
	if dev == nil {
		close(m.audioChan)
		return nil, fmt.Errorf("no audio input device available")
	}
	if dev.MaxInputChannels < m.channels {
		m.channels = dev.MaxInputChannels
	}

	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = m.channels
	params.SampleRate = float64(m.sampleRate)

	stream, err := portaudio.OpenStream(params, m.audioCallback)
	if err != nil {
		close(m.audioChan)
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		close(m.audioChan)
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	m.stream = stream
	m.isStreaming = true
	slog.Info("audio: capture started", "device", dev.Name, "rate", m.sampleRate, "channels", m.channels)

	if m.channels == 1 {
		return upmix(m.audioChan), nil
	}
	return m.audioChan, nil
}

// upmix converts mono chunks to the interleaved stereo the analyzer
// expects. Sends never block, same as the capture callback, so the pump
// always drains mono and exits when the stream closes.
func upmix(mono <-chan []float32) <-chan []float32 {
	stereo := make(chan []float32, 16)
	go func() {
		for chunk := range mono {
			out := make([]float32, len(chunk)*2)
			for i, s := range chunk {
				out[i*2] = s
				out[i*2+1] = s
			}
			select {
			case stereo <- out:
			default:
				slog.Warn("audio: channel full, dropping chunk")
			}
		}
		close(stereo)
	}()
	return stereo
}

func (m *Microphone) Stop() error {
	if !m.isStreaming {
		return portaudio.Terminate()
	}
	if err := m.stream.Close(); err != nil {
		portaudio.Terminate()
		return err
	}
	m.isStreaming = false
	close(m.audioChan)
	return portaudio.Terminate()
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}
