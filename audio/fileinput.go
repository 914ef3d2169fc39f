package audio

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os/exec"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FileInput decodes an audio file with FFmpeg and streams it as interleaved
// stereo float32 at the requested rate. The `-re` flag keeps decoding at
// realtime speed so playback position and analysis stay in sync.
type FileInput struct {
	path       string
	sampleRate int
	cmd        *exec.Cmd
	audioChan  chan []float32
	done       chan struct{}
}

func NewFileInput(path string, sampleRate int) *FileInput {
	return &FileInput{
		path:       path,
		sampleRate: sampleRate,
		done:       make(chan struct{}),
	}
}

func (d *FileInput) Start() (<-chan []float32, error) {
	d.audioChan = make(chan []float32, 16)

	pipeReader, pipeWriter := io.Pipe()
	stream := ffmpeg.Input(d.path, ffmpeg.KwArgs{"re": ""}).
		Output("pipe:", ffmpeg.KwArgs{
			"f":  "f32le",
			"ar": d.sampleRate,
			"ac": 2,
		}).
		WithOutput(pipeWriter)

	d.cmd = stream.Compile()

	go func() {
		if err := d.cmd.Run(); err != nil {
			slog.Warn("audio: ffmpeg decode finished", "path", d.path, "err", err)
		}
		pipeWriter.Close()
	}()

	go d.pump(pipeReader)

	slog.Info("audio: file input started", "path", d.path, "rate", d.sampleRate)
	return d.audioChan, nil
}

// pump converts the raw f32le byte stream into sample chunks.
func (d *FileInput) pump(r io.Reader) {
	defer close(d.audioChan)
	buf := make([]byte, 4096*4)
	for {
		select {
		case <-d.done:
			return
		default:
		}
		n, err := io.ReadFull(r, buf)
		if n >= 4 {
			samples := make([]float32, n/4)
			for i := range samples {
				bits := binary.LittleEndian.Uint32(buf[i*4:])
				samples[i] = math.Float32frombits(bits)
			}
			select {
			case d.audioChan <- samples:
			case <-d.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (d *FileInput) Stop() error {
	close(d.done)
	if d.cmd != nil && d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	return nil
}

func (d *FileInput) SampleRate() int { return d.sampleRate }
