package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-gl/gl/v4.3-core/gl"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Source is an external texture stream a pipeline can bind by name. Update
// runs on the tick thread and uploads the newest frame, if any arrived.
type Source interface {
	Name() string
	TextureID() uint32
	Resolution() (int, int)
	Update()
	Destroy()
}

// VideoSource decodes a media file into RGBA frames through an ffmpeg
// pipe, looping at end of file. Decoding paces itself to the file's native
// frame rate; the tick thread only ever sees the latest decoded frame.
type VideoSource struct {
	name   string
	path   string
	tex    uint32
	width  int
	height int

	frames chan []byte
	quit   chan struct{}
	log    *slog.Logger
}

// NewVideoSource probes the file, allocates the texture and starts the
// decode goroutine. Must run on the tick thread.
func NewVideoSource(name, path string, log *slog.Logger) (*VideoSource, error) {
	width, height, err := probeVideoSize(path)
	if err != nil {
		return nil, err
	}

	s := &VideoSource{
		name:   name,
		path:   path,
		width:  width,
		height: height,
		frames: make(chan []byte, 1),
		quit:   make(chan struct{}),
		log:    log,
	}

	gl.GenTextures(1, &s.tex)
	gl.BindTexture(gl.TEXTURE_2D, s.tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height),
		0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	go s.pump()
	return s, nil
}

func probeVideoSize(path string) (int, int, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, 0, fmt.Errorf("probing %q: %w", path, err)
	}
	var info struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
	}
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return 0, 0, fmt.Errorf("parsing probe of %q: %w", path, err)
	}
	for _, st := range info.Streams {
		if st.CodecType == "video" && st.Width > 0 && st.Height > 0 {
			return st.Width, st.Height, nil
		}
	}
	return 0, 0, fmt.Errorf("no video stream in %q", path)
}

func (s *VideoSource) pump() {
	pr, pw := io.Pipe()

	stream := ffmpeg.Input(s.path, ffmpeg.KwArgs{"re": "", "stream_loop": -1}).
		Output("pipe:", ffmpeg.KwArgs{
			"f":       "rawvideo",
			"pix_fmt": "rgba",
			"vsync":   "passthrough",
		}).
		WithOutput(pw).
		Compile()

	go func() {
		err := stream.Run()
		pw.CloseWithError(err)
	}()
	defer func() {
		pr.Close()
		if stream.Process != nil {
			stream.Process.Kill()
		}
	}()

	frameSize := s.width * s.height * 4
	for {
		frame := make([]byte, frameSize)
		if _, err := io.ReadFull(pr, frame); err != nil {
			if err != io.EOF {
				s.log.Warn("video source stopped", "source", s.name, "err", err)
			}
			return
		}

		// Latest wins: replace a frame the tick thread has not
		// collected yet.
		select {
		case s.frames <- frame:
		default:
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- frame:
			case <-s.quit:
				return
			}
		}

		select {
		case <-s.quit:
			return
		default:
		}
	}
}

func (s *VideoSource) Name() string           { return s.name }
func (s *VideoSource) TextureID() uint32      { return s.tex }
func (s *VideoSource) Resolution() (int, int) { return s.width, s.height }

// Update uploads the newest decoded frame, if one is waiting.
func (s *VideoSource) Update() {
	select {
	case frame := <-s.frames:
		gl.BindTexture(gl.TEXTURE_2D, s.tex)
		gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(s.width), int32(s.height),
			gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(frame))
		gl.BindTexture(gl.TEXTURE_2D, 0)
	default:
	}
}

// Destroy stops decoding and frees the texture.
func (s *VideoSource) Destroy() {
	close(s.quit)
	gl.DeleteTextures(1, &s.tex)
	s.tex = 0
}
