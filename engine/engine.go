// Package engine owns the tick loop: it drains the producer queues,
// publishes the per-tick uniform values, executes the current graph and
// supervises hot reloads. Everything that touches GL happens here, on the
// one thread the context is current on.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/prism-vj/prism/audio"
	"github.com/prism-vj/prism/config"
	"github.com/prism-vj/prism/graphics"
	"github.com/prism-vj/prism/midi"
	"github.com/prism-vj/prism/pipeline"
	"github.com/prism-vj/prism/resource"
	"github.com/prism-vj/prism/uniform"
)

// PipelineFile is looked up in the project directory.
const PipelineFile = "pipeline.yaml"

// reservedNames are sampler uniforms the engine owns; pipelines read them
// but cannot render to them.
var reservedNames = []string{
	"samples", "rawSpectrum", "spectrum", "spectrumIntegrated", "noise",
}

type Engine struct {
	ctx graphics.Context
	cfg *config.Config
	dir string
	log *slog.Logger

	store    *uniform.Store
	arena    *resource.Arena
	images   *resource.ImageCache
	compiler *pipeline.Compiler
	executor *pipeline.Executor
	graph    *pipeline.Graph

	analyzer  *audio.Analyzer
	device    audio.Device
	samples   <-chan []float32
	audioTex  *resource.AudioTextures
	audioDecl map[string]resource.SamplerSettings

	midi     *midi.Engine
	devices  *midi.Devices
	nextSlot [2]int

	beat           *Beat
	watcher        *Watcher
	sources        map[string]Source
	sourceSamplers []string

	noise      uint32
	lastTime   float64
	frameCount int32
	width      int
	height     int
}

// New builds the engine's subsystems. The GL context must already be
// current on the calling thread.
func New(ctx graphics.Context, cfg *config.Config, dir string, log *slog.Logger) (*Engine, error) {
	width, height := ctx.GetFramebufferSize()

	e := &Engine{
		ctx:     ctx,
		cfg:     cfg,
		dir:     dir,
		log:     log,
		store:   uniform.NewStore(),
		arena:   resource.NewArena(width, height),
		images:  resource.NewImageCache(),
		midi:    midi.NewEngine(),
		beat:    NewBeat(),
		sources: make(map[string]Source),
		width:   width,
		height:  height,
	}
	e.compiler = &pipeline.Compiler{
		Arena:    e.arena,
		Store:    e.store,
		Images:   e.images,
		Log:      log,
		Reserved: reservedNames,
	}
	e.executor = pipeline.NewExecutor(log)

	e.noise = resource.MakeNoise3D()
	e.store.Set("noise", uniform.Texture{ID: e.noise, Target: gl.TEXTURE_3D})

	e.analyzer = audio.NewAnalyzer(pipeline.DefaultAudioSamples, cfg.AudioSampleRate)
	e.audioTex = resource.NewAudioTextures(pipeline.DefaultAudioSamples, audio.SpectrumBins, nil)
	e.publishAudioTextures()

	e.device = openAudioDevice(cfg, log)
	samples, err := e.device.Start()
	if err != nil {
		log.Warn("audio device failed, running silent", "err", err)
		e.device = audio.NewNullDevice(cfg.AudioSampleRate)
		samples, _ = e.device.Start()
	}
	e.samples = samples

	e.devices, err = midi.NewDevices(e.midi, cfg.MidiDevices)
	if err != nil {
		log.Warn("midi unavailable", "err", err)
	}

	e.watcher, err = NewWatcher(dir, log)
	if err != nil {
		e.Shutdown()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	// Publish every uniform once so the first compile sees the full name
	// set when it resolves stage dependencies.
	e.publishCommon(ctx.Time(), 0)
	e.midi.Publish(e.store)
	e.analyzer.Publish(e.store)

	e.Reload()
	return e, nil
}

func openAudioDevice(cfg *config.Config, log *slog.Logger) audio.Device {
	if cfg.AudioFile != "" {
		return audio.NewFileInput(cfg.AudioFile, cfg.AudioSampleRate)
	}
	mic, err := audio.NewMicrophone(cfg.AudioSampleRate, cfg.AudioDevice)
	if err != nil {
		log.Warn("no audio input, running silent", "err", err)
		return audio.NewNullDevice(cfg.AudioSampleRate)
	}
	return mic
}

// Run drives the tick loop until the window closes.
func (e *Engine) Run() {
	e.lastTime = e.ctx.Time()

	for !e.ctx.ShouldClose() {
		now := e.ctx.Time()
		dt := float32(now - e.lastTime)
		e.lastTime = now
		if dt < 0 {
			dt = 0
		}

		select {
		case <-e.watcher.C:
			e.Reload()
		default:
		}

		if w, h := e.ctx.GetFramebufferSize(); w != e.width || h != e.height {
			e.width, e.height = w, h
			e.arena.Resize(w, h)
		}

		if e.devices != nil {
			e.devices.Rescan()
		}
		e.midi.Drain()
		e.midi.Advance(dt)
		e.midi.Publish(e.store)

		e.analyzer.Pump(e.samples)
		e.analyzer.Process(dt)
		e.analyzer.Publish(e.store)
		e.audioTex.Update(e.analyzer.Samples(), e.analyzer.RawSpectrum(),
			e.analyzer.Spectrum(), e.analyzer.SpectrumIntegrated())

		for _, src := range e.sources {
			src.Update()
		}

		e.beat.Advance(float64(dt))
		e.publishCommon(now, dt)

		gl.ClearColor(0, 0, 0, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		if e.graph != nil {
			e.executor.Render(e.graph, e.store, e.arena, e.width, e.height)
		}

		e.ctx.EndFrame()
		e.frameCount++
	}
}

func (e *Engine) publishCommon(now float64, dt float32) {
	w, h := float32(e.width), float32(e.height)
	e.store.Set("resolution", uniform.Vec{w, h, w / h, h / w})
	e.store.Set("time", uniform.Float(now))
	e.store.Set("delta", uniform.Float(dt))
	e.store.Set("beat", uniform.Float(e.beat.Value()))
	e.store.Set("frameCount", uniform.Int(e.frameCount))
}

func (e *Engine) publishAudioTextures() {
	e.store.Set("samples", uniform.Texture{ID: e.audioTex.Samples, Target: gl.TEXTURE_1D})
	e.store.Set("rawSpectrum", uniform.Texture{ID: e.audioTex.RawSpectrum, Target: gl.TEXTURE_1D})
	e.store.Set("spectrum", uniform.Texture{ID: e.audioTex.Spectrum, Target: gl.TEXTURE_1D})
	e.store.Set("spectrumIntegrated", uniform.Texture{ID: e.audioTex.SpectrumIntegrated, Target: gl.TEXTURE_1D})
}

// Reload compiles the pipeline file and swaps it in. On any failure the
// running graph stays exactly as it is; the error is logged and the engine
// keeps watching for the next change.
func (e *Engine) Reload() {
	path := filepath.Join(e.dir, PipelineFile)
	data, err := os.ReadFile(path)
	if err != nil {
		e.log.Error("reload failed", "stage", "read", "err", err)
		return
	}

	graph, doc, err := e.compiler.Compile(e.dir, data)
	if err != nil {
		e.logCompileError(err)
		return
	}

	if old := e.graph; old != nil {
		old.Destroy()
	}
	e.graph = graph

	e.applyAudioSettings(doc)
	e.bindSources(doc)

	// Fresh noise per pipeline, so reload doubles as a reroll.
	gl.DeleteTextures(1, &e.noise)
	e.noise = resource.MakeNoise3D()
	e.store.Set("noise", uniform.Texture{ID: e.noise, Target: gl.TEXTURE_3D})

	e.log.Info("pipeline loaded", "stages", len(graph.Stages), "targets", len(graph.Targets))
}

func (e *Engine) logCompileError(err error) {
	var syn *pipeline.SyntaxError
	var stage *pipeline.StageError
	var shader *pipeline.ShaderError
	var res *pipeline.ResourceError
	switch {
	case errors.As(err, &syn):
		e.log.Error("reload failed", "stage", "parse", "line", syn.Line, "err", syn.Msg)
	case errors.As(err, &stage):
		e.log.Error("reload failed", "stage", "validate", "index", stage.Index, "field", stage.Field, "err", stage.Msg)
	case errors.As(err, &shader):
		e.log.Error("reload failed", "stage", "shader", "index", shader.Index, "path", shader.Path, "err", shader.Log)
	case errors.As(err, &res):
		e.log.Error("reload failed", "stage", "resource", "name", res.Name, "err", res.Err)
	default:
		e.log.Error("reload failed", "err", err)
	}
}

// applyAudioSettings recreates the analyzer and audio textures when the
// pipeline's FFT window or sampler settings changed.
func (e *Engine) applyAudioSettings(doc *pipeline.Doc) {
	decl := make(map[string]resource.SamplerSettings, len(doc.Audio))
	for name, d := range doc.Audio {
		decl[name] = resource.SamplerSettings{
			Wrap:   d.WrapMode,
			Filter: d.Filter,
			Mipmap: d.Mipmap,
		}
	}

	if doc.AudioSamples == e.analyzer.WindowSize() && samplerSettingsEqual(decl, e.audioDecl) {
		return
	}

	e.analyzer = audio.NewAnalyzer(doc.AudioSamples, e.device.SampleRate())
	e.audioTex.Destroy()
	e.audioTex = resource.NewAudioTextures(doc.AudioSamples, audio.SpectrumBins, decl)
	e.audioDecl = decl
	e.publishAudioTextures()
	e.analyzer.Publish(e.store)
}

func samplerSettingsEqual(a, b map[string]resource.SamplerSettings) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// bindSources matches the pipeline's source declarations against the
// configured video sources and exposes each match as a sampler.
func (e *Engine) bindSources(doc *pipeline.Doc) {
	bound := make(map[string]bool)
	samplers := make([]string, 0, len(doc.Sources))

	for _, decl := range doc.Sources {
		src, err := e.openSource(decl.Source)
		if err != nil {
			e.log.Warn("source unavailable", "source", decl.Source, "sampler", decl.Name, "err", err)
			continue
		}
		bound[src.Name()] = true
		samplers = append(samplers, decl.Name)

		w, h := src.Resolution()
		e.store.Set(decl.Name, uniform.Texture{ID: src.TextureID(), Target: gl.TEXTURE_2D})
		e.store.Set(decl.Name+"Res", uniform.Vec{
			float32(w), float32(h), float32(w) / float32(h), float32(h) / float32(w),
		})
	}

	for name, src := range e.sources {
		if !bound[name] {
			src.Destroy()
			delete(e.sources, name)
		}
	}

	still := make(map[string]bool, len(samplers))
	for _, name := range samplers {
		still[name] = true
	}
	for _, name := range e.sourceSamplers {
		if !still[name] {
			e.store.Delete(name)
			e.store.Delete(name + "Res")
		}
	}
	e.sourceSamplers = samplers
}

// openSource finds the configured video source whose name contains
// pattern, starting it on first use.
func (e *Engine) openSource(pattern string) (Source, error) {
	for name, src := range e.sources {
		if strings.Contains(name, pattern) {
			return src, nil
		}
	}
	for name, path := range e.cfg.VideoSources {
		if !strings.Contains(name, pattern) {
			continue
		}
		src, err := NewVideoSource(name, path, e.log)
		if err != nil {
			return nil, err
		}
		e.sources[name] = src
		return src, nil
	}
	return nil, fmt.Errorf("no configured source matches %q", pattern)
}

// TapBeat records a tap-tempo tap. Wired to a key callback, which GLFW
// delivers on the tick thread.
func (e *Engine) TapBeat() {
	e.beat.Tap(e.ctx.Time())
	e.log.Info("beat tap", "bpm", e.beat.BPM())
}

// ArmSliderBind puts the MIDI engine into bind mode for the next slider
// slot; the next incoming control change claims it.
func (e *Engine) ArmSliderBind() {
	slot := e.nextSlot[0]
	e.nextSlot[0] = (slot + 1) % midi.SlotCount
	e.midi.BeginBind(midi.ControlSlider, slot)
	e.log.Info("bind armed", "kind", "slider", "slot", slot)
}

// ArmButtonBind puts the MIDI engine into bind mode for the next button
// slot; the next incoming note claims it.
func (e *Engine) ArmButtonBind() {
	slot := e.nextSlot[1]
	e.nextSlot[1] = (slot + 1) % midi.SlotCount
	e.midi.BeginBind(midi.ControlButton, slot)
	e.log.Info("bind armed", "kind", "button", "slot", slot)
}

// CancelBind leaves bind mode without changing any binding.
func (e *Engine) CancelBind() {
	if e.midi.Binding() {
		e.midi.CancelBind()
		e.log.Info("bind cancelled")
	}
}

// Shutdown tears the engine down in dependency order. Producers stop
// first, then everything holding GL state.
func (e *Engine) Shutdown() {
	if e.watcher != nil {
		e.watcher.Close()
	}
	if e.devices != nil {
		e.devices.Close()
	}
	if e.device != nil {
		e.device.Stop()
	}
	for name, src := range e.sources {
		src.Destroy()
		delete(e.sources, name)
	}
	if e.graph != nil {
		e.graph.Destroy()
		e.graph = nil
	}
	if e.audioTex != nil {
		e.audioTex.Destroy()
	}
	if e.images != nil {
		e.images.Destroy()
	}
	if e.noise != 0 {
		gl.DeleteTextures(1, &e.noise)
	}
	if e.executor != nil {
		e.executor.Destroy()
	}
	e.arena.Destroy()
}
