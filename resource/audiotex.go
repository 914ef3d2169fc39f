package resource

import (
	gl "github.com/go-gl/gl/v4.3-core/gl"
)

// SamplerSettings are the per-texture options from the pipeline file's
// `audio` section.
type SamplerSettings struct {
	Wrap   string
	Filter string
	Mipmap bool
}

// AudioTextures holds the four 1D RG32F textures the analyzer feeds every
// tick: the raw sample window, the instantaneous magnitude spectrum, the
// smoothed binned spectrum and its slow-integrated variant. R carries the
// left channel, G the right.
type AudioTextures struct {
	Samples            uint32
	RawSpectrum        uint32
	Spectrum           uint32
	SpectrumIntegrated uint32

	samplesLen     int
	rawSpectrumLen int
	spectrumLen    int
}

// NewAudioTextures allocates the textures for an FFT window of windowSize
// samples and a binned spectrum of bins entries.
func NewAudioTextures(windowSize, bins int, settings map[string]SamplerSettings) *AudioTextures {
	at := &AudioTextures{
		samplesLen:     windowSize,
		rawSpectrumLen: windowSize / 2,
		spectrumLen:    bins,
	}
	at.Samples = alloc1D(windowSize, settings["samples"])
	at.RawSpectrum = alloc1D(windowSize/2, settings["raw_spectrum"])
	at.Spectrum = alloc1D(bins, settings["spectrum"])
	at.SpectrumIntegrated = alloc1D(bins, settings["spectrum_integrated"])
	return at
}

func alloc1D(width int, s SamplerSettings) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_1D, tex)
	gl.TexImage1D(gl.TEXTURE_1D, 0, gl.RG32F, int32(width), 0, gl.RG, gl.FLOAT, nil)

	minFilter, magFilter := glFilterMode(orDefault(s.Filter, FilterNearest), s.Mipmap)
	gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(gl.TEXTURE_1D, gl.TEXTURE_WRAP_S, glWrapMode(orDefault(s.Wrap, WrapClamp)))
	gl.BindTexture(gl.TEXTURE_1D, 0)
	return tex
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Update uploads this tick's interleaved L/R data.
func (at *AudioTextures) Update(samples, rawSpectrum, spectrum, spectrumIntegrated []float32) {
	upload1D(at.Samples, at.samplesLen, samples)
	upload1D(at.RawSpectrum, at.rawSpectrumLen, rawSpectrum)
	upload1D(at.Spectrum, at.spectrumLen, spectrum)
	upload1D(at.SpectrumIntegrated, at.spectrumLen, spectrumIntegrated)
}

func upload1D(tex uint32, width int, interleaved []float32) {
	if len(interleaved) < width*2 {
		return
	}
	gl.BindTexture(gl.TEXTURE_1D, tex)
	gl.TexSubImage1D(gl.TEXTURE_1D, 0, 0, int32(width), gl.RG, gl.FLOAT, gl.Ptr(interleaved))
	gl.BindTexture(gl.TEXTURE_1D, 0)
}

// Destroy frees the textures.
func (at *AudioTextures) Destroy() {
	gl.DeleteTextures(1, &at.Samples)
	gl.DeleteTextures(1, &at.RawSpectrum)
	gl.DeleteTextures(1, &at.Spectrum)
	gl.DeleteTextures(1, &at.SpectrumIntegrated)
}
