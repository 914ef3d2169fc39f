package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePipeline = `
audio_samples: 4096
audio:
  spectrum:
    filter: linear
    wrap_mode: repeat
images:
  - path: tex/logo.png
    name: logo
stages:
  - cs: particles.comp
    target: particles
    resolution: [128, 128]
    dispatch: [16, 16]
  - vs: draw.vert
    target: scene
    count: 5000
    mode: line_strip
    thickness: 2.5
  - fs: post.frag
    uniforms:
      - tint: [1.0, 0.5, 0.25]
      - gain: 2.0
      - warpTransposed: [1, 0, 0, 0, 1, 0, 0, 0, 1]
`

func TestParseSamplePipeline(t *testing.T) {
	doc, err := Parse([]byte(samplePipeline))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	assert.Equal(t, 4096, doc.AudioSamples)
	assert.Equal(t, "repeat", doc.Audio["spectrum"].WrapMode)
	require.Len(t, doc.Images, 1)
	assert.Equal(t, "logo", doc.Images[0].Name)
	require.Len(t, doc.Stages, 3)

	kind, ok := doc.Stages[0].Kind()
	require.True(t, ok)
	assert.Equal(t, KindCompute, kind)

	kind, ok = doc.Stages[1].Kind()
	require.True(t, ok)
	assert.Equal(t, KindVertex, kind)
	assert.Equal(t, 5000, doc.Stages[1].VertexCount())
	assert.Equal(t, "line_strip", doc.Stages[1].PrimitiveMode())
	assert.Equal(t, float32(2.5), doc.Stages[1].PointThickness())

	kind, ok = doc.Stages[2].Kind()
	require.True(t, ok)
	assert.Equal(t, KindFragment, kind)

	uniforms := doc.Stages[2].Uniforms
	require.Len(t, uniforms, 3)
	assert.Equal(t, UniformDecl{Name: "tint", Values: []float32{1, 0.5, 0.25}}, uniforms[0])
	assert.Equal(t, UniformDecl{Name: "gain", Values: []float32{2}}, uniforms[1])
	assert.Equal(t, "warp", uniforms[2].Name)
	assert.True(t, uniforms[2].Transpose)
	assert.Len(t, uniforms[2].Values, 9)
}

func TestParseVertexStageDefaults(t *testing.T) {
	doc, err := Parse([]byte("stages:\n  - vs: a.vert\n"))
	require.NoError(t, err)
	require.NoError(t, doc.Validate())

	s := &doc.Stages[0]
	assert.Equal(t, DefaultVertexCount, s.VertexCount())
	assert.Equal(t, DefaultMode, s.PrimitiveMode())
	assert.Equal(t, float32(DefaultThickness), s.PointThickness())
	assert.Equal(t, DefaultAudioSamples, doc.AudioSamples)
}

func TestParseMalformedTextIsSyntaxError(t *testing.T) {
	_, err := Parse([]byte("stages:\n  - fs: [unclosed\n"))
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Greater(t, se.Line, 0)
}

func TestValidateEmptyStages(t *testing.T) {
	doc, err := Parse([]byte("images: []\n"))
	require.NoError(t, err)
	var se *SyntaxError
	require.ErrorAs(t, doc.Validate(), &se)
}

func TestValidateStageErrors(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		index int
		field string
	}{
		{"no shader source", "stages:\n  - fs: a.frag\n  - target: tgt\n", 1, ""},
		{"fs and cs together", "stages:\n  - fs: a.frag\n    cs: a.comp\n", 0, ""},
		{"compute without dispatch", "stages:\n  - cs: a.comp\n    target: t\n    resolution: [64]\n", 0, "dispatch"},
		{"compute without resolution", "stages:\n  - cs: a.comp\n    target: t\n    dispatch: [8]\n", 0, "resolution"},
		{"compute without target", "stages:\n  - cs: a.comp\n    resolution: [64]\n    dispatch: [8]\n", 0, "target"},
		{"dispatch on fragment stage", "stages:\n  - fs: a.frag\n    dispatch: [8]\n", 0, "dispatch"},
		{"negative resolution", "stages:\n  - fs: a.frag\n    resolution: [-1, 4]\n", 0, "resolution"},
		{"bad wrap mode", "stages:\n  - fs: a.frag\n    wrap: mirror\n", 0, "wrap"},
		{"bad primitive mode", "stages:\n  - vs: a.vert\n    mode: quads\n", 0, "mode"},
		{"zero vertex count", "stages:\n  - vs: a.vert\n    count: 0\n", 0, "count"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse([]byte(tc.text))
			require.NoError(t, err)

			var se *StageError
			require.True(t, errors.As(doc.Validate(), &se), "want StageError, got %v", doc.Validate())
			assert.Equal(t, tc.index, se.Index)
			assert.Equal(t, tc.field, se.Field)
		})
	}
}

func TestParseUniformComponentCounts(t *testing.T) {
	_, err := Parse([]byte("stages:\n  - fs: a.frag\n    uniforms:\n      - bad: [1, 2, 3, 4, 5]\n"))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "uniforms", se.Field)
}

func TestParseTransposedSuffixOnlyAppliesToMatrices(t *testing.T) {
	doc, err := Parse([]byte("stages:\n  - fs: a.frag\n    uniforms:\n      - isTransposed: 1.0\n      - dirTransposed: [0, 1]\n"))
	require.NoError(t, err)

	uniforms := doc.Stages[0].Uniforms
	require.Len(t, uniforms, 2)
	assert.Equal(t, "isTransposed", uniforms[0].Name)
	assert.False(t, uniforms[0].Transpose)
	assert.Equal(t, "dirTransposed", uniforms[1].Name)
	assert.False(t, uniforms[1].Transpose)
}

func TestParseLocalSize(t *testing.T) {
	src := `#version 430
layout(local_size_x = 32, local_size_y = 8) in;
void main() {}`
	assert.Equal(t, [3]int{32, 8, 1}, ParseLocalSize(src))
	assert.Equal(t, [3]int{1, 1, 1}, ParseLocalSize("void main() {}"))
}
