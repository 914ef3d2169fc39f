package uniform

import (
	gl "github.com/go-gl/gl/v4.3-core/gl"
)

// Value is a single typed entry in the Store. Apply uploads the value to the
// given uniform location. Texture values claim the next texture unit from
// *unit and bind themselves there; scalar values leave it untouched.
type Value interface {
	Apply(loc int32, unit *int32)
}

// Float is a single float uniform.
type Float float32

func (v Float) Apply(loc int32, _ *int32) { gl.Uniform1f(loc, float32(v)) }

// Int is a single signed integer uniform.
type Int int32

func (v Int) Apply(loc int32, _ *int32) { gl.Uniform1i(loc, int32(v)) }

// Vec is a vector of 2 to 4 components. A one-element Vec degrades to a
// plain float upload so declarative `uniforms` entries may use either form.
type Vec []float32

func (v Vec) Apply(loc int32, _ *int32) {
	switch len(v) {
	case 1:
		gl.Uniform1f(loc, v[0])
	case 2:
		gl.Uniform2f(loc, v[0], v[1])
	case 3:
		gl.Uniform3f(loc, v[0], v[1], v[2])
	case 4:
		gl.Uniform4f(loc, v[0], v[1], v[2], v[3])
	}
}

// Mat is a square matrix of dimension 2 to 4, stored column major.
// Transpose marks values that were supplied row major and must be flipped
// on upload.
type Mat struct {
	Dim       int
	V         []float32
	Transpose bool
}

func (m Mat) Apply(loc int32, _ *int32) {
	if len(m.V) < m.Dim*m.Dim {
		return
	}
	switch m.Dim {
	case 2:
		gl.UniformMatrix2fv(loc, 1, m.Transpose, &m.V[0])
	case 3:
		gl.UniformMatrix3fv(loc, 1, m.Transpose, &m.V[0])
	case 4:
		gl.UniformMatrix4fv(loc, 1, m.Transpose, &m.V[0])
	}
}

// FloatArray is a float[] uniform, used for the 32 slider values.
type FloatArray []float32

func (v FloatArray) Apply(loc int32, _ *int32) {
	if len(v) == 0 {
		return
	}
	gl.Uniform1fv(loc, int32(len(v)), &v[0])
}

// Vec4Array is a vec4[] uniform packed as flat floats, used for the 32
// button states (intensity, since-on, since-off, count).
type Vec4Array []float32

func (v Vec4Array) Apply(loc int32, _ *int32) {
	if len(v) < 4 {
		return
	}
	gl.Uniform4fv(loc, int32(len(v)/4), &v[0])
}

// Texture exposes a GL texture as a sampler uniform. Target selects the
// sampler dimensionality (gl.TEXTURE_1D, gl.TEXTURE_2D or gl.TEXTURE_3D).
type Texture struct {
	ID     uint32
	Target uint32
}

func (t Texture) Apply(loc int32, unit *int32) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(*unit))
	gl.BindTexture(t.Target, t.ID)
	gl.Uniform1i(loc, *unit)
	*unit++
}
