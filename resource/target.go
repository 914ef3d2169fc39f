package resource

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.3-core/gl"
)

// Kind selects the storage class of a render target.
type Kind int

const (
	// Framebuffer2D is a color texture with an FBO attachment, drawn into
	// by fragment and vertex stages.
	Framebuffer2D Kind = iota
	// Image1D, Image2D and Image3D are storage images written by compute
	// stages through image units.
	Image1D
	Image2D
	Image3D
)

// Wrap and filter modes, from the declarative `wrap`/`filter` fields.
const (
	WrapClamp  = "clamp"
	WrapRepeat = "repeat"

	FilterLinear  = "linear"
	FilterNearest = "nearest"
)

// Spec is the declared shape of a render target. Two acquisitions with
// equal specs share one allocation; a spec change forces a reallocation and
// bumps the generation counter.
type Spec struct {
	Width, Height, Depth int
	Kind                 Kind
	Wrap                 string
	Filter               string
	Mipmap               bool
	Float                bool

	// ScreenSized marks targets that follow the display surface resolution
	// and are reallocated on resize.
	ScreenSized bool
}

// Target is a name-keyed GPU resource owned exclusively by the Arena.
// Stages reference it by handle; Generation lets dependents detect that the
// name now maps to a newer allocation without holding a reference.
type Target struct {
	Name       string
	Spec       Spec
	Tex        uint32
	FBO        uint32
	Generation uint64

	refs int
	dead bool
}

// Refs reports the current reference count.
func (t *Target) Refs() int { return t.refs }

// GLTarget returns the texture binding target for the spec's kind.
func (t *Target) GLTarget() uint32 {
	switch t.Spec.Kind {
	case Image1D:
		return gl.TEXTURE_1D
	case Image3D:
		return gl.TEXTURE_3D
	default:
		return gl.TEXTURE_2D
	}
}

func glWrapMode(wrap string) int32 {
	if wrap == WrapRepeat {
		return gl.REPEAT
	}
	return gl.CLAMP_TO_EDGE
}

func glFilterMode(filter string, mipmap bool) (min, mag int32) {
	switch {
	case filter == FilterNearest:
		return gl.NEAREST, gl.NEAREST
	case mipmap:
		return gl.LINEAR_MIPMAP_LINEAR, gl.LINEAR
	default:
		return gl.LINEAR, gl.LINEAR
	}
}

// allocate creates the GL storage for t according to its spec.
func allocate(t *Target) error {
	spec := t.Spec

	internal := int32(gl.RGBA8)
	if spec.Float || spec.Kind != Framebuffer2D {
		// Compute images always get float storage so dispatch results
		// survive with full precision.
		internal = gl.RGBA32F
	}

	gl.GenTextures(1, &t.Tex)
	texTarget := t.GLTarget()
	gl.BindTexture(texTarget, t.Tex)

	switch spec.Kind {
	case Image1D:
		gl.TexImage1D(texTarget, 0, internal, int32(spec.Width), 0, gl.RGBA, gl.FLOAT, nil)
	case Image3D:
		gl.TexImage3D(texTarget, 0, internal, int32(spec.Width), int32(spec.Height),
			int32(spec.Depth), 0, gl.RGBA, gl.FLOAT, nil)
	default:
		gl.TexImage2D(texTarget, 0, internal, int32(spec.Width), int32(spec.Height),
			0, gl.RGBA, gl.FLOAT, nil)
	}

	minFilter, magFilter := glFilterMode(spec.Filter, spec.Mipmap)
	wrap := glWrapMode(spec.Wrap)
	gl.TexParameteri(texTarget, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(texTarget, gl.TEXTURE_MAG_FILTER, magFilter)
	gl.TexParameteri(texTarget, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(texTarget, gl.TEXTURE_WRAP_T, wrap)
	if spec.Kind == Image3D {
		gl.TexParameteri(texTarget, gl.TEXTURE_WRAP_R, wrap)
	}
	if spec.Mipmap {
		gl.GenerateMipmap(texTarget)
	}
	gl.BindTexture(texTarget, 0)

	if spec.Kind == Framebuffer2D {
		gl.GenFramebuffers(1, &t.FBO)
		gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, t.Tex, 0)
		status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		if status != gl.FRAMEBUFFER_COMPLETE {
			release(t)
			return fmt.Errorf("framebuffer for target %q is not complete (0x%04x)", t.Name, status)
		}
	}
	return nil
}

// release frees the GL storage of t.
func release(t *Target) {
	if t.FBO != 0 {
		gl.DeleteFramebuffers(1, &t.FBO)
		t.FBO = 0
	}
	if t.Tex != 0 {
		gl.DeleteTextures(1, &t.Tex)
		t.Tex = 0
	}
}
