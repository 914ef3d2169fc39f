package pipeline

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/prism-vj/prism/uniform"
)

// BoundUniform is a per-stage uniform declared in the pipeline file,
// resolved to its location in the stage's program.
type BoundUniform struct {
	Loc   int32
	Value uniform.Value
}

// Dep is a named input the stage's program actually references: a store
// uniform or a render target sampler. Only live locations are kept, so
// applying deps never touches uniforms the shader optimized away.
type Dep struct {
	Name string
	Loc  int32
}

// Stage is one compiled pass of the graph, executed in declaration order.
type Stage struct {
	Index      int
	Kind       Kind
	TargetName string
	Prog       uint32

	// vertex stages
	VertexCount int32
	Mode        uint32
	Thickness   float32

	// compute stages
	Dispatch  [3]uint32
	LocalSize [3]uint32

	Custom []BoundUniform
	Deps   []Dep

	locPassIndex   int32
	locVertexCount int32
}

func glPrimitiveMode(mode string) uint32 {
	switch mode {
	case "lines":
		return gl.LINES
	case "line_strip":
		return gl.LINE_STRIP
	case "line_loop":
		return gl.LINE_LOOP
	case "triangles":
		return gl.TRIANGLES
	case "triangle_strip":
		return gl.TRIANGLE_STRIP
	case "triangle_fan":
		return gl.TRIANGLE_FAN
	default:
		return gl.POINTS
	}
}
