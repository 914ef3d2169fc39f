package pipeline

import (
	"log/slog"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/prism-vj/prism/resource"
	"github.com/prism-vj/prism/uniform"
)

var quadVertices = []float32{
	-1.0, 1.0, -1.0, -1.0, 1.0, -1.0,
	-1.0, 1.0, 1.0, -1.0, 1.0, 1.0,
}

// Executor walks a graph's stage list in order each tick. It owns the two
// vertex array objects every stage draws with: a full-screen quad for
// fragment stages and an empty VAO for vertex stages, whose shaders derive
// positions from gl_VertexID alone.
type Executor struct {
	quadVAO uint32
	quadVBO uint32
	bareVAO uint32

	log *slog.Logger
}

func NewExecutor(log *slog.Logger) *Executor {
	e := &Executor{log: log}

	gl.GenVertexArrays(1, &e.quadVAO)
	gl.GenBuffers(1, &e.quadVBO)
	gl.BindVertexArray(e.quadVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, e.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quadVertices)*4, gl.Ptr(quadVertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	gl.GenVertexArrays(1, &e.bareVAO)
	return e
}

func (e *Executor) Destroy() {
	gl.DeleteBuffers(1, &e.quadVBO)
	gl.DeleteVertexArrays(1, &e.quadVAO)
	gl.DeleteVertexArrays(1, &e.bareVAO)
}

// Render executes every stage of the graph in declaration order. Targets
// are resolved by name through the arena each tick, so a display resize
// that reallocated a screen-sized target is picked up without recompiling.
func (e *Executor) Render(g *Graph, store *uniform.Store, arena *resource.Arena, screenW, screenH int) {
	for _, st := range g.Stages {
		gl.UseProgram(st.Prog)

		if st.locPassIndex >= 0 {
			gl.Uniform1i(st.locPassIndex, int32(st.Index))
		}

		var unit int32
		for _, dep := range st.Deps {
			if v, ok := store.Get(dep.Name); ok {
				v.Apply(dep.Loc, &unit)
				continue
			}
			// A stage may sample its own target; it reads the previous
			// tick's contents.
			if t, ok := arena.Lookup(dep.Name); ok {
				uniform.Texture{ID: t.Tex, Target: t.GLTarget()}.Apply(dep.Loc, &unit)
			}
		}
		for _, u := range st.Custom {
			u.Value.Apply(u.Loc, &unit)
		}

		switch st.Kind {
		case KindCompute:
			e.dispatch(st, arena)
		default:
			e.draw(st, arena, screenW, screenH)
		}
	}
	gl.BindVertexArray(0)
	gl.UseProgram(0)
}

func (e *Executor) draw(st *Stage, arena *resource.Arena, screenW, screenH int) {
	width, height := screenW, screenH
	var target *resource.Target
	if st.TargetName != "" {
		t, ok := arena.Lookup(st.TargetName)
		if !ok {
			e.log.Warn("stage target missing", "stage", st.Index, "target", st.TargetName)
			return
		}
		target = t
		width, height = t.Spec.Width, t.Spec.Height
		gl.BindFramebuffer(gl.FRAMEBUFFER, t.FBO)
	} else {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	}
	gl.Viewport(0, 0, int32(width), int32(height))

	switch st.Kind {
	case KindVertex:
		if st.locVertexCount >= 0 {
			gl.Uniform1f(st.locVertexCount, float32(st.VertexCount))
		}
		gl.ClearColor(0, 0, 0, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.PointSize(st.Thickness)
		gl.LineWidth(st.Thickness)
		gl.BindVertexArray(e.bareVAO)
		gl.DrawArrays(st.Mode, 0, st.VertexCount)
	default:
		gl.BindVertexArray(e.quadVAO)
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
	}

	if target != nil {
		if target.Spec.Mipmap {
			gl.BindTexture(gl.TEXTURE_2D, target.Tex)
			gl.GenerateMipmap(gl.TEXTURE_2D)
			gl.BindTexture(gl.TEXTURE_2D, 0)
		}
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	}
}

func (e *Executor) dispatch(st *Stage, arena *resource.Arena) {
	t, ok := arena.Lookup(st.TargetName)
	if !ok {
		e.log.Warn("compute target missing", "stage", st.Index, "target", st.TargetName)
		return
	}

	gl.BindImageTexture(0, t.Tex, 0, true, 0, gl.WRITE_ONLY, gl.RGBA32F)
	gl.DispatchCompute(st.Dispatch[0], st.Dispatch[1], st.Dispatch[2])
	// Later stages sample or image-load this target; make the writes
	// visible before they run.
	gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.TEXTURE_FETCH_BARRIER_BIT)
}
