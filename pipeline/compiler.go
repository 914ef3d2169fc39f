package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/prism-vj/prism/resource"
	"github.com/prism-vj/prism/uniform"
)

// Compiler turns a pipeline document into an executable Graph. It runs on
// the tick thread and is careful about ordering: shader programs are built
// and render targets committed only after every fallible step has
// succeeded, so a failed compile leaves the arena, store and image cache
// serving the previous graph.
type Compiler struct {
	Arena  *resource.Arena
	Store  *uniform.Store
	Images *resource.ImageCache
	Log    *slog.Logger

	// Reserved holds sampler names owned by the engine (audio textures,
	// noise). Stages may read them but never render to them.
	Reserved []string

	prevImages []string
}

// Compile parses, validates and builds the pipeline described by data.
// Shader paths resolve relative to dir. The returned Doc carries the
// engine-level settings (audio window, sampler overrides) the caller
// applies after swapping graphs.
func (c *Compiler) Compile(dir string, data []byte) (*Graph, *Doc, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}

	reserved := make(map[string]bool, len(c.Reserved))
	for _, name := range c.Reserved {
		reserved[name] = true
	}
	for _, img := range doc.Images {
		reserved[img.Name] = true
	}
	for _, src := range doc.Sources {
		reserved[src.Name] = true
	}

	screenW, screenH := c.Arena.ScreenSize()
	plan, err := PlanTargets(doc, screenW, screenH, reserved)
	if err != nil {
		return nil, nil, err
	}

	// Load images before building programs so a bad path fails the reload
	// cheaply. Fresh textures stay on the transaction: a reload that dies
	// later must not free anything the running graph samples.
	imgTx := c.Images.Begin()
	images := make([]*resource.Image, 0, len(doc.Images))
	for _, decl := range doc.Images {
		path := decl.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		img, err := imgTx.Acquire(decl.Name, path)
		if err != nil {
			imgTx.Rollback()
			return nil, nil, &ResourceError{Name: decl.Name, Err: err}
		}
		images = append(images, img)
	}

	stages, err := c.buildStages(dir, doc, plan)
	if err != nil {
		imgTx.Rollback()
		return nil, nil, err
	}

	tx := c.Arena.Begin()
	for name, spec := range plan {
		if err := tx.Acquire(name, spec); err != nil {
			destroyPrograms(stages)
			imgTx.Rollback()
			return nil, nil, &ResourceError{Name: name, Err: err}
		}
	}
	targets, err := tx.Commit()
	if err != nil {
		destroyPrograms(stages)
		imgTx.Rollback()
		return nil, nil, &ResourceError{Err: err}
	}

	// Past this point nothing can fail. Publish the image samplers and
	// sweep cache entries the new pipeline no longer declares.
	keep := make(map[string]bool, len(images))
	for _, img := range images {
		keep[img.Name] = true
		c.Store.Set(img.Name, uniform.Texture{ID: img.Tex, Target: gl.TEXTURE_2D})
		c.Store.Set(img.Name+"Res", uniform.Vec{
			float32(img.Width), float32(img.Height),
			float32(img.Width) / float32(img.Height),
			float32(img.Height) / float32(img.Width),
		})
	}
	for _, name := range c.prevImages {
		if !keep[name] {
			c.Store.Delete(name)
			c.Store.Delete(name + "Res")
		}
	}
	c.prevImages = c.prevImages[:0]
	for name := range keep {
		c.prevImages = append(c.prevImages, name)
	}
	imgTx.Commit(keep)

	c.bindDeps(stages, doc, plan)
	return NewGraph(stages, targets, c.Arena), doc, nil
}

func (c *Compiler) buildStages(dir string, doc *Doc, plan map[string]resource.Spec) ([]*Stage, error) {
	stages := make([]*Stage, 0, len(doc.Stages))
	fail := func(err error) ([]*Stage, error) {
		destroyPrograms(stages)
		return nil, err
	}

	for i := range doc.Stages {
		decl := &doc.Stages[i]
		kind, _ := decl.Kind()

		st := &Stage{Index: i, Kind: kind, TargetName: decl.Target}

		switch kind {
		case KindFragment:
			fsSrc, err := readShader(dir, i, "fs", decl.FS)
			if err != nil {
				return fail(err)
			}
			st.Prog, err = newProgram(passVertexShader, fsSrc)
			if err != nil {
				return fail(&ShaderError{Index: i, Path: decl.FS, Log: err.Error()})
			}

		case KindVertex:
			vsSrc, err := readShader(dir, i, "vs", decl.VS)
			if err != nil {
				return fail(err)
			}
			fsSrc := flatFragmentShader
			fsPath := decl.VS
			if decl.FS != "" {
				fsSrc, err = readShader(dir, i, "fs", decl.FS)
				if err != nil {
					return fail(err)
				}
				fsPath = decl.FS
			}
			st.Prog, err = newProgram(vsSrc, fsSrc)
			if err != nil {
				return fail(&ShaderError{Index: i, Path: fsPath, Log: err.Error()})
			}
			st.VertexCount = int32(decl.VertexCount())
			st.Mode = glPrimitiveMode(decl.PrimitiveMode())
			st.Thickness = decl.PointThickness()

		case KindCompute:
			csSrc, err := readShader(dir, i, "cs", decl.CS)
			if err != nil {
				return fail(err)
			}
			st.Prog, err = newComputeProgram(csSrc)
			if err != nil {
				return fail(&ShaderError{Index: i, Path: decl.CS, Log: err.Error()})
			}
			local := ParseLocalSize(csSrc)
			for axis := 0; axis < 3; axis++ {
				st.LocalSize[axis] = uint32(local[axis])
				st.Dispatch[axis] = 1
			}
			for axis, n := range decl.Dispatch {
				st.Dispatch[axis] = uint32(n)
			}
			c.warnDispatchCoverage(i, decl, local)
		}

		st.locPassIndex = gl.GetUniformLocation(st.Prog, gl.Str("passIndex\x00"))
		st.locVertexCount = gl.GetUniformLocation(st.Prog, gl.Str("vertexCount\x00"))

		for _, u := range decl.Uniforms {
			loc := gl.GetUniformLocation(st.Prog, gl.Str(u.Name+"\x00"))
			if loc < 0 {
				continue
			}
			st.Custom = append(st.Custom, BoundUniform{Loc: loc, Value: declValue(u)})
		}
		stages = append(stages, st)
	}
	return stages, nil
}

// bindDeps records, per stage, every store entry and render target the
// program actually references. Location lookup happens once here; the
// executor just walks the list each tick.
func (c *Compiler) bindDeps(stages []*Stage, doc *Doc, plan map[string]resource.Spec) {
	names := make([]string, 0, c.Store.Len()+len(plan))
	names = append(names, c.Store.Names()...)
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for name := range plan {
		if !seen[name] {
			names = append(names, name)
		}
	}
	for _, src := range doc.Sources {
		if !seen[src.Name] {
			names = append(names, src.Name)
		}
	}

	for _, st := range stages {
		st.Deps = st.Deps[:0]
		for _, name := range names {
			loc := gl.GetUniformLocation(st.Prog, gl.Str(name+"\x00"))
			if loc < 0 {
				continue
			}
			st.Deps = append(st.Deps, Dep{Name: name, Loc: loc})
		}
	}
}

func (c *Compiler) warnDispatchCoverage(index int, decl *StageDecl, local [3]int) {
	// Undeclared resolution or dispatch components count as 1, so excess
	// invocations on a higher axis still warn.
	for axis := 0; axis < 3; axis++ {
		res := 1
		if axis < len(decl.Resolution) {
			res = decl.Resolution[axis]
		}
		dispatch := 1
		if axis < len(decl.Dispatch) {
			dispatch = decl.Dispatch[axis]
		}
		if dispatch*local[axis] != res {
			c.Log.Warn("compute dispatch does not cover target",
				"stage", index, "target", decl.Target,
				"axis", axis, "invocations", dispatch*local[axis],
				"resolution", res)
			return
		}
	}
}

func readShader(dir string, index int, field, rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		return "", stageErrf(index, field, "reading shader: %v", err)
	}
	return string(data), nil
}

func declValue(u UniformDecl) uniform.Value {
	switch len(u.Values) {
	case 1:
		return uniform.Float(u.Values[0])
	case 9:
		return uniform.Mat{Dim: 3, V: u.Values, Transpose: u.Transpose}
	case 16:
		return uniform.Mat{Dim: 4, V: u.Values, Transpose: u.Transpose}
	default:
		return uniform.Vec(u.Values)
	}
}

func destroyPrograms(stages []*Stage) {
	for _, st := range stages {
		if st.Prog != 0 {
			gl.DeleteProgram(st.Prog)
		}
	}
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertexShader)
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	gl.DeleteShader(vertexShader)
	gl.DeleteShader(fragmentShader)

	if err := linkStatus(program); err != nil {
		gl.DeleteProgram(program)
		return 0, err
	}
	return program, nil
}

func newComputeProgram(source string) (uint32, error) {
	shader, err := compileShader(source, gl.COMPUTE_SHADER)
	if err != nil {
		return 0, err
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, shader)
	gl.LinkProgram(program)
	gl.DeleteShader(shader)

	if err := linkStatus(program); err != nil {
		gl.DeleteProgram(program)
		return 0, err
	}
	return program, nil
}

func linkStatus(program uint32) error {
	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		return fmt.Errorf("failed to link program: %v", strings.TrimRight(log, "\x00"))
	}
	return nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile shader: %v", strings.TrimRight(logText, "\x00"))
	}
	return shader, nil
}
