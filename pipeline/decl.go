package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the closed set of stage variants. It is inferred from which
// shader source fields a stage declares, never stated explicitly.
type Kind int

const (
	KindFragment Kind = iota
	KindVertex
	KindCompute
)

func (k Kind) String() string {
	switch k {
	case KindFragment:
		return "fragment"
	case KindVertex:
		return "vertex"
	case KindCompute:
		return "compute"
	}
	return "unknown"
}

// Defaults for vertex stages.
const (
	DefaultVertexCount = 2000
	DefaultMode        = "points"
	DefaultThickness   = 1.0
)

// TransposedSuffix marks a declared matrix uniform as supplied row major.
// The suffix is stripped from the bound name.
const TransposedSuffix = "Transposed"

// UniformDecl is one per-stage custom uniform: a scalar, a vector of up to
// 4 components, or a square matrix flattened to 9 or 16 values.
type UniformDecl struct {
	Name      string
	Values    []float32
	Transpose bool
}

// StageDecl is the parsed, unvalidated form of one stage entry.
type StageDecl struct {
	Index int `yaml:"-"`

	FS string `yaml:"fs"`
	VS string `yaml:"vs"`
	CS string `yaml:"cs"`

	Target     string        `yaml:"target"`
	Resolution []int         `yaml:"resolution"`
	Wrap       string        `yaml:"wrap"`
	Filter     string        `yaml:"filter"`
	Mipmap     bool          `yaml:"mipmap"`
	Float      bool          `yaml:"float"`
	Uniforms   []UniformDecl `yaml:"-"`

	Count     *int     `yaml:"count"`
	Mode      string   `yaml:"mode"`
	Thickness *float32 `yaml:"thickness"`

	Dispatch []int `yaml:"dispatch"`

	uniformsNode *yaml.Node
}

// Kind classifies the stage by which source fields are present. ok is
// false for ambiguous or missing combinations.
func (s *StageDecl) Kind() (Kind, bool) {
	switch {
	case s.VS != "" && s.CS == "":
		return KindVertex, true // optional paired fragment source
	case s.FS != "" && s.VS == "" && s.CS == "":
		return KindFragment, true
	case s.CS != "" && s.FS == "" && s.VS == "":
		return KindCompute, true
	}
	return 0, false
}

// ImageDecl declares a static image texture.
type ImageDecl struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// SourceDecl declares a binding from an external video source (matched by
// name substring) to a sampler name.
type SourceDecl struct {
	Source string `yaml:"source"`
	Name   string `yaml:"name"`
}

// AudioTexDecl carries per-texture sampler settings for the audio-derived
// samplers.
type AudioTexDecl struct {
	Mipmap   bool   `yaml:"mipmap"`
	Filter   string `yaml:"filter"`
	WrapMode string `yaml:"wrap_mode"`
}

// DefaultAudioSamples is the FFT window size when the pipeline does not
// declare one.
const DefaultAudioSamples = 8192

// Doc is one parsed pipeline description.
type Doc struct {
	AudioSamples int                     `yaml:"audio_samples"`
	Audio        map[string]AudioTexDecl `yaml:"audio"`
	Images       []ImageDecl             `yaml:"images"`
	Sources      []SourceDecl            `yaml:"sources"`
	Stages       []StageDecl             `yaml:"stages"`
}

var yamlLineRe = regexp.MustCompile(`line (\d+):`)

// Parse decodes the declarative pipeline text. Unparsable input yields a
// SyntaxError carrying the position yaml reported.
func Parse(data []byte) (*Doc, error) {
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		se := &SyntaxError{Msg: strings.TrimPrefix(err.Error(), "yaml: ")}
		if m := yamlLineRe.FindStringSubmatch(err.Error()); m != nil {
			se.Line, _ = strconv.Atoi(m[1])
		}
		return nil, se
	}

	// Custom uniforms need a second pass: they are a sequence of
	// single-key maps whose values may be scalars, vectors or matrices.
	var raw struct {
		Stages []struct {
			Uniforms yaml.Node `yaml:"uniforms"`
		} `yaml:"stages"`
	}
	if err := yaml.Unmarshal(data, &raw); err == nil {
		for i := range raw.Stages {
			if i >= len(doc.Stages) {
				break
			}
			doc.Stages[i].uniformsNode = &raw.Stages[i].Uniforms
		}
	}

	for i := range doc.Stages {
		doc.Stages[i].Index = i
		uniforms, err := parseUniforms(i, doc.Stages[i].uniformsNode)
		if err != nil {
			return nil, err
		}
		doc.Stages[i].Uniforms = uniforms
	}
	if doc.AudioSamples == 0 {
		doc.AudioSamples = DefaultAudioSamples
	}
	return &doc, nil
}

func parseUniforms(stage int, node *yaml.Node) ([]UniformDecl, error) {
	if node == nil || node.Kind == 0 || node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, stageErrf(stage, "uniforms", "expected a list of name: value entries")
	}

	var out []UniformDecl
	for _, entry := range node.Content {
		if entry.Kind != yaml.MappingNode || len(entry.Content) != 2 {
			return nil, stageErrf(stage, "uniforms", "each entry must be a single name: value pair")
		}
		name := entry.Content[0].Value
		valNode := entry.Content[1]

		var values []float32
		switch valNode.Kind {
		case yaml.ScalarNode:
			var f float32
			if err := valNode.Decode(&f); err != nil {
				return nil, stageErrf(stage, "uniforms", "uniform %q: %v", name, err)
			}
			values = []float32{f}
		case yaml.SequenceNode:
			if err := valNode.Decode(&values); err != nil {
				return nil, stageErrf(stage, "uniforms", "uniform %q: %v", name, err)
			}
		default:
			return nil, stageErrf(stage, "uniforms", "uniform %q: expected scalar or list", name)
		}

		decl := UniformDecl{Name: name, Values: values}
		// The suffix only means something on matrices; a scalar or vector
		// that happens to end in it keeps its full name.
		if (len(values) == 9 || len(values) == 16) &&
			strings.HasSuffix(name, TransposedSuffix) && len(name) > len(TransposedSuffix) {
			decl.Name = strings.TrimSuffix(name, TransposedSuffix)
			decl.Transpose = true
		}
		switch len(values) {
		case 1, 2, 3, 4, 9, 16:
		default:
			return nil, stageErrf(stage, "uniforms",
				"uniform %q has %d components; want 1-4 (scalar/vector) or 9/16 (matrix)", name, len(values))
		}
		out = append(out, decl)
	}
	return out, nil
}

var validModes = map[string]bool{
	"points": true, "lines": true, "line_strip": true, "line_loop": true,
	"triangles": true, "triangle_strip": true, "triangle_fan": true,
}

// Validate checks structural and kind-specific requirements, returning a
// StageError naming the first offending stage and field.
func (d *Doc) Validate() error {
	if len(d.Stages) == 0 {
		return &SyntaxError{Msg: `required field "stages" is missing or empty`}
	}

	for i := range d.Stages {
		s := &d.Stages[i]

		kind, ok := s.Kind()
		if !ok {
			return stageErrf(i, "", "cannot classify stage: declare exactly one of fs, vs (with optional fs), or cs")
		}

		if len(s.Resolution) > 3 {
			return stageErrf(i, "resolution", "at most 3 components, got %d", len(s.Resolution))
		}
		for _, r := range s.Resolution {
			if r <= 0 {
				return stageErrf(i, "resolution", "components must be positive, got %d", r)
			}
		}
		if s.Wrap != "" && s.Wrap != "clamp" && s.Wrap != "repeat" {
			return stageErrf(i, "wrap", "want clamp or repeat, got %q", s.Wrap)
		}
		if s.Filter != "" && s.Filter != "linear" && s.Filter != "nearest" {
			return stageErrf(i, "filter", "want linear or nearest, got %q", s.Filter)
		}

		switch kind {
		case KindVertex:
			if s.Count != nil && *s.Count <= 0 {
				return stageErrf(i, "count", "must be positive, got %d", *s.Count)
			}
			if s.Mode != "" && !validModes[s.Mode] {
				return stageErrf(i, "mode", "unknown primitive mode %q", s.Mode)
			}
			if s.Thickness != nil && *s.Thickness <= 0 {
				return stageErrf(i, "thickness", "must be positive, got %v", *s.Thickness)
			}
		case KindCompute:
			if len(s.Resolution) == 0 {
				return stageErrf(i, "resolution", "required for compute stages")
			}
			if len(s.Dispatch) == 0 {
				return stageErrf(i, "dispatch", "required for compute stages")
			}
			if len(s.Dispatch) > 3 {
				return stageErrf(i, "dispatch", "at most 3 components, got %d", len(s.Dispatch))
			}
			for _, n := range s.Dispatch {
				if n <= 0 {
					return stageErrf(i, "dispatch", "components must be positive, got %d", n)
				}
			}
			if s.Target == "" {
				return stageErrf(i, "target", "required for compute stages")
			}
		default:
			if len(s.Dispatch) != 0 {
				return stageErrf(i, "dispatch", "only valid on compute stages")
			}
		}
	}

	for i, img := range d.Images {
		if img.Path == "" || img.Name == "" {
			return &SyntaxError{Msg: "images[" + strconv.Itoa(i) + `] needs both "path" and "name"`}
		}
	}
	for i, src := range d.Sources {
		if src.Source == "" || src.Name == "" {
			return &SyntaxError{Msg: "sources[" + strconv.Itoa(i) + `] needs both "source" and "name"`}
		}
	}
	return nil
}

// VertexCount returns the declared or default vertex count.
func (s *StageDecl) VertexCount() int {
	if s.Count != nil {
		return *s.Count
	}
	return DefaultVertexCount
}

// PrimitiveMode returns the declared or default primitive mode name.
func (s *StageDecl) PrimitiveMode() string {
	if s.Mode != "" {
		return s.Mode
	}
	return DefaultMode
}

// PointThickness returns the declared or default point/line thickness.
func (s *StageDecl) PointThickness() float32 {
	if s.Thickness != nil {
		return *s.Thickness
	}
	return DefaultThickness
}

var localSizeRe = regexp.MustCompile(`local_size_([xyz])\s*=\s*(\d+)`)

// ParseLocalSize extracts the declared compute workgroup size from shader
// source. Missing axes default to 1, matching GLSL.
func ParseLocalSize(src string) [3]int {
	out := [3]int{1, 1, 1}
	for _, m := range localSizeRe.FindAllStringSubmatch(src, -1) {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		switch m[1] {
		case "x":
			out[0] = n
		case "y":
			out[1] = n
		case "z":
			out[2] = n
		}
	}
	return out
}
