package pipeline

import (
	"github.com/prism-vj/prism/resource"
)

// PlanTargets maps the declared stage list onto render target specs. It is
// a pure function of the document and the display surface size: compiling
// identical input twice plans identical resolution and format assignments.
//
// Stages that share a target name must agree on its spec; the planner
// reports the later stage. Names in reserved (audio textures, noise,
// images, sources) cannot be used as targets.
func PlanTargets(doc *Doc, screenW, screenH int, reserved map[string]bool) (map[string]resource.Spec, error) {
	plan := make(map[string]resource.Spec)

	for i := range doc.Stages {
		s := &doc.Stages[i]
		if s.Target == "" {
			continue
		}
		if reserved[s.Target] {
			return nil, stageErrf(i, "target", "name %q is reserved", s.Target)
		}

		spec, err := targetSpec(s, screenW, screenH)
		if err != nil {
			return nil, err
		}
		if prev, ok := plan[s.Target]; ok {
			if prev != spec {
				return nil, stageErrf(i, "target",
					"target %q already declared with a different spec", s.Target)
			}
			continue
		}
		plan[s.Target] = spec
	}
	return plan, nil
}

func targetSpec(s *StageDecl, screenW, screenH int) (resource.Spec, error) {
	kind, _ := s.Kind()

	spec := resource.Spec{
		Wrap:   s.Wrap,
		Filter: s.Filter,
		Mipmap: s.Mipmap,
		Float:  s.Float,
	}
	if spec.Wrap == "" {
		spec.Wrap = resource.WrapClamp
	}
	if spec.Filter == "" {
		spec.Filter = resource.FilterLinear
	}

	if kind == KindCompute {
		switch len(s.Resolution) {
		case 1:
			spec.Kind = resource.Image1D
			spec.Width = s.Resolution[0]
		case 2:
			spec.Kind = resource.Image2D
			spec.Width, spec.Height = s.Resolution[0], s.Resolution[1]
		case 3:
			spec.Kind = resource.Image3D
			spec.Width, spec.Height, spec.Depth = s.Resolution[0], s.Resolution[1], s.Resolution[2]
		}
		spec.Float = true
		return spec, nil
	}

	spec.Kind = resource.Framebuffer2D
	switch len(s.Resolution) {
	case 0:
		spec.Width, spec.Height = screenW, screenH
		spec.ScreenSized = true
	case 1:
		spec.Width, spec.Height = s.Resolution[0], s.Resolution[0]
	default:
		spec.Width, spec.Height = s.Resolution[0], s.Resolution[1]
	}
	return spec, nil
}
