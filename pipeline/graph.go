package pipeline

import (
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/prism-vj/prism/resource"
)

// Graph is a compiled pipeline: the ordered stage list plus the render
// targets it acquired from the arena. A graph holds a reference on each of
// its targets, so a superseded graph keeps its textures alive until the
// tick thread destroys it.
type Graph struct {
	Stages  []*Stage
	Targets map[string]*resource.Target

	arena *resource.Arena
}

// NewGraph wraps compiled stages and their retained targets.
func NewGraph(stages []*Stage, targets map[string]*resource.Target, arena *resource.Arena) *Graph {
	for _, t := range targets {
		arena.Retain(t)
	}
	return &Graph{Stages: stages, Targets: targets, arena: arena}
}

// Destroy deletes the graph's programs and drops its target references.
// Must run on the tick thread.
func (g *Graph) Destroy() {
	for _, s := range g.Stages {
		if s.Prog != 0 {
			gl.DeleteProgram(s.Prog)
			s.Prog = 0
		}
	}
	for _, t := range g.Targets {
		g.arena.Release(t)
	}
	g.Stages = nil
	g.Targets = nil
}
