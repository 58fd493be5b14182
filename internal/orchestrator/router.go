package orchestrator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dusk-indust/sitegen/internal/site"
)

// Graph construction errors.
var (
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCycle             = errors.New("dependency cycle")
	ErrDuplicateStage    = errors.New("duplicate stage")
)

// Node declares a stage and the stages whose output it consumes.
type Node struct {
	Stage site.StageName
	Deps  []site.StageName
}

// DefaultNodes is the static dependency graph of the generation pipeline.
var DefaultNodes = []Node{
	{Stage: site.StageDesignStrategy},
	{Stage: site.StageSectionPlanner},
	{Stage: site.StageStyleDesigner},
	{Stage: site.StageLayout, Deps: []site.StageName{site.StageSectionPlanner}},
	{Stage: site.StageImagePlanner, Deps: []site.StageName{site.StageLayout, site.StageStyleDesigner}},
	{Stage: site.StageCopywriter, Deps: []site.StageName{site.StageSectionPlanner, site.StageLayout}},
	{Stage: site.StageImageGenerator, Deps: []site.StageName{site.StageImagePlanner}},
	{Stage: site.StageSEO, Deps: []site.StageName{
		site.StageDesignStrategy, site.StageLayout, site.StageCopywriter, site.StageImagePlanner,
	}},
	{Stage: site.StageCodeAssembler, Deps: []site.StageName{
		site.StageStyleDesigner, site.StageLayout, site.StageCopywriter, site.StageImageGenerator, site.StageSEO,
	}},
}

// Graph is a validated, acyclic stage dependency graph.
type Graph struct {
	order []site.StageName
	deps  map[site.StageName][]site.StageName
	waves [][]site.StageName
}

// NewGraph validates nodes and partitions them into waves by dependency
// depth. Within a wave, stages keep their declaration order.
func NewGraph(nodes []Node) (*Graph, error) {
	g := &Graph{deps: make(map[site.StageName][]site.StageName, len(nodes))}
	for _, n := range nodes {
		if _, dup := g.deps[n.Stage]; dup {
			return nil, fmt.Errorf("orchestrator: %w: %s", ErrDuplicateStage, n.Stage)
		}
		g.deps[n.Stage] = slices.Clone(n.Deps)
		g.order = append(g.order, n.Stage)
	}
	for _, n := range nodes {
		for _, d := range n.Deps {
			if _, ok := g.deps[d]; !ok {
				return nil, fmt.Errorf("orchestrator: %w: %s depends on %s", ErrUnknownDependency, n.Stage, d)
			}
		}
	}

	// Kahn layering: a stage joins the first wave after all its deps.
	indegree := make(map[site.StageName]int, len(nodes))
	dependents := make(map[site.StageName][]site.StageName)
	for _, s := range g.order {
		indegree[s] = len(g.deps[s])
		for _, d := range g.deps[s] {
			dependents[d] = append(dependents[d], s)
		}
	}
	var current []site.StageName
	for _, s := range g.order {
		if indegree[s] == 0 {
			current = append(current, s)
		}
	}
	placed := 0
	for len(current) > 0 {
		g.waves = append(g.waves, current)
		placed += len(current)
		ready := make(map[site.StageName]bool)
		for _, s := range current {
			for _, dep := range dependents[s] {
				indegree[dep]--
				if indegree[dep] == 0 {
					ready[dep] = true
				}
			}
		}
		var next []site.StageName
		for _, s := range g.order {
			if ready[s] {
				next = append(next, s)
			}
		}
		current = next
	}
	if placed != len(g.order) {
		var stuck []site.StageName
		for _, s := range g.order {
			if indegree[s] > 0 {
				stuck = append(stuck, s)
			}
		}
		return nil, fmt.Errorf("orchestrator: %w among %v", ErrCycle, stuck)
	}
	return g, nil
}

// DefaultGraph returns the pipeline graph built from DefaultNodes.
func DefaultGraph() *Graph {
	g, err := NewGraph(DefaultNodes)
	if err != nil {
		panic(err)
	}
	return g
}

// Waves returns the stages partitioned into concurrently runnable groups.
func (g *Graph) Waves() [][]site.StageName {
	out := make([][]site.StageName, len(g.waves))
	for i, w := range g.waves {
		out[i] = slices.Clone(w)
	}
	return out
}

// Stages returns every stage in declaration order.
func (g *Graph) Stages() []site.StageName {
	return slices.Clone(g.order)
}

// Deps returns the direct dependencies of stage.
func (g *Graph) Deps(stage site.StageName) []site.StageName {
	return slices.Clone(g.deps[stage])
}
