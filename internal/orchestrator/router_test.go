package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/sitegen/internal/site"
)

func TestDefaultGraph_Waves(t *testing.T) {
	g := DefaultGraph()

	want := [][]site.StageName{
		{site.StageDesignStrategy, site.StageSectionPlanner, site.StageStyleDesigner},
		{site.StageLayout},
		{site.StageImagePlanner, site.StageCopywriter},
		{site.StageImageGenerator, site.StageSEO},
		{site.StageCodeAssembler},
	}
	assert.Equal(t, want, g.Waves())
	assert.Len(t, g.Stages(), 9)
	assert.Equal(t, []site.StageName{site.StageImagePlanner}, g.Deps(site.StageImageGenerator))
}

func TestNewGraph_UnknownDependency(t *testing.T) {
	_, err := NewGraph([]Node{
		{Stage: "a", Deps: []site.StageName{"missing"}},
	})
	require.ErrorIs(t, err, ErrUnknownDependency)
}

func TestNewGraph_Cycle(t *testing.T) {
	_, err := NewGraph([]Node{
		{Stage: "a", Deps: []site.StageName{"c"}},
		{Stage: "b", Deps: []site.StageName{"a"}},
		{Stage: "c", Deps: []site.StageName{"b"}},
	})
	require.ErrorIs(t, err, ErrCycle)
}

func TestNewGraph_Duplicate(t *testing.T) {
	_, err := NewGraph([]Node{{Stage: "a"}, {Stage: "a"}})
	require.ErrorIs(t, err, ErrDuplicateStage)
}

func TestNewGraph_DeclarationOrderWithinWave(t *testing.T) {
	g, err := NewGraph([]Node{
		{Stage: "z"},
		{Stage: "m", Deps: []site.StageName{"z"}},
		{Stage: "a"},
		{Stage: "b", Deps: []site.StageName{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]site.StageName{{"z", "a"}, {"m", "b"}}, g.Waves())
}
