package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stage(id string, requires ...string) Stage {
	return Stage{ID: id, Name: id, Visible: true, Requires: requires}
}

func layerIDs(layers []Layer) [][]string {
	out := make([][]string, 0, len(layers))
	for _, layer := range layers {
		ids := make([]string, 0, len(layer))
		for _, st := range layer {
			ids = append(ids, st.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestBuildGraphLayers(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
		want   [][]string
	}{
		{
			name:   "linear",
			stages: []Stage{stage("a"), stage("b", "a"), stage("c", "b")},
			want:   [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name: "fan out and join",
			stages: []Stage{
				stage("plan"),
				stage("canary", "plan"),
				stage("analysis", "plan"),
				stage("primary", "canary", "analysis"),
			},
			want: [][]string{{"plan"}, {"canary", "analysis"}, {"primary"}},
		},
		{
			name:   "input order kept within a layer",
			stages: []Stage{stage("z"), stage("y"), stage("m", "z"), stage("b", "y")},
			want:   [][]string{{"z", "y"}, {"m", "b"}},
		},
		{
			name:   "no stages",
			stages: nil,
			want:   [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildGraph(tt.stages, GraphOptions{})
			assert.Equal(t, tt.want, layerIDs(g.Layers))
			assert.Empty(t, g.Unplaced)
		})
	}
}

func TestBuildGraphNoVisibleStages(t *testing.T) {
	hidden := stage("a")
	hidden.Visible = false
	g := BuildGraph([]Stage{hidden}, GraphOptions{})
	assert.Empty(t, g.Layers)
	assert.Empty(t, g.Unplaced)
}

func TestBuildGraphHiddenPredecessor(t *testing.T) {
	hidden := stage("prepare")
	hidden.Visible = false
	stages := []Stage{hidden, stage("sync", "prepare"), stage("verify", "sync")}

	promoted := BuildGraph(stages, GraphOptions{Policy: PolicyPromote})
	assert.Equal(t, [][]string{{"sync"}, {"verify"}}, layerIDs(promoted.Layers))
	assert.Equal(t, []string{"sync"}, promoted.Promoted)
	assert.Empty(t, promoted.Unplaced)

	dropped := BuildGraph(stages, GraphOptions{Policy: PolicyDrop})
	assert.Empty(t, dropped.Layers)
	assert.Equal(t, []string{"sync", "verify"}, dropped.Unplaced)
}

func TestBuildGraphMissingPredecessorKeepsOtherRequires(t *testing.T) {
	stages := []Stage{stage("a"), stage("b", "a"), stage("c", "ghost", "b")}

	g := BuildGraph(stages, GraphOptions{})
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, layerIDs(g.Layers))
	assert.Equal(t, []string{"c"}, g.Promoted)

	dropped := BuildGraph(stages, GraphOptions{Policy: PolicyDrop})
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, layerIDs(dropped.Layers))
}

func TestBuildGraphCycleIsUnplaced(t *testing.T) {
	stages := []Stage{stage("root"), stage("x", "y"), stage("y", "x"), stage("self", "self")}
	g := BuildGraph(stages, GraphOptions{})
	assert.Equal(t, [][]string{{"root"}}, layerIDs(g.Layers))
	assert.Equal(t, []string{"x", "y", "self"}, g.Unplaced)
}

func TestBuildGraphEveryVisibleStageOnce(t *testing.T) {
	stages := []Stage{
		stage("a"), stage("b", "a"), stage("c", "a"), stage("d", "b", "c"),
		stage("e", "a", "d"), stage("f"), stage("g", "f", "e"),
	}
	g := BuildGraph(stages, GraphOptions{})

	seen := map[string]int{}
	for _, layer := range g.Layers {
		for _, st := range layer {
			seen[st.ID]++
		}
	}
	require.Len(t, seen, len(stages))
	for id, n := range seen {
		assert.Equalf(t, 1, n, "stage %s placed %d times", id, n)
	}
	assert.Equal(t, len(stages), g.Len())
}

func TestBuildGraphDoesNotMutateInput(t *testing.T) {
	stages := []Stage{stage("a"), stage("b", "a", "missing")}
	BuildGraph(stages, GraphOptions{})
	assert.Equal(t, []string{"a", "missing"}, stages[1].Requires)
}

func TestGraphPositionAndAt(t *testing.T) {
	g := BuildGraph([]Stage{stage("a"), stage("b", "a"), stage("c", "a")}, GraphOptions{})

	col, row, ok := g.Position("c")
	require.True(t, ok)
	assert.Equal(t, 1, col)
	assert.Equal(t, 1, row)

	st, ok := g.At(1, 0)
	require.True(t, ok)
	assert.Equal(t, "b", st.ID)

	_, ok = g.At(2, 0)
	assert.False(t, ok)
	_, _, ok = g.Position("nope")
	assert.False(t, ok)
}

func TestParseRequirePolicy(t *testing.T) {
	p, err := ParseRequirePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyPromote, p)

	p, err = ParseRequirePolicy(" Drop ")
	require.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)

	_, err = ParseRequirePolicy("ignore")
	assert.Error(t, err)
}
