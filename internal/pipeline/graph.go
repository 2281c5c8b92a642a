package pipeline

import (
	"fmt"
	"strings"
)

// RequirePolicy decides what happens to a visible stage whose requires list
// names stages that are missing or hidden.
type RequirePolicy int

const (
	// PolicyPromote treats missing or hidden predecessors as satisfied.
	PolicyPromote RequirePolicy = iota
	// PolicyDrop keeps the raw requires list; such stages are never placed.
	PolicyDrop
)

func (p RequirePolicy) String() string {
	if p == PolicyDrop {
		return "drop"
	}
	return "promote"
}

// ParseRequirePolicy maps a config value to a policy. Empty means promote.
func ParseRequirePolicy(raw string) (RequirePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "promote":
		return PolicyPromote, nil
	case "drop":
		return PolicyDrop, nil
	default:
		return PolicyPromote, fmt.Errorf("unknown require policy %q (want promote or drop)", raw)
	}
}

// Layer is one column of the rendered pipeline.
type Layer []Stage

// GraphOptions tunes BuildGraph.
type GraphOptions struct {
	Policy RequirePolicy
}

// Graph is the layered view of a stage list.
type Graph struct {
	Layers []Layer
	// Promoted lists visible stages placed earlier than their raw requires
	// would allow because some predecessors were missing or hidden.
	Promoted []string
	// Unplaced lists visible stages that could not be reached by the
	// layering rule (cycles, or dangling requires under PolicyDrop).
	Unplaced []string
}

// BuildLayers layers stages with the default policy.
func BuildLayers(stages []Stage) []Layer {
	return BuildGraph(stages, GraphOptions{}).Layers
}

// BuildGraph filters stages to the visible ones and assigns them to layers.
// Layer 0 holds stages with no requires; layer k holds unplaced stages with at
// least one requirement in layer k-1. Input order is preserved within a layer.
func BuildGraph(stages []Stage, opts GraphOptions) Graph {
	visible := make([]Stage, 0, len(stages))
	known := make(map[string]struct{}, len(stages))
	for _, st := range stages {
		if !st.Visible {
			continue
		}
		visible = append(visible, st)
		known[st.ID] = struct{}{}
	}

	var g Graph
	if len(visible) == 0 {
		return g
	}

	requires := make([][]string, len(visible))
	for i, st := range visible {
		if opts.Policy == PolicyDrop {
			requires[i] = st.Requires
			continue
		}
		kept := make([]string, 0, len(st.Requires))
		for _, id := range st.Requires {
			if _, ok := known[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(st.Requires) {
			g.Promoted = append(g.Promoted, st.ID)
		}
		requires[i] = kept
	}

	placed := make([]bool, len(visible))
	var first Layer
	prev := make(map[string]struct{})
	for i, st := range visible {
		if len(requires[i]) == 0 {
			first = append(first, st)
			placed[i] = true
			prev[st.ID] = struct{}{}
		}
	}
	if len(first) == 0 {
		g.Unplaced = collectUnplaced(visible, placed)
		return g
	}
	g.Layers = append(g.Layers, first)

	for {
		var next Layer
		ids := make(map[string]struct{})
		for i, st := range visible {
			if placed[i] || !intersects(requires[i], prev) {
				continue
			}
			next = append(next, st)
			ids[st.ID] = struct{}{}
		}
		if len(next) == 0 {
			break
		}
		for i, st := range visible {
			if _, ok := ids[st.ID]; ok {
				placed[i] = true
			}
		}
		g.Layers = append(g.Layers, next)
		prev = ids
	}

	g.Unplaced = collectUnplaced(visible, placed)
	return g
}

// Position returns the layer and row of a stage id.
func (g Graph) Position(id string) (col, row int, ok bool) {
	for c, layer := range g.Layers {
		for r, st := range layer {
			if st.ID == id {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

// At returns the stage at a layer and row.
func (g Graph) At(col, row int) (Stage, bool) {
	if col < 0 || col >= len(g.Layers) {
		return Stage{}, false
	}
	layer := g.Layers[col]
	if row < 0 || row >= len(layer) {
		return Stage{}, false
	}
	return layer[row], true
}

// Len counts the placed stages.
func (g Graph) Len() int {
	n := 0
	for _, layer := range g.Layers {
		n += len(layer)
	}
	return n
}

func intersects(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func collectUnplaced(visible []Stage, placed []bool) []string {
	var out []string
	for i, st := range visible {
		if !placed[i] {
			out = append(out, st.ID)
		}
	}
	return out
}
