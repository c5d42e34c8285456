package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSimilarityGraph(t *testing.T) {
	g := NewSimilarityGraph()
	assert.NotNil(t, g)
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, "", g.FirstNodeID())
}

func TestInsertNode(t *testing.T) {
	g := NewSimilarityGraph()

	require.NoError(t, g.InsertNode("Step1", "Step 1: Setup"))
	require.NoError(t, g.InsertNode("Step2", "Step 2: Expand"))

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, "Step1", g.FirstNodeID())

	n, ok := g.Node("Step2")
	require.True(t, ok)
	assert.Equal(t, "Step 2: Expand", n.Label)
	assert.Equal(t, DefaultNodeSize, n.Size)
}

func TestInsertNode_Duplicate(t *testing.T) {
	g := NewSimilarityGraph()
	require.NoError(t, g.InsertNode("Step1", "Step 1: a"))

	err := g.InsertNode("Step1", "Step 1: b")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNode))

	var nodeErr *NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "Step1", nodeErr.ID)

	n, _ := g.Node("Step1")
	assert.Equal(t, "Step 1: a", n.Label)
}

func buildGraph(t *testing.T, ids ...string) *SimilarityGraph {
	t.Helper()
	g := NewSimilarityGraph()
	for _, id := range ids {
		require.NoError(t, g.InsertNode(id, id))
	}
	return g
}

func TestUpdateEdgesForNode(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		topK       int
		wantFrom   []string
	}{
		{
			name:       "keeps top two by similarity",
			candidates: []Candidate{{"Step1", 0.2}, {"Step2", 0.9}, {"Step3", 0.5}},
			topK:       2,
			wantFrom:   []string{"Step2", "Step3"},
		},
		{
			name:       "fewer candidates than k",
			candidates: []Candidate{{"Step1", 0.4}},
			topK:       2,
			wantFrom:   []string{"Step1"},
		},
		{
			name:       "skips self and absent nodes",
			candidates: []Candidate{{"Step4", 1.0}, {"Step9", 0.99}, {"Step1", 0.3}},
			topK:       2,
			wantFrom:   []string{"Step1"},
		},
		{
			name:       "negative similarity is kept",
			candidates: []Candidate{{"Step1", -0.5}},
			topK:       2,
			wantFrom:   []string{"Step1"},
		},
		{
			name:       "zero k adds nothing",
			candidates: []Candidate{{"Step1", 0.5}},
			topK:       0,
			wantFrom:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, "Step1", "Step2", "Step3", "Step4")
			require.NoError(t, g.UpdateEdgesForNode("Step4", tt.candidates, tt.topK))

			snap := g.Snapshot()
			from := []string{}
			for _, e := range snap.Edges {
				assert.Equal(t, "Step4", e.To)
				from = append(from, e.From)
			}
			assert.Equal(t, tt.wantFrom, from)
		})
	}
}

func TestUpdateEdgesForNode_ReplacesInbound(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2", "Step3")

	require.NoError(t, g.UpdateEdgesForNode("Step2", []Candidate{{"Step1", 0.7}}, 2))
	require.NoError(t, g.UpdateEdgesForNode("Step3", []Candidate{{"Step1", 0.6}, {"Step2", 0.8}}, 2))
	assert.Equal(t, 3, g.EdgeCount())

	require.NoError(t, g.UpdateEdgesForNode("Step3", []Candidate{{"Step1", 0.1}}, 2))

	snap := g.Snapshot()
	require.Len(t, snap.Edges, 2)
	assert.Equal(t, "Step1", snap.Edges[0].From)
	assert.Equal(t, "Step2", snap.Edges[0].To)
	assert.Equal(t, "Step1", snap.Edges[1].From)
	assert.Equal(t, "Step3", snap.Edges[1].To)
	assert.InDelta(t, 0.1, snap.Edges[1].Value, 1e-9)
}

func TestUpdateEdgesForNode_Idempotent(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2", "Step3")
	cands := []Candidate{{"Step1", 0.6}, {"Step2", 0.8}}

	require.NoError(t, g.UpdateEdgesForNode("Step3", cands, 2))
	first := g.Snapshot()
	require.NoError(t, g.UpdateEdgesForNode("Step3", cands, 2))
	second := g.Snapshot()

	assert.Equal(t, first, second)
}

func TestUpdateEdgesForNode_PairKeyOverwrite(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2")

	require.NoError(t, g.UpdateEdgesForNode("Step2", []Candidate{{"Step1", 0.3}}, 2))
	// The reverse direction shares the unordered pair key.
	require.NoError(t, g.UpdateEdgesForNode("Step1", []Candidate{{"Step2", 0.9}}, 2))

	snap := g.Snapshot()
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "Step2", snap.Edges[0].From)
	assert.Equal(t, "Step1", snap.Edges[0].To)
	assert.InDelta(t, 0.9, snap.Edges[0].Value, 1e-9)
}

func TestUpdateEdgesForNode_Errors(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2")

	err := g.UpdateEdgesForNode("Step7", nil, 2)
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	for _, w := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err = g.UpdateEdgesForNode("Step2", []Candidate{{"Step1", w}}, 2)
		assert.True(t, errors.Is(err, ErrInvalidWeight))
	}
	assert.Equal(t, 0, g.EdgeCount())
}

func TestRecomputeNodeSize(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		want    float64
	}{
		{name: "no edges", weights: nil, want: DefaultNodeSize},
		{name: "single edge", weights: []float64{0.5}, want: 25},
		{name: "average of two", weights: []float64{0.9, 0.7}, want: 34},
		{name: "perfect similarity", weights: []float64{1.0}, want: 40},
		{name: "negative clamps to minimum", weights: []float64{-1.0}, want: MinNodeSize},
		{name: "zero similarity", weights: []float64{0}, want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, "Step1", "Step2", "Step3")
			cands := make([]Candidate, 0, len(tt.weights))
			for i, w := range tt.weights {
				cands = append(cands, Candidate{NodeID: []string{"Step1", "Step2"}[i], Similarity: w})
			}
			require.NoError(t, g.UpdateEdgesForNode("Step3", cands, 2))
			require.NoError(t, g.RecomputeNodeSize("Step3"))

			n, _ := g.Node("Step3")
			assert.InDelta(t, tt.want, n.Size, 1e-9)
			assert.GreaterOrEqual(t, n.Size, MinNodeSize)
			assert.LessOrEqual(t, n.Size, MaxNodeSize)
		})
	}
}

func TestRecomputeNodeSize_CountsOutboundEdges(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2", "Step3")
	require.NoError(t, g.UpdateEdgesForNode("Step2", []Candidate{{"Step1", 0.5}}, 2))
	require.NoError(t, g.UpdateEdgesForNode("Step3", []Candidate{{"Step1", 0.9}}, 2))

	require.NoError(t, g.RecomputeNodeSize("Step1"))
	n, _ := g.Node("Step1")
	assert.InDelta(t, 0.7*30+10, n.Size, 1e-9)

	assert.True(t, errors.Is(g.RecomputeNodeSize("nope"), ErrNodeNotFound))
}

func TestSnapshot(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2")
	require.NoError(t, g.UpdateEdgesForNode("Step2", []Candidate{{"Step1", 0.876}}, 2))
	require.NoError(t, g.RecomputeNodeSize("Step2"))

	snap := g.Snapshot()
	require.Len(t, snap.Nodes, 2)
	require.Len(t, snap.Edges, 1)

	e := snap.Edges[0]
	assert.Equal(t, "0.88", e.Label)
	assert.InDelta(t, 300*(1-0.876), e.Length, 1e-9)
	assert.Equal(t, EdgeFontSize, e.Font.Size)

	require.NotNil(t, snap.Nodes[1].Value)
	assert.InDelta(t, 0.876*30+10, *snap.Nodes[1].Value, 1e-9)
}

func TestSnapshot_IsCopy(t *testing.T) {
	g := buildGraph(t, "Step1", "Step2")
	require.NoError(t, g.UpdateEdgesForNode("Step2", []Candidate{{"Step1", 0.5}}, 2))

	snap := g.Snapshot()
	*snap.Nodes[0].Value = 99
	snap.Edges[0].Value = 0

	n, _ := g.Node("Step1")
	assert.Equal(t, DefaultNodeSize, n.Size)
	assert.InDelta(t, 0.5, g.Snapshot().Edges[0].Value, 1e-9)
}
