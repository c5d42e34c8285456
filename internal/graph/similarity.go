// Package graph maintains the per-session similarity graph of reasoning steps
// and extracts the strongest path through it.
package graph

import (
	"fmt"
	"math"
	"sort"
)

const (
	// DefaultNodeSize is the size of a node that has no edges.
	DefaultNodeSize = 20.0

	// MinNodeSize and MaxNodeSize bound the size of a node with edges.
	MinNodeSize = 10.0
	MaxNodeSize = 40.0

	// EdgeFontSize is the label font size attached to every exported edge.
	EdgeFontSize = 10

	// maxEdgeLength is the visual length of an edge with zero similarity.
	maxEdgeLength = 300.0
)

// Node is a reasoning step in the graph.
type Node struct {
	ID    string
	Label string
	Size  float64
}

// Edge is an undirected similarity edge. From is the earlier step, To is the
// step whose insertion produced the edge.
type Edge struct {
	From   string
	To     string
	Weight float64
}

// Candidate is a similarity score between the node being updated and another node.
type Candidate struct {
	NodeID     string
	Similarity float64
}

// pairKey identifies an edge by its unordered endpoint pair.
type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

// SimilarityGraph holds the nodes and edges of one reasoning session.
// Nodes keep insertion order; edges are keyed by unordered node pair and kept
// in the order they were first added.
//
// A SimilarityGraph is owned by a single session and is not safe for
// concurrent use.
type SimilarityGraph struct {
	nodes     []*Node
	nodeIndex map[string]int

	edges     map[pairKey]*Edge
	edgeOrder []pairKey
}

// NewSimilarityGraph creates an empty graph.
func NewSimilarityGraph() *SimilarityGraph {
	return &SimilarityGraph{
		nodeIndex: make(map[string]int),
		edges:     make(map[pairKey]*Edge),
	}
}

// InsertNode appends a node with the default size.
// Returns ErrDuplicateNode if the id is already present.
func (g *SimilarityGraph) InsertNode(id, label string) error {
	if _, exists := g.nodeIndex[id]; exists {
		return &NodeError{ID: id, Err: ErrDuplicateNode}
	}

	g.nodeIndex[id] = len(g.nodes)
	g.nodes = append(g.nodes, &Node{
		ID:    id,
		Label: label,
		Size:  DefaultNodeSize,
	})
	return nil
}

// HasNode reports whether a node with the given id exists.
func (g *SimilarityGraph) HasNode(id string) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

// FirstNodeID returns the id of the earliest inserted node, or "" if the graph is empty.
func (g *SimilarityGraph) FirstNodeID() string {
	if len(g.nodes) == 0 {
		return ""
	}
	return g.nodes[0].ID
}

// NodeCount returns the number of nodes in the graph.
func (g *SimilarityGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *SimilarityGraph) EdgeCount() int {
	return len(g.edges)
}

// Node returns a copy of the node with the given id.
func (g *SimilarityGraph) Node(id string) (Node, bool) {
	idx, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return *g.nodes[idx], true
}

// UpdateEdgesForNode replaces every edge whose To endpoint is nodeID with at
// most topK edges built from candidates, highest similarity first. Candidates
// that are not in the graph, or that refer to nodeID itself, are skipped.
//
// The replacement is total: calling it twice with the same input yields the
// same edge set.
func (g *SimilarityGraph) UpdateEdgesForNode(nodeID string, candidates []Candidate, topK int) error {
	if !g.HasNode(nodeID) {
		return &NodeError{ID: nodeID, Err: ErrNodeNotFound}
	}
	for _, c := range candidates {
		if math.IsNaN(c.Similarity) || math.IsInf(c.Similarity, 0) {
			return fmt.Errorf("candidate %q: %w", c.NodeID, ErrInvalidWeight)
		}
	}

	// Drop stale inbound edges from earlier updates of this node.
	kept := g.edgeOrder[:0]
	for _, key := range g.edgeOrder {
		if g.edges[key].To == nodeID {
			delete(g.edges, key)
			continue
		}
		kept = append(kept, key)
	}
	g.edgeOrder = kept

	ranked := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.NodeID == nodeID || !g.HasNode(c.NodeID) {
			continue
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})
	if topK >= 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	for _, c := range ranked {
		key := newPairKey(c.NodeID, nodeID)
		if _, exists := g.edges[key]; !exists {
			g.edgeOrder = append(g.edgeOrder, key)
		}
		g.edges[key] = &Edge{
			From:   c.NodeID,
			To:     nodeID,
			Weight: c.Similarity,
		}
	}

	return nil
}

// RecomputeNodeSize sets the node size from the average weight of all edges
// touching it: avg*30+10, clamped to [MinNodeSize, MaxNodeSize]. A node with
// no edges gets DefaultNodeSize.
func (g *SimilarityGraph) RecomputeNodeSize(nodeID string) error {
	idx, ok := g.nodeIndex[nodeID]
	if !ok {
		return &NodeError{ID: nodeID, Err: ErrNodeNotFound}
	}

	var sum float64
	var count int
	for _, key := range g.edgeOrder {
		e := g.edges[key]
		if e.From == nodeID || e.To == nodeID {
			sum += e.Weight
			count++
		}
	}

	if count == 0 {
		g.nodes[idx].Size = DefaultNodeSize
		return nil
	}

	size := (sum/float64(count))*30 + 10
	g.nodes[idx].Size = math.Max(MinNodeSize, math.Min(MaxNodeSize, size))
	return nil
}

// Snapshot returns a point-in-time copy of the graph in display form.
func (g *SimilarityGraph) Snapshot() Snapshot {
	snap := Snapshot{
		Nodes: make([]SnapshotNode, 0, len(g.nodes)),
		Edges: make([]SnapshotEdge, 0, len(g.edgeOrder)),
	}

	for _, n := range g.nodes {
		size := n.Size
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			ID:    n.ID,
			Label: n.Label,
			Value: &size,
		})
	}

	for _, key := range g.edgeOrder {
		e := g.edges[key]
		snap.Edges = append(snap.Edges, SnapshotEdge{
			From:   e.From,
			To:     e.To,
			Value:  e.Weight,
			Label:  fmt.Sprintf("%.2f", e.Weight),
			Length: maxEdgeLength * (1 - e.Weight),
			Font:   EdgeFont{Size: EdgeFontSize},
		})
	}

	return snap
}

// Snapshot is the exported, read-only form of a SimilarityGraph.
type Snapshot struct {
	Nodes []SnapshotNode `json:"nodes"`
	Edges []SnapshotEdge `json:"edges"`
}

// SnapshotNode is a node in display form.
type SnapshotNode struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Value *float64 `json:"value,omitempty"`
}

// SnapshotEdge is an edge in display form.
type SnapshotEdge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Value  float64  `json:"value"`
	Label  string   `json:"label"`
	Length float64  `json:"length"`
	Font   EdgeFont `json:"font"`
}

// EdgeFont holds edge label font settings.
type EdgeFont struct {
	Size int `json:"size"`
}
