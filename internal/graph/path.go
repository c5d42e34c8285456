package graph

import (
	"container/heap"
)

// PathResult is the outcome of a strongest-path search.
type PathResult struct {
	Path          []string  `json:"strongest_path"`
	Weights       []float64 `json:"path_weights"`
	AvgSimilarity float64   `json:"avg_similarity"`
}

// FindStrongestPath searches snapshot for a path from startID to endID that
// favors high accumulated similarity. The search pops the frontier entry with
// the largest accumulated weight first, marks a node visited when it is
// popped, and stops the first time endID is popped. The reported similarity
// is the mean edge weight of that path.
//
// Ranking by accumulated sum rather than by mean is an approximation: a longer
// path can be preferred over a shorter one with a higher mean.
//
// Returns nil when either endpoint is missing or endID is unreachable.
func FindStrongestPath(snapshot Snapshot, startID, endID string) *PathResult {
	present := make(map[string]bool, len(snapshot.Nodes))
	for _, n := range snapshot.Nodes {
		present[n.ID] = true
	}
	if !present[startID] || !present[endID] {
		return nil
	}

	if startID == endID {
		return &PathResult{
			Path:          []string{startID},
			Weights:       []float64{},
			AvgSimilarity: 1.0,
		}
	}

	adj := make(map[string][]neighbor, len(snapshot.Nodes))
	for _, e := range snapshot.Edges {
		if !present[e.From] || !present[e.To] || e.From == e.To {
			continue
		}
		adj[e.From] = append(adj[e.From], neighbor{id: e.To, weight: e.Value})
		adj[e.To] = append(adj[e.To], neighbor{id: e.From, weight: e.Value})
	}

	frontier := &pathQueue{}
	heap.Push(frontier, &pathEntry{
		sum:  0,
		node: startID,
		path: []string{startID},
	})
	visited := make(map[string]bool, len(snapshot.Nodes))

	for frontier.Len() > 0 {
		cur := heap.Pop(frontier).(*pathEntry)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		if cur.node == endID {
			if len(cur.weights) == 0 {
				return &PathResult{Path: cur.path, Weights: []float64{}, AvgSimilarity: 1.0}
			}
			return &PathResult{
				Path:          cur.path,
				Weights:       cur.weights,
				AvgSimilarity: cur.sum / float64(len(cur.weights)),
			}
		}

		for _, nb := range adj[cur.node] {
			if visited[nb.id] {
				continue
			}
			path := make([]string, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			weights := make([]float64, len(cur.weights), len(cur.weights)+1)
			copy(weights, cur.weights)

			heap.Push(frontier, &pathEntry{
				sum:     cur.sum + nb.weight,
				node:    nb.id,
				path:    append(path, nb.id),
				weights: append(weights, nb.weight),
			})
		}
	}

	return nil
}

type neighbor struct {
	id     string
	weight float64
}

type pathEntry struct {
	sum     float64
	seq     int
	node    string
	path    []string
	weights []float64
}

// pathQueue is a max-heap on accumulated weight. Equal sums pop in push order.
type pathQueue struct {
	entries []*pathEntry
	pushed  int
}

func (q *pathQueue) Len() int { return len(q.entries) }

func (q *pathQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	if a.sum != b.sum {
		return a.sum > b.sum
	}
	return a.seq < b.seq
}

func (q *pathQueue) Swap(i, j int) { q.entries[i], q.entries[j] = q.entries[j], q.entries[i] }

func (q *pathQueue) Push(x any) {
	e := x.(*pathEntry)
	e.seq = q.pushed
	q.pushed++
	q.entries = append(q.entries, e)
}

func (q *pathQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.entries = old[:n-1]
	return e
}
