package reasoning

import (
	"errors"
	"fmt"
	"math"

	"github.com/aixgo-dev/reasongraph/internal/graph"
)

// ErrDimensionMismatch is returned when two step embeddings differ in length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// cosine returns the cosine similarity of a and b. A zero vector has
// similarity 0 with everything.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim)), nil
}

// candidatesFor scores embeddings[current] against every earlier embedding
// of the session. nodeIDs[i] is the node holding embeddings[i]. The graph
// keeps the top-K, so all scores are returned.
func candidatesFor(embeddings [][]float32, nodeIDs []string, current int) ([]graph.Candidate, error) {
	if current <= 0 || current >= len(embeddings) {
		return nil, nil
	}
	out := make([]graph.Candidate, 0, current)
	for i := 0; i < current; i++ {
		sim, err := cosine(embeddings[current], embeddings[i])
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", nodeIDs[i], err)
		}
		out = append(out, graph.Candidate{NodeID: nodeIDs[i], Similarity: sim})
	}
	return out, nil
}
