package reasoning

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aixgo-dev/reasongraph/internal/graph"
	"github.com/aixgo-dev/reasongraph/internal/llm/cost"
	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
)

// session is the mutable state of one Run. It is owned by the goroutine
// pulling the stream.
type session struct {
	id     string
	prompt string

	messages []inference.ChatMessage

	graph *graph.SimilarityGraph
	// embeddings[i] belongs to node nodeIDs[i].
	embeddings [][]float32
	nodeIDs    []string

	stepCount int
	attempts  int

	finalAnswer string
	hasFinal    bool

	thinking time.Duration
	usage    cost.Tally
}

func newSession(prompt string) *session {
	return &session{
		id:     uuid.NewString(),
		prompt: prompt,
		messages: []inference.ChatMessage{
			{Role: inference.RoleSystem, Content: systemPrompt},
			{Role: inference.RoleUser, Content: prompt},
			{Role: inference.RoleAssistant, Content: primingMessage},
		},
		graph:     graph.NewSimilarityGraph(),
		stepCount: 1,
	}
}

func (s *session) appendMessage(role, content string) {
	s.messages = append(s.messages, inference.ChatMessage{Role: role, Content: content})
}

// allocateID returns the first unused Step<n> id starting at stepCount and
// leaves stepCount at n.
func (s *session) allocateID() string {
	id := fmt.Sprintf("Step%d", s.stepCount)
	for s.graph.HasNode(id) {
		s.stepCount++
		id = fmt.Sprintf("Step%d", s.stepCount)
	}
	return id
}

func (s *session) addEmbedding(nodeID string, vec []float32) {
	s.embeddings = append(s.embeddings, vec)
	s.nodeIDs = append(s.nodeIDs, nodeID)
}

// validSteps is the number of steps accepted since the last restart.
func (s *session) validSteps() int {
	return len(s.nodeIDs)
}

// restart drops the conversation back to the system and user messages and
// clears the graph. Step numbering continues.
func (s *session) restart() {
	s.messages = s.messages[:2:2]
	s.graph = graph.NewSimilarityGraph()
	s.embeddings = nil
	s.nodeIDs = nil
	s.finalAnswer = ""
	s.hasFinal = false
	s.stepCount++
}
