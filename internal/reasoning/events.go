package reasoning

import (
	"encoding/json"

	"github.com/aixgo-dev/reasongraph/internal/graph"
	"github.com/aixgo-dev/reasongraph/internal/index"
)

// EventType discriminates events on the session stream.
type EventType string

// Event types.
const (
	EventStep          EventType = "step"
	EventInconsistency EventType = "inconsistency"
	EventFinal         EventType = "final"
	EventDone          EventType = "done"
	EventSimilar       EventType = "similar"
	EventError         EventType = "error"
)

// Event is one element of a session stream. Every event marshals to a JSON
// object carrying a "type" field.
type Event interface {
	Type() EventType
}

// StepEvent reports an accepted reasoning step.
type StepEvent struct {
	Step     int               `json:"step"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Graph    graph.Snapshot    `json:"graph"`
	PathData *graph.PathResult `json:"path_data"`
}

// InconsistencyEvent reports that reasoning restarted after a failed evaluation.
type InconsistencyEvent struct {
	Message string `json:"message"`
}

// FinalEvent carries the final answer with the final graph.
type FinalEvent struct {
	Content  string            `json:"content"`
	Graph    graph.Snapshot    `json:"graph"`
	PathData *graph.PathResult `json:"path_data"`
}

// DoneEvent closes a session. TotalTime is in seconds.
type DoneEvent struct {
	TotalTime float64 `json:"total_time"`
}

// SimilarEvent lists stored texts nearest to the question.
type SimilarEvent struct {
	Items []index.Result `json:"items"`
}

// ErrorEvent is written by transports when a stream aborts.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (StepEvent) Type() EventType          { return EventStep }
func (InconsistencyEvent) Type() EventType { return EventInconsistency }
func (FinalEvent) Type() EventType         { return EventFinal }
func (DoneEvent) Type() EventType          { return EventDone }
func (SimilarEvent) Type() EventType       { return EventSimilar }
func (ErrorEvent) Type() EventType         { return EventError }

func (e StepEvent) MarshalJSON() ([]byte, error) {
	type plain StepEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e InconsistencyEvent) MarshalJSON() ([]byte, error) {
	type plain InconsistencyEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e FinalEvent) MarshalJSON() ([]byte, error) {
	type plain FinalEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e DoneEvent) MarshalJSON() ([]byte, error) {
	type plain DoneEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e SimilarEvent) MarshalJSON() ([]byte, error) {
	type plain SimilarEvent
	if e.Items == nil {
		e.Items = []index.Result{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type plain ErrorEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		plain
	}{e.Type(), plain(e)})
}
