package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aixgo-dev/reasongraph/internal/graph"
	"github.com/aixgo-dev/reasongraph/internal/reasoning"
)

// printer renders session events for a terminal, or as JSON lines.
type printer struct {
	w       io.Writer
	jsonOut bool
}

func (p *printer) print(ev reasoning.Event) error {
	if p.jsonOut {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", b)
		return err
	}

	var err error
	switch e := ev.(type) {
	case reasoning.StepEvent:
		_, err = fmt.Fprintf(p.w, "Step %d: %s\n%s\n%s\n", e.Step, e.Title, indent(e.Content), describePath(e.PathData))
	case reasoning.InconsistencyEvent:
		_, err = fmt.Fprintf(p.w, "! %s\n\n", e.Message)
	case reasoning.FinalEvent:
		_, err = fmt.Fprintf(p.w, "Final answer:\n%s\n%s\n", indent(e.Content), describePath(e.PathData))
	case reasoning.DoneEvent:
		_, err = fmt.Fprintf(p.w, "Total thinking time: %.2fs\n", e.TotalTime)
	case reasoning.SimilarEvent:
		if len(e.Items) == 0 {
			return nil
		}
		_, err = fmt.Fprintln(p.w, "\nSimilar:")
		for _, item := range e.Items {
			if err != nil {
				break
			}
			kind := "step"
			if item.IsQuestion {
				kind = "question"
			}
			_, err = fmt.Fprintf(p.w, "  [%d] %.3f %-8s %s\n", item.ID, item.Similarity, kind, firstLine(item.Text))
		}
	}
	return err
}

func describePath(p *graph.PathResult) string {
	if p == nil {
		return "  path: none\n"
	}
	return fmt.Sprintf("  path: %s (avg %.3f)\n", strings.Join(p.Path, " -> "), p.AvgSimilarity)
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	const maxLen = 80
	if r := []rune(line); len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return line
}
