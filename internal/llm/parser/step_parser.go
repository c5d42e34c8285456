package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Next actions a model may report for a reasoning step.
const (
	ActionContinue    = "continue"
	ActionFinalAnswer = "final_answer"
)

// ParsingErrorTitle is the title of a step whose output could not be decoded.
const ParsingErrorTitle = "Parsing Error"

const defaultContent = "No content"

var (
	codeFencePattern  = regexp.MustCompile("```(?:json)?\\s*")
	flatObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)
)

// Step is one structured reasoning step reported by the model.
type Step struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	NextAction string `json:"next_action"`
}

// IsFinal reports whether the model asked to move to the final answer.
func (s Step) IsFinal() bool {
	return s.NextAction == ActionFinalAnswer
}

// Extract parses raw model output into a Step. Code fences are removed and
// the last brace-delimited object without nested braces is decoded. Extract
// never fails: output that cannot be decoded yields a "Parsing Error" step
// carrying the cleaned text.
func Extract(raw string) Step {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))

	objects := flatObjectPattern.FindAllString(cleaned, -1)
	if len(objects) > 0 {
		var fields map[string]any
		if err := json.Unmarshal([]byte(objects[len(objects)-1]), &fields); err == nil {
			return stepFromFields(fields)
		}
	}

	return Step{
		Title:      ParsingErrorTitle,
		Content:    cleaned,
		NextAction: ActionContinue,
	}
}

// ExtractContent returns the "content" field of the last flat JSON object in
// raw. When the object has no content field, fallback is returned; when no
// object can be decoded, the cleaned text is returned as Extract would.
func ExtractContent(raw, fallback string) string {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))
	objects := flatObjectPattern.FindAllString(cleaned, -1)
	if len(objects) == 0 {
		return cleaned
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(objects[len(objects)-1]), &fields); err != nil {
		return cleaned
	}
	if content, ok := fields["content"]; ok && content != nil {
		return stringify(content)
	}
	return fallback
}

func stepFromFields(fields map[string]any) Step {
	step := Step{
		Content:    defaultContent,
		NextAction: ActionContinue,
	}
	if v, ok := fields["title"]; ok && v != nil {
		step.Title = stringify(v)
	}
	if v, ok := fields["content"]; ok && v != nil {
		step.Content = stringify(v)
	}
	if v, ok := fields["next_action"]; ok && v != nil {
		step.NextAction = strings.TrimSpace(stringify(v))
	}
	return step
}

// stringify renders non-string JSON values the way they appeared in the output.
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool, float64:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
