// Package cost tallies model token usage per reasoning session and prices it.
package cost

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
)

// ModelPricing is the USD price of one million tokens for a model family.
type ModelPricing struct {
	Model       string
	InputPer1M  float64
	OutputPer1M float64
}

// Tally accumulates token usage across the chat calls of one session.
type Tally struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
}

// Add folds one response's usage into the tally.
func (t *Tally) Add(u inference.Usage) {
	t.Calls++
	t.PromptTokens += u.PromptTokens
	t.CompletionTokens += u.CompletionTokens
}

// TotalTokens returns prompt plus completion tokens.
func (t Tally) TotalTokens() int {
	return t.PromptTokens + t.CompletionTokens
}

// Calculator prices a Tally. Lookups match the longest registered model
// prefix, so "gpt-4o-mini-2024-07-18" resolves to "gpt-4o-mini".
type Calculator struct {
	mu      sync.RWMutex
	pricing map[string]ModelPricing
}

// NewCalculator creates a calculator loaded with default pricing.
func NewCalculator() *Calculator {
	c := &Calculator{pricing: make(map[string]ModelPricing)}
	for _, p := range defaultPricing {
		c.pricing[p.Model] = p
	}
	return c
}

// Prices as of January 2025. Local Ollama model families are free.
var defaultPricing = []ModelPricing{
	{Model: "gpt-4", InputPer1M: 30.0, OutputPer1M: 60.0},
	{Model: "gpt-4-turbo", InputPer1M: 10.0, OutputPer1M: 30.0},
	{Model: "gpt-4o", InputPer1M: 2.5, OutputPer1M: 10.0},
	{Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60},
	{Model: "gpt-3.5-turbo", InputPer1M: 0.5, OutputPer1M: 1.5},
	{Model: "o1-mini", InputPer1M: 3.0, OutputPer1M: 12.0},

	{Model: "llama"},
	{Model: "qwen"},
	{Model: "mistral"},
	{Model: "phi"},
	{Model: "mock"},
}

// AddPricing adds or replaces pricing for a model prefix.
func (c *Calculator) AddPricing(p ModelPricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[p.Model] = p
}

// Pricing returns the pricing for model.
func (c *Calculator) Pricing(model string) (ModelPricing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.pricing[model]; ok {
		return p, true
	}

	keys := make([]string, 0, len(c.pricing))
	for k := range c.pricing {
		if strings.HasPrefix(model, k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ModelPricing{}, false
	}
	slices.SortFunc(keys, func(a, b string) int { return len(b) - len(a) })
	return c.pricing[keys[0]], true
}

// Cost returns the USD cost of t on model.
func (c *Calculator) Cost(model string, t Tally) (float64, error) {
	p, ok := c.Pricing(model)
	if !ok {
		return 0, fmt.Errorf("no pricing for model %q", model)
	}
	return float64(t.PromptTokens)/1_000_000*p.InputPer1M +
		float64(t.CompletionTokens)/1_000_000*p.OutputPer1M, nil
}
