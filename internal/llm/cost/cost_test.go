package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixgo-dev/reasongraph/internal/llm/inference"
)

func TestTally(t *testing.T) {
	var tally Tally
	tally.Add(inference.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14})
	tally.Add(inference.Usage{PromptTokens: 20, CompletionTokens: 6})

	assert.Equal(t, 2, tally.Calls)
	assert.Equal(t, 30, tally.PromptTokens)
	assert.Equal(t, 10, tally.CompletionTokens)
	assert.Equal(t, 40, tally.TotalTokens())
}

func TestPricing(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		model string
		want  string
		found bool
	}{
		{"gpt-4o", "gpt-4o", true},
		{"gpt-4o-mini-2024-07-18", "gpt-4o-mini", true},
		{"gpt-4-turbo-preview", "gpt-4-turbo", true},
		{"llama3.1", "llama", true},
		{"qwen2.5:7b", "qwen", true},
		{"unknown-model", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, ok := c.Pricing(tt.model)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, p.Model)
		})
	}
}

func TestCost(t *testing.T) {
	c := NewCalculator()

	got, err := c.Cost("gpt-4o", Tally{PromptTokens: 1_000_000, CompletionTokens: 500_000})
	require.NoError(t, err)
	assert.InDelta(t, 7.5, got, 1e-9)

	got, err = c.Cost("llama3.1", Tally{PromptTokens: 5000, CompletionTokens: 5000})
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = c.Cost("unknown-model", Tally{PromptTokens: 1})
	assert.Error(t, err)
}

func TestAddPricingOverridesPrefix(t *testing.T) {
	c := NewCalculator()
	c.AddPricing(ModelPricing{Model: "llama3.1-hosted", InputPer1M: 1, OutputPer1M: 2})

	p, ok := c.Pricing("llama3.1-hosted-70b")
	require.True(t, ok)
	assert.Equal(t, "llama3.1-hosted", p.Model)

	p, ok = c.Pricing("llama3.1")
	require.True(t, ok)
	assert.Equal(t, "llama", p.Model)
}

func TestCalculatorConcurrentAccess(t *testing.T) {
	c := NewCalculator()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.Cost("gpt-4o", Tally{PromptTokens: 100})
		}()
		go func() {
			defer wg.Done()
			c.AddPricing(ModelPricing{Model: "custom", InputPer1M: float64(i)})
		}()
	}
	wg.Wait()

	_, ok := c.Pricing("custom")
	assert.True(t, ok)
}
