// Package provider implements the external inference capability boundary.
package provider

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the inference backend is unconfigured or
// unreachable. Callers treat inference as best-effort and must not block
// primary ticket operations on it.
var ErrUnavailable = errors.New("inference service unavailable")

// Provider is the interface for inference backends.
type Provider interface {
	// Invoke sends a prompt and returns the generated completion.
	Invoke(ctx context.Context, req *Request) (*Completion, error)
	// DefaultModel returns the configured default model id.
	DefaultModel() string
}

// Request contains the parameters for an inference call.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Completion contains the generated text and token accounting.
type Completion struct {
	Text  string
	Usage Usage
}

// Usage contains token usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EstimateTokens gives a rough token count for budgeting before a call is
// made. True usage is only known from the completion afterwards.
func EstimateTokens(text string) int {
	// ~4 characters per token holds well enough for English prose.
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}
