// Package llm provides text-completion clients for the tutor agent.
// The Client interface is the only surface the pipeline depends on; any
// conforming implementation (HTTP provider, fake, recorded fixture) can be
// substituted for deterministic tests.
package llm

import "context"

// Request describes one completion call.
type Request struct {
	System      string  // Optional system prompt
	Prompt      string  // User prompt
	MaxTokens   int     // Completion budget; 0 means provider default
	Temperature float64 // Sampling temperature
}

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
