package llm

import "context"

// Client is the narrow LLM surface the agent depends on, so tests can swap in
// scripted fakes.
type Client interface {
	// Generate runs a single chat completion with an optional system prompt.
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)

	// GenerateJSON is Generate with the provider's JSON object response format
	// enabled; the returned string is a JSON document.
	GenerateJSON(ctx context.Context, systemPrompt, prompt string) (string, error)
}
