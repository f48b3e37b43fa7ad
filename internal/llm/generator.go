// Package llm turns a composed prompt into one candidate SQL statement via
// an OpenAI-compatible chat-completions endpoint.
package llm

import "context"

// Generator produces a single SQL statement for a prompt. It fails with a
// GenerationFailed failure on service errors, timeouts, and responses with
// no SQL-shaped content.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var _ Generator = (*OpenAIGenerator)(nil)
