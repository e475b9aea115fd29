// Package llmadapter defines the LM adapter interface consumed by the
// orchestration core, plus the retry wrapper and a reference
// langchaingo-backed implementation. The concrete provider behind the
// adapter is an external collaborator named only by interface per the
// system spec; this package supplies the one place provider-specific
// retry/backoff is implemented.
package llmadapter

import "context"

// GenerateResult is the LM adapter's response envelope.
type GenerateResult struct {
	Text string
}

// LLMAdapter is the interface every core component calls through. It must
// raise a typed *aeonerrors.LLMError for provider failures.
type LLMAdapter interface {
	Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (GenerateResult, error)
}
