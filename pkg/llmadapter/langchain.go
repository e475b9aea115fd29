package llmadapter

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/brbuxton/aeon/pkg/aeonerrors"
)

// LangchainAdapter adapts a langchaingo llms.Model to the LLMAdapter
// interface, the same abstraction layer the teacher codebase builds its
// orchestrator agents on top of.
type LangchainAdapter struct {
	model llms.Model
}

// NewLangchainAdapter wraps a langchaingo model.
func NewLangchainAdapter(model llms.Model) *LangchainAdapter {
	return &LangchainAdapter{model: model}
}

// Generate issues a single-turn completion request and classifies any
// failure into a transient/non-transient *aeonerrors.LLMError.
func (a *LangchainAdapter) Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (GenerateResult, error) {
	messages := []llms.MessageContent{}
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := a.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(temperature),
	)
	if err != nil {
		return GenerateResult{}, aeonerrors.NewLLMError(err.Error(), isTransientProviderError(err), err)
	}
	if len(resp.Choices) == 0 {
		return GenerateResult{}, aeonerrors.NewLLMError("provider returned no choices", false, nil)
	}
	return GenerateResult{Text: resp.Choices[0].Content}, nil
}

// isTransientProviderError distinguishes timeouts/rate-limits/5xx (worth
// retrying) from auth/quota/invalid-request failures (not worth retrying),
// per the message-substring contract every LM wrapper in this system uses.
func isTransientProviderError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "rate limit", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	for _, marker := range []string{"unauthorized", "invalid api key", "invalid_api_key", "quota", "401", "403"} {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return false
}
