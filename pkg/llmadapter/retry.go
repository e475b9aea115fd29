package llmadapter

import (
	"context"
	"errors"
	"strings"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/aeonerrors"
)

// transientMarkers are message substrings that indicate a provider failure
// is worth retrying once: timeouts, rate limits, and 5xx responses. Auth,
// quota, and invalid-request failures are never retried.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"rate limit",
	"rate-limit",
	"429",
	"500",
	"502",
	"503",
	"504",
	"temporarily unavailable",
	"connection reset",
}

// classifyTransient inspects an error (typically returned by the wrapped
// adapter) and decides whether it is worth one retry.
func classifyTransient(err error) bool {
	var llmErr *aeonerrors.LLMError
	if errors.As(err, &llmErr) {
		return llmErr.Transient
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RetryingAdapter wraps an LLMAdapter and retries exactly once on a
// transient failure. Non-transient failures raise immediately. This is the
// sole place provider-specific retry policy lives; every phase calls LM
// adapters only through this wrapper.
type RetryingAdapter struct {
	inner  LLMAdapter
	logger logging.ExtendedLogger
}

// NewRetryingAdapter wraps inner with the transient-retry policy.
func NewRetryingAdapter(inner LLMAdapter, logger logging.ExtendedLogger) *RetryingAdapter {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &RetryingAdapter{inner: inner, logger: logger}
}

// Generate calls the wrapped adapter, retrying once if the first attempt
// fails with a transient error. Cancellation of ctx aborts the next call.
func (r *RetryingAdapter) Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (GenerateResult, error) {
	result, err := r.inner.Generate(ctx, prompt, systemPrompt, maxTokens, temperature)
	if err == nil {
		return result, nil
	}

	if !classifyTransient(err) {
		r.logger.Warnf("llm call failed non-transiently, not retrying: %v", err)
		return GenerateResult{}, wrapNonTransient(err)
	}

	if ctx.Err() != nil {
		return GenerateResult{}, wrapNonTransient(ctx.Err())
	}

	r.logger.Warnf("llm call failed transiently, retrying once: %v", err)
	result, err = r.inner.Generate(ctx, prompt, systemPrompt, maxTokens, temperature)
	if err != nil {
		return GenerateResult{}, wrapNonTransient(err)
	}
	return result, nil
}

func wrapNonTransient(err error) error {
	var llmErr *aeonerrors.LLMError
	if errors.As(err, &llmErr) {
		return llmErr
	}
	return aeonerrors.NewLLMError(err.Error(), false, err)
}
