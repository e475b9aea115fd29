package depth

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// tokenEncoding is the shared cl100k_base encoder used to estimate prompt
// footprint for the information_sufficiency heuristic nudge. Loaded once
// in init() and cached; estimateTokens falls back to a whitespace-split estimate if the
// encoder cannot be loaded (e.g. no network access to fetch BPE ranks).
var tokenEncoding *tiktoken.Tiktoken

func init() {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err == nil {
		tokenEncoding = enc
	}
}

// estimateTokens counts tokens in text, falling back to a whitespace
// split when the tiktoken encoder is unavailable.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if tokenEncoding != nil {
		return len(tokenEncoding.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// heuristicSufficiency nudges information_sufficiency upward when the
// supplied context is token-rich, but only as a floor: it never lowers or
// overrides a value the LM already supplied. This bucketing has no
// original_source precedent; it is a novel fallback for the case where the
// LM omits the field, consulted only when the LM's own value is absent
// (signaled by llmValue being < 0).
func heuristicSufficiency(contextText string, llmValue float64) float64 {
	if llmValue >= 0 {
		return llmValue
	}
	tokens := estimateTokens(contextText)
	switch {
	case tokens == 0:
		return 0.3
	case tokens < 50:
		return 0.4
	case tokens < 200:
		return 0.6
	case tokens < 800:
		return 0.75
	default:
		return 0.9
	}
}
