package depth

import "github.com/brbuxton/aeon/pkg/model"

// AllocateTTL is the deterministic TTL allocation formula from spec.md
// section 4.2. It is a pure function: identical inputs produce identical
// outputs.
func AllocateTTL(profile model.TaskProfile, config model.AdaptiveDepthConfiguration, limit *int) int {
	toolWeight := config.ToolUsageWeights[profile.ExpectedToolUsage]
	if toolWeight == 0 {
		toolWeight = 1.0
	}
	breadthWeight := config.OutputBreadthWeights[profile.OutputBreadth]
	if breadthWeight == 0 {
		breadthWeight = 1.0
	}
	confidenceWeight := config.ConfidenceRequirementWeights[profile.ConfidenceRequirement]
	if confidenceWeight == 0 {
		confidenceWeight = 1.0
	}

	raw := config.TTLBaseMultiplier *
		(float64(profile.ReasoningDepth) * config.ReasoningDepthWeight) *
		(profile.InformationSufficiency * config.InformationSufficiencyWeight) *
		toolWeight * breadthWeight * confidenceWeight

	ttl := int(raw)
	if ttl < 1 {
		ttl = 1
	}

	if limit != nil && ttl > *limit {
		ttl = *limit
	} else if config.GlobalTTLLimit != nil && ttl > *config.GlobalTTLLimit {
		ttl = *config.GlobalTTLLimit
	}
	return ttl
}

// AdjustTTLForUpdatedProfile recomputes TTL after a reasoning-depth change
// between passes: +20%/level when increasing, -15%/level when decreasing.
// A zero-delta only adopts the freshly allocated TTL if it differs from the
// current TTL by more than 30%. The result is clamped to [1, limit] when a
// limit is provided.
func AdjustTTLForUpdatedProfile(oldProfile, newProfile model.TaskProfile, currentTTL int, config model.AdaptiveDepthConfiguration, limit *int) int {
	delta := newProfile.ReasoningDepth - oldProfile.ReasoningDepth

	var adjusted int
	switch {
	case delta > 0:
		factor := 1.0 + float64(delta)*0.20
		adjusted = int(float64(currentTTL) * factor)
	case delta < 0:
		factor := 1.0 + float64(delta)*0.15 // delta is negative, so this subtracts
		adjusted = int(float64(currentTTL) * factor)
	default:
		newAllocation := AllocateTTL(newProfile, config, limit)
		if differsByMoreThan30Percent(newAllocation, currentTTL) {
			adjusted = newAllocation
		} else {
			adjusted = currentTTL
		}
	}

	if adjusted < 1 {
		adjusted = 1
	}
	if limit != nil && adjusted > *limit {
		adjusted = *limit
	}
	return adjusted
}

func differsByMoreThan30Percent(a, b int) bool {
	if b == 0 {
		return a != 0
	}
	diff := float64(a-b) / float64(b)
	if diff < 0 {
		diff = -diff
	}
	return diff > 0.30
}
