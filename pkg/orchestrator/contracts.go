package orchestrator

import (
	"context"
	"errors"

	"github.com/brbuxton/aeon/pkg/aeonerrors"
)

// maxTransitionRetries is the spec's bound on retrying a retryable
// PhaseTransitionError: one additional attempt, never more.
const maxTransitionRetries = 1

var legalTransitions = map[aeonerrors.Transition]bool{
	aeonerrors.TransitionAToB:    true,
	aeonerrors.TransitionBToC:    true,
	aeonerrors.TransitionCToD:    true,
	aeonerrors.TransitionDToNext: true,
}

// enforceTransition runs fn under the named transition's contract. Any
// transition identifier outside the four legal ones is rejected before fn
// ever runs. If fn returns a retryable *aeonerrors.PhaseTransitionError, fn
// is retried exactly once more; any other error, or a second failure,
// surfaces to the caller unchanged.
func enforceTransition(ctx context.Context, transition aeonerrors.Transition, fn func(ctx context.Context) error) error {
	if !legalTransitions[transition] {
		return aeonerrors.NewPhaseTransitionError(transition, "unrecognized_transition", false, 1, nil)
	}

	err := fn(ctx)
	if err == nil {
		return nil
	}

	var pte *aeonerrors.PhaseTransitionError
	attempts := 0
	for errors.As(err, &pte) && pte.Retryable && attempts < maxTransitionRetries {
		attempts++
		err = fn(ctx)
		if err == nil {
			return nil
		}
	}
	return err
}
