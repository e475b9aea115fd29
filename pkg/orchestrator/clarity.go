package orchestrator

import "github.com/brbuxton/aeon/pkg/depth"

// clarityStatesForSteps derives a ClarityState per executed step from its
// terminal status and handoff content. The spec leaves the source of
// clarity states unspecified; this orchestrator infers them from the same
// execution results Phase C-evaluate already has in hand rather than
// requiring a separate LM call: a FAILED step is BLOCKED (execution could
// not produce usable output), a COMPLETE step with no handoff message is
// PARTIALLY_CLEAR (it produced a result but nothing to hand downstream),
// and a COMPLETE step with a handoff message is CLEAR.
func clarityStatesForSteps(executionResults []map[string]any) []depth.ClarityState {
	states := make([]depth.ClarityState, 0, len(executionResults))
	for _, r := range executionResults {
		status, _ := r["status"].(string)
		handoff, _ := r["handoff_to_next"].(string)
		switch {
		case status == "failed":
			states = append(states, depth.ClarityBlocked)
		case status == "complete" && handoff != "":
			states = append(states, depth.ClarityClear)
		default:
			states = append(states, depth.ClarityPartiallyClear)
		}
	}
	return states
}
