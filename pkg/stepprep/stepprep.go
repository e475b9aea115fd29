// Package stepprep handles step preparation: selecting steps whose
// dependencies are satisfied, hydrating their incoming context from memory,
// and populating step indices.
package stepprep

import (
	"context"
	"fmt"

	"github.com/brbuxton/aeon/pkg/memory"
	"github.com/brbuxton/aeon/pkg/model"
)

// GetReadySteps returns the steps that are pending with every dependency
// COMPLETE. Dependency checking is deterministic and never fails, so this
// returns a plain slice, not an (result, error) pair.
func GetReadySteps(ctx context.Context, plan *model.Plan, mem memory.Memory) []*model.PlanStep {
	var ready []*model.PlanStep
	for _, step := range plan.Steps {
		if step.Status != model.StepPending {
			continue
		}
		if !dependenciesSatisfied(plan, step) {
			continue
		}
		PopulateIncomingContext(ctx, step, plan, mem)
		ready = append(ready, step)
	}
	return ready
}

func dependenciesSatisfied(plan *model.Plan, step *model.PlanStep) bool {
	for _, depID := range step.Dependencies {
		dep := plan.StepByID(depID)
		if dep == nil || dep.Status != model.StepComplete {
			return false
		}
	}
	return true
}

// PopulateIncomingContext hydrates step.IncomingContext from the results of
// its dependencies, preferring each dependency's HandoffToNext over its raw
// memory-recorded result. Memory read failures are swallowed: a dependency
// whose result can't be read is simply omitted from the context.
func PopulateIncomingContext(ctx context.Context, step *model.PlanStep, plan *model.Plan, mem memory.Memory) {
	if mem == nil || len(step.Dependencies) == 0 {
		return
	}

	var parts []string
	for _, depID := range step.Dependencies {
		depStep := plan.StepByID(depID)
		if depStep != nil && depStep.HandoffToNext != "" {
			parts = append(parts, fmt.Sprintf("From step %s: %s", depID, depStep.HandoffToNext))
			continue
		}

		value, ok, err := mem.Read(ctx, memory.StepResultKey(depID))
		if err != nil || !ok || value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("From step %s: %s", depID, value))
	}

	if len(parts) == 0 {
		return
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		joined += "\n" + p
	}
	step.IncomingContext = joined
}

// PopulateStepIndices assigns a 1-based StepIndex and the shared TotalSteps
// to every step in the plan.
func PopulateStepIndices(plan *model.Plan) {
	total := len(plan.Steps)
	for i, step := range plan.Steps {
		step.StepIndex = i + 1
		step.TotalSteps = total
	}
}
