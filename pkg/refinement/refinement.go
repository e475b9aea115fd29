// Package refinement applies RefinementActions to a Plan: ADD, MODIFY,
// REMOVE, REPLACE. Pure application — no LM calls here.
package refinement

import (
	"fmt"

	"github.com/brbuxton/aeon/pkg/model"
)

// ApplyActions applies refinement_actions to plan in order, returning a
// new plan. Any single construction failure aborts the whole batch,
// returning (false, the original plan, err) — refinements are all-or-nothing.
// Applying an empty action list returns the plan unchanged.
func ApplyActions(plan *model.Plan, actions []model.RefinementAction) (bool, *model.Plan, error) {
	if plan == nil {
		return false, plan, fmt.Errorf("refinement: nil plan")
	}
	if len(actions) == 0 {
		return true, plan, nil
	}

	updated := plan.Clone()

	for _, action := range actions {
		switch action.ActionType {
		case model.ActionAdd:
			if action.NewStep == nil {
				continue
			}
			if err := action.NewStep.Validate(); err != nil {
				return false, plan, fmt.Errorf("refinement: ADD step invalid: %w", err)
			}
			updated.Steps = append(updated.Steps, action.NewStep)

		case model.ActionModify:
			if action.TargetStepID == "" || action.Patch == nil {
				continue
			}
			step := updated.StepByID(action.TargetStepID)
			if step == nil {
				continue
			}
			action.Patch.Apply(step)
			if err := step.Validate(); err != nil {
				return false, plan, fmt.Errorf("refinement: MODIFY step %q invalid: %w", action.TargetStepID, err)
			}

		case model.ActionRemove:
			if action.TargetStepID == "" {
				continue
			}
			kept := make([]*model.PlanStep, 0, len(updated.Steps))
			for _, s := range updated.Steps {
				if s.StepID != action.TargetStepID {
					kept = append(kept, s)
				}
			}
			updated.Steps = kept

		case model.ActionReplace:
			if action.TargetStepID == "" || action.NewStep == nil {
				continue
			}
			if err := action.NewStep.Validate(); err != nil {
				return false, plan, fmt.Errorf("refinement: REPLACE step invalid: %w", err)
			}
			idx := -1
			for i, s := range updated.Steps {
				if s.StepID == action.TargetStepID {
					idx = i
					break
				}
			}
			if idx >= 0 {
				updated.Steps[idx] = action.NewStep
			}

		default:
			// unknown action types are skipped, not an error
			continue
		}
	}

	if err := updated.Validate(); err != nil {
		return false, plan, fmt.Errorf("refinement: resulting plan invalid: %w", err)
	}

	return true, updated, nil
}
