package model

// ActionType is the kind of mutation a RefinementAction applies to a plan.
type ActionType string

const (
	ActionAdd     ActionType = "ADD"
	ActionModify  ActionType = "MODIFY"
	ActionRemove  ActionType = "REMOVE"
	ActionReplace ActionType = "REPLACE"
)

// StepPatch is an explicit partial-update type for MODIFY actions: only the
// fields present here are applied, everything else on the target step is
// left untouched. Pointers distinguish "not set" from "set to zero value".
type StepPatch struct {
	Description     *string
	Status          *StepStatus
	Tool            *string
	Agent           *string
	Dependencies    *[]string
	Errors          *[]string
	IncomingContext *string
	HandoffToNext   *string
}

// Apply overwrites only the fields present in the patch onto the step.
func (p StepPatch) Apply(s *PlanStep) {
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Tool != nil {
		s.Tool = *p.Tool
	}
	if p.Agent != nil {
		s.Agent = *p.Agent
	}
	if p.Dependencies != nil {
		s.Dependencies = *p.Dependencies
	}
	if p.Errors != nil {
		s.Errors = *p.Errors
	}
	if p.IncomingContext != nil {
		s.IncomingContext = *p.IncomingContext
	}
	if p.HandoffToNext != nil {
		s.HandoffToNext = *p.HandoffToNext
	}
}

// RefinementAction is a declarative mutation of a plan.
type RefinementAction struct {
	ActionType   ActionType `json:"action_type"`
	TargetStepID string     `json:"target_step_id,omitempty"`

	// NewStep carries the full step for ADD/REPLACE.
	NewStep *PlanStep `json:"new_step,omitempty"`
	// Patch carries the partial field-set for MODIFY. Kept separate from
	// NewStep because MODIFY only ever touches a subset of fields.
	Patch *StepPatch `json:"-"`

	Reason string `json:"reason,omitempty"`
}
