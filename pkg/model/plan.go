// Package model contains the typed records that make up a plan: steps,
// status, dependencies, and the sum-type routing between tool and LLM
// execution.
package model

import (
	"fmt"
	"strings"
)

// StepStatus is the execution state of a PlanStep.
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepRunning  StepStatus = "running"
	StepComplete StepStatus = "complete"
	StepFailed   StepStatus = "failed"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepRunning, StepComplete, StepFailed:
		return true
	default:
		return false
	}
}

// StepKind is the tagged variant a PlanStep resolves to for execution
// routing. It replaces ad-hoc "agent == llm" string checks scattered
// through the executor.
type StepKind interface {
	isStepKind()
}

// ToolKind routes execution through the tool registry.
type ToolKind struct {
	Name string
	Args map[string]any
}

func (ToolKind) isStepKind() {}

// LLMKind routes execution through a direct LLM call.
type LLMKind struct {
	Prompt string
}

func (LLMKind) isStepKind() {}

// PlanStep is a single unit of work within a Plan.
type PlanStep struct {
	StepID      string     `json:"step_id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`

	// Tool, if present, takes precedence over Agent for execution routing.
	Tool string `json:"tool,omitempty"`
	// Agent is only legal as "llm" (normalized lowercase).
	Agent string `json:"agent,omitempty"`

	Dependencies []string `json:"dependencies,omitempty"`
	Errors       []string `json:"errors,omitempty"`

	StepIndex  int `json:"step_index,omitempty"`
	TotalSteps int `json:"total_steps,omitempty"`

	IncomingContext string `json:"incoming_context,omitempty"`
	HandoffToNext   string `json:"handoff_to_next,omitempty"`
}

// NewPlanStep constructs a pending PlanStep, trimming and validating the
// non-empty required fields. Agent is normalized by Validate, not here.
func NewPlanStep(stepID, description string) (*PlanStep, error) {
	stepID = strings.TrimSpace(stepID)
	description = strings.TrimSpace(description)
	if stepID == "" {
		return nil, fmt.Errorf("step_id must be non-empty")
	}
	if description == "" {
		return nil, fmt.Errorf("description must be non-empty")
	}
	return &PlanStep{
		StepID:      stepID,
		Description: description,
		Status:      StepPending,
	}, nil
}

// Validate checks field-level invariants that do not depend on the
// enclosing plan (non-empty IDs, legal agent value, legal status).
func (s *PlanStep) Validate() error {
	if strings.TrimSpace(s.StepID) == "" {
		return fmt.Errorf("step_id must be non-empty")
	}
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("description must be non-empty")
	}
	if s.Status == "" {
		s.Status = StepPending
	}
	if !s.Status.Valid() {
		return fmt.Errorf("invalid status %q for step %q", s.Status, s.StepID)
	}
	if s.Tool != "" && strings.TrimSpace(s.Tool) == "" {
		return fmt.Errorf("tool must be non-empty when present")
	}
	if s.Agent != "" {
		s.Agent = strings.ToLower(strings.TrimSpace(s.Agent))
		if s.Agent != "llm" {
			return fmt.Errorf("agent %q is not a legal value (only \"llm\" is)", s.Agent)
		}
	}
	return nil
}

// Kind resolves the step's tagged execution variant. Tool takes precedence
// over Agent when both are set, per the invariant in the data model.
func (s *PlanStep) Kind() StepKind {
	if s.Tool != "" {
		return ToolKind{Name: s.Tool}
	}
	return LLMKind{Prompt: s.Description}
}

// Plan is the execution strategy: a goal plus an ordered, acyclic,
// uniquely-identified list of steps.
type Plan struct {
	Goal  string      `json:"goal"`
	Steps []*PlanStep `json:"steps"`
}

// NewPlan constructs and validates a Plan.
func NewPlan(goal string, steps []*PlanStep) (*Plan, error) {
	p := &Plan{Goal: strings.TrimSpace(goal), Steps: steps}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate enforces: non-empty goal, at least one step, unique step IDs,
// every dependency refers to an existing step_id in the same plan, and the
// dependency graph is acyclic.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Goal) == "" {
		return fmt.Errorf("goal must be non-empty")
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan must contain at least one step")
	}

	seen := make(map[string]*PlanStep, len(p.Steps))
	for _, s := range p.Steps {
		if s == nil {
			return fmt.Errorf("plan contains a nil step")
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("invalid step: %w", err)
		}
		if _, dup := seen[s.StepID]; dup {
			return fmt.Errorf("duplicate step_id %q", s.StepID)
		}
		seen[s.StepID] = s
	}

	for _, s := range p.Steps {
		for _, dep := range s.Dependencies {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("step %q depends on unknown step_id %q", s.StepID, dep)
			}
		}
	}

	if cycle := findCycle(p.Steps); cycle != "" {
		return fmt.Errorf("dependency graph contains a cycle at step %q", cycle)
	}
	return nil
}

// StepByID returns the step with the given ID, or nil if absent.
func (p *Plan) StepByID(stepID string) *PlanStep {
	for _, s := range p.Steps {
		if s.StepID == stepID {
			return s
		}
	}
	return nil
}

// findCycle performs a DFS over the dependency graph and returns the
// step_id where a cycle was first detected, or "" if the graph is a DAG.
func findCycle(steps []*PlanStep) string {
	byID := make(map[string]*PlanStep, len(steps))
	for _, s := range steps {
		byID[s.StepID] = s
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if cyc := visit(dep); cyc != "" {
					return cyc
				}
			}
		}
		color[id] = black
		return ""
	}

	for _, s := range steps {
		if color[s.StepID] == white {
			if cyc := visit(s.StepID); cyc != "" {
				return cyc
			}
		}
	}
	return ""
}

// Clone returns a deep-enough copy of the plan (new step slice and new step
// structs) so callers can mutate the copy without affecting the original —
// used by refinement and phase transitions that must retain the prior plan
// on failure.
func (p *Plan) Clone() *Plan {
	steps := make([]*PlanStep, len(p.Steps))
	for i, s := range p.Steps {
		cp := *s
		cp.Dependencies = append([]string(nil), s.Dependencies...)
		cp.Errors = append([]string(nil), s.Errors...)
		steps[i] = &cp
	}
	return &Plan{Goal: p.Goal, Steps: steps}
}
