package model

import "testing"

func mustStep(t *testing.T, id, desc string) *PlanStep {
	t.Helper()
	s, err := NewPlanStep(id, desc)
	if err != nil {
		t.Fatalf("NewPlanStep(%q): %v", id, err)
	}
	return s
}

func TestPlanRejectsDuplicateStepIDs(t *testing.T) {
	a := mustStep(t, "s1", "do a")
	b := mustStep(t, "s1", "do b")
	if _, err := NewPlan("goal", []*PlanStep{a, b}); err == nil {
		t.Fatalf("expected error for duplicate step_id")
	}
}

func TestPlanRejectsUnknownDependency(t *testing.T) {
	a := mustStep(t, "s1", "do a")
	a.Dependencies = []string{"missing"}
	if _, err := NewPlan("goal", []*PlanStep{a}); err == nil {
		t.Fatalf("expected error for dependency on unknown step_id")
	}
}

func TestPlanRejectsCycle(t *testing.T) {
	a := mustStep(t, "s1", "a")
	b := mustStep(t, "s2", "b")
	a.Dependencies = []string{"s2"}
	b.Dependencies = []string{"s1"}
	if _, err := NewPlan("goal", []*PlanStep{a, b}); err == nil {
		t.Fatalf("expected error for dependency cycle")
	}
}

func TestPlanRequiresAtLeastOneStep(t *testing.T) {
	if _, err := NewPlan("goal", nil); err == nil {
		t.Fatalf("expected error for empty plan")
	}
}

func TestPlanStepAgentMustBeLLM(t *testing.T) {
	s := mustStep(t, "s1", "a")
	s.Agent = "Human"
	if err := s.Validate(); err == nil {
		t.Fatalf("expected error for illegal agent value")
	}
	s.Agent = "LLM"
	if err := s.Validate(); err != nil {
		t.Fatalf("expected normalization to succeed: %v", err)
	}
	if s.Agent != "llm" {
		t.Fatalf("expected agent normalized to lowercase, got %q", s.Agent)
	}
}

func TestStepKindToolTakesPrecedence(t *testing.T) {
	s := mustStep(t, "s1", "a")
	s.Tool = "search"
	s.Agent = "llm"
	switch k := s.Kind().(type) {
	case ToolKind:
		if k.Name != "search" {
			t.Fatalf("expected tool name 'search', got %q", k.Name)
		}
	default:
		t.Fatalf("expected ToolKind when both tool and agent set, got %T", k)
	}
}

func TestConvergenceAssessmentRequiresReasonCodesWhenNotConverged(t *testing.T) {
	a := ConvergenceAssessment{Converged: false, CompletenessScore: 0.5, CoherenceScore: 0.5}
	if err := a.Validate(); err == nil {
		t.Fatalf("expected error when converged=false with no reason_codes")
	}
	a.ReasonCodes = []string{"completeness_below_threshold"}
	if err := a.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskProfileDefault(t *testing.T) {
	p := DefaultTaskProfile()
	if err := p.Validate(); err != nil {
		t.Fatalf("default profile must validate: %v", err)
	}
	if p.ProfileVersion != 1 || p.ReasoningDepth != 3 {
		t.Fatalf("unexpected default profile: %+v", p)
	}
}

func TestStepPatchAppliesOnlyPresentFields(t *testing.T) {
	s := mustStep(t, "s1", "original")
	newDesc := "patched"
	patch := StepPatch{Description: &newDesc}
	patch.Apply(s)
	if s.Description != "patched" {
		t.Fatalf("expected description patched, got %q", s.Description)
	}
	if s.StepID != "s1" {
		t.Fatalf("expected step_id untouched, got %q", s.StepID)
	}
}
