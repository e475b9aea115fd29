package stepprep

import (
	"context"
	"strings"
	"testing"

	"github.com/brbuxton/aeon/pkg/memory"
	"github.com/brbuxton/aeon/pkg/model"
)

func mkStep(t *testing.T, id, desc string, status model.StepStatus, deps ...string) *model.PlanStep {
	t.Helper()
	s, err := model.NewPlanStep(id, desc)
	if err != nil {
		t.Fatalf("NewPlanStep: %v", err)
	}
	s.Status = status
	s.Dependencies = deps
	return s
}

func TestGetReadyStepsNoDependencies(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepPending)
	s2 := mkStep(t, "step2", "Step 2", model.StepPending)
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	ready := GetReadySteps(context.Background(), plan, memory.NewInMemory())
	if len(ready) != 2 {
		t.Fatalf("expected 2 ready steps, got %d", len(ready))
	}
}

func TestGetReadyStepsUnsatisfiedDependency(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepPending)
	s2 := mkStep(t, "step2", "Step 2", model.StepPending, "step1")
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	ready := GetReadySteps(context.Background(), plan, memory.NewInMemory())
	if len(ready) != 1 || ready[0].StepID != "step1" {
		t.Fatalf("expected only step1 ready, got %+v", ready)
	}
}

func TestGetReadyStepsSatisfiedDependency(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepComplete)
	s2 := mkStep(t, "step2", "Step 2", model.StepPending, "step1")
	s3 := mkStep(t, "step3", "Step 3", model.StepPending, "step2")
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2, s3})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	ready := GetReadySteps(context.Background(), plan, memory.NewInMemory())
	if len(ready) != 1 || ready[0].StepID != "step2" {
		t.Fatalf("expected only step2 ready, got %+v", ready)
	}
}

func TestGetReadyStepsNoPendingSteps(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepComplete)
	s2 := mkStep(t, "step2", "Step 2", model.StepComplete)
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	ready := GetReadySteps(context.Background(), plan, memory.NewInMemory())
	if len(ready) != 0 {
		t.Fatalf("expected no ready steps, got %+v", ready)
	}
}

func TestGetReadyStepsWithoutMemory(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepPending)
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	ready := GetReadySteps(context.Background(), plan, nil)
	if len(ready) != 1 || ready[0].StepID != "step1" {
		t.Fatalf("expected step1 ready without memory, got %+v", ready)
	}
}

func TestPopulateIncomingContextFromMemory(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepComplete)
	s2 := mkStep(t, "step2", "Step 2", model.StepPending, "step1")
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	mem := memory.NewInMemory()
	if err := mem.Write(context.Background(), memory.StepResultKey("step1"), "Output 1"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	PopulateIncomingContext(context.Background(), s2, plan, mem)
	if s2.IncomingContext == "" {
		t.Fatalf("expected incoming_context to be populated")
	}
	if !strings.Contains(s2.IncomingContext, "step1") || !strings.Contains(s2.IncomingContext, "Output 1") {
		t.Fatalf("unexpected incoming_context: %q", s2.IncomingContext)
	}
}

func TestPopulateIncomingContextPrefersHandoff(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepComplete)
	s1.HandoffToNext = "Handoff message"
	s2 := mkStep(t, "step2", "Step 2", model.StepPending, "step1")
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	mem := memory.NewInMemory()
	if err := mem.Write(context.Background(), memory.StepResultKey("step1"), "Output 1"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	PopulateIncomingContext(context.Background(), s2, plan, mem)
	if !strings.Contains(s2.IncomingContext, "Handoff message") {
		t.Fatalf("expected handoff message to take precedence, got %q", s2.IncomingContext)
	}
}

func TestPopulateIncomingContextNoDependencies(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepPending)
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	PopulateIncomingContext(context.Background(), s1, plan, memory.NewInMemory())
	if s1.IncomingContext != "" {
		t.Fatalf("expected no incoming_context for a step with no dependencies")
	}
}

func TestPopulateStepIndices(t *testing.T) {
	s1 := mkStep(t, "step1", "Step 1", model.StepPending)
	s2 := mkStep(t, "step2", "Step 2", model.StepPending)
	s3 := mkStep(t, "step3", "Step 3", model.StepPending)
	plan, err := model.NewPlan("Test goal", []*model.PlanStep{s1, s2, s3})
	if err != nil {
		t.Fatalf("NewPlan: %v", err)
	}

	PopulateStepIndices(plan)
	for i, s := range plan.Steps {
		if s.StepIndex != i+1 {
			t.Fatalf("expected step_index %d, got %d", i+1, s.StepIndex)
		}
		if s.TotalSteps != 3 {
			t.Fatalf("expected total_steps 3, got %d", s.TotalSteps)
		}
	}
}
