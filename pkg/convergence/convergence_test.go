package convergence

import (
	"context"
	"testing"

	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
)

type fixedAdapter struct {
	text string
	err  error
}

func (f *fixedAdapter) Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (llmadapter.GenerateResult, error) {
	if f.err != nil {
		return llmadapter.GenerateResult{}, f.err
	}
	return llmadapter.GenerateResult{Text: f.text}, nil
}

func alignedStatusJSON(aligned bool) string {
	if aligned {
		return `"consistency_status": {"plan_aligned": true, "step_aligned": true, "answer_aligned": true, "memory_aligned": true}`
	}
	return `"consistency_status": {"plan_aligned": false, "step_aligned": true, "answer_aligned": true, "memory_aligned": true}`
}

func TestConvergenceBelowDefaultThresholds(t *testing.T) {
	text := `{"completeness_score": 0.92, "coherence_score": 0.88, ` + alignedStatusJSON(true) + `, "detected_issues": []}`
	e := New(&fixedAdapter{text: text}, nil, Criteria{})
	plan, _ := model.NewPlan("goal", []*model.PlanStep{mustStep(t)})
	a := e.Assess(context.Background(), plan, nil, model.SemanticValidationReport{}, nil)

	if a.Converged {
		t.Fatalf("expected not converged at default thresholds")
	}
	if !contains(a.ReasonCodes, "completeness_below_threshold") || !contains(a.ReasonCodes, "coherence_below_threshold") {
		t.Fatalf("unexpected reason codes: %v", a.ReasonCodes)
	}
}

func TestConvergenceWithCustomCriteria(t *testing.T) {
	text := `{"completeness_score": 0.92, "coherence_score": 0.88, ` + alignedStatusJSON(true) + `, "detected_issues": []}`
	e := New(&fixedAdapter{text: text}, nil, Criteria{})
	plan, _ := model.NewPlan("goal", []*model.PlanStep{mustStep(t)})
	custom := &Criteria{CompletenessThreshold: 0.90, CoherenceThreshold: 0.85, ConsistencyThreshold: 0.90}
	a := e.Assess(context.Background(), plan, nil, model.SemanticValidationReport{}, custom)

	if !a.Converged {
		t.Fatalf("expected converged under relaxed custom criteria, got reason codes %v", a.ReasonCodes)
	}
}

func TestConsistencyConflictDespiteHighScores(t *testing.T) {
	text := `{"completeness_score": 0.98, "coherence_score": 0.95, ` + alignedStatusJSON(false) + `, "detected_issues": []}`
	e := New(&fixedAdapter{text: text}, nil, Criteria{})
	plan, _ := model.NewPlan("goal", []*model.PlanStep{mustStep(t)})
	a := e.Assess(context.Background(), plan, nil, model.SemanticValidationReport{}, nil)

	if a.Converged {
		t.Fatalf("expected not converged due to consistency conflict")
	}
	if !contains(a.ReasonCodes, "consistency_conflict") || !contains(a.ReasonCodes, "consistency_not_aligned") {
		t.Fatalf("unexpected reason codes: %v", a.ReasonCodes)
	}
}

func TestConvergenceLLMFailureIsConservative(t *testing.T) {
	e := New(&fixedAdapter{err: errBoom}, nil, Criteria{})
	plan, _ := model.NewPlan("goal", []*model.PlanStep{mustStep(t)})
	a := e.Assess(context.Background(), plan, nil, model.SemanticValidationReport{}, nil)

	if a.Converged || a.CompletenessScore != 0.0 || a.CoherenceScore != 0.0 {
		t.Fatalf("expected conservative non-converged zero-score assessment, got %+v", a)
	}
	if !contains(a.ReasonCodes, "llm_assessment_failed") {
		t.Fatalf("expected llm_assessment_failed reason code, got %v", a.ReasonCodes)
	}
}

func TestConvergenceUnparseableResponseIsUnexpectedError(t *testing.T) {
	e := New(&fixedAdapter{text: "not json"}, nil, Criteria{})
	plan, _ := model.NewPlan("goal", []*model.PlanStep{mustStep(t)})
	a := e.Assess(context.Background(), plan, nil, model.SemanticValidationReport{}, nil)

	if a.Converged {
		t.Fatalf("expected not converged on unparseable response")
	}
	if !contains(a.ReasonCodes, "unexpected_error") {
		t.Fatalf("expected unexpected_error reason code, got %v", a.ReasonCodes)
	}
}

var errBoom = &boomErr{}

type boomErr struct{}

func (e *boomErr) Error() string { return "boom" }

func mustStep(t *testing.T) *model.PlanStep {
	t.Helper()
	s, err := model.NewPlanStep("s1", "do the thing")
	if err != nil {
		t.Fatalf("NewPlanStep: %v", err)
	}
	return s
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
