package depth

import (
	"context"
	"errors"
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

func TestInferTaskProfileParsesValidResponse(t *testing.T) {
	text := `{"profile_version":1,"reasoning_depth":4,"information_sufficiency":0.7,` +
		`"expected_tool_usage":"extensive","output_breadth":"broad","confidence_requirement":"high","raw_inference":"complex multi-part request"}`
	d := New(&fixedAdapter{text: text}, nil, model.AdaptiveDepthConfiguration{}, nil)

	p := d.InferTaskProfile(context.Background(), "do something complex", nil)
	if p.ReasoningDepth != 4 || p.ExpectedToolUsage != model.ToolUsageExtensive {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestInferTaskProfileFallsBackToDefaultOnLLMFailure(t *testing.T) {
	d := New(&fixedAdapter{err: errors.New("boom")}, nil, model.AdaptiveDepthConfiguration{}, nil)

	p := d.InferTaskProfile(context.Background(), "task", nil)
	if p != model.DefaultTaskProfile() {
		t.Fatalf("expected default profile on llm failure, got %+v", p)
	}
}

func TestInferTaskProfileFallsBackToDefaultOnEmptyTask(t *testing.T) {
	d := New(&fixedAdapter{text: "irrelevant"}, nil, model.AdaptiveDepthConfiguration{}, nil)

	p := d.InferTaskProfile(context.Background(), "   ", nil)
	if p != model.DefaultTaskProfile() {
		t.Fatalf("expected default profile for empty task, got %+v", p)
	}
}

func TestInferTaskProfileFallsBackToDefaultOnInvalidDimension(t *testing.T) {
	text := `{"profile_version":1,"reasoning_depth":99,"information_sufficiency":0.7,` +
		`"expected_tool_usage":"extensive","output_breadth":"broad","confidence_requirement":"high","raw_inference":"bad depth"}`
	d := New(&fixedAdapter{text: text}, nil, model.AdaptiveDepthConfiguration{}, nil)

	p := d.InferTaskProfile(context.Background(), "task", nil)
	if p != model.DefaultTaskProfile() {
		t.Fatalf("expected default profile on out-of-range dimension, got %+v", p)
	}
}

func baseProfile() model.TaskProfile {
	p := model.DefaultTaskProfile()
	p.ProfileVersion = 2
	return p
}

func TestUpdateTaskProfileRequiresAllThreeConditions(t *testing.T) {
	d := New(&fixedAdapter{text: "irrelevant"}, nil, model.AdaptiveDepthConfiguration{}, nil)
	current := baseProfile()

	cases := []struct {
		name       string
		converged  bool
		issues     bool
		clarity    []ClarityState
	}{
		{"none_missing_but_converged_true", true, true, []ClarityState{ClarityBlocked}},
		{"no_issues", false, false, []ClarityState{ClarityBlocked}},
		{"no_blocked_state", false, true, []ClarityState{ClarityClear, ClarityPartiallyClear}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assessment := model.ConvergenceAssessment{Converged: c.converged}
			if !c.converged {
				assessment.ReasonCodes = []string{"completeness_below_threshold"}
			}
			report := model.SemanticValidationReport{}
			if c.issues {
				report.Issues = []model.ValidationIssue{{IssueID: "i1", Type: model.IssueConsistency, Severity: model.SeverityHigh, Description: "x"}}
			}

			_, updated := d.UpdateTaskProfile(context.Background(), current, assessment, report, c.clarity)
			if updated {
				t.Fatalf("expected no update for case %s", c.name)
			}
		})
	}
}

func TestUpdateTaskProfileFiresAndIncrementsVersion(t *testing.T) {
	text := `{"profile_version":1,"reasoning_depth":5,"information_sufficiency":0.3,` +
		`"expected_tool_usage":"extensive","output_breadth":"broad","confidence_requirement":"high","raw_inference":"underestimated complexity"}`
	d := New(&fixedAdapter{text: text}, nil, model.AdaptiveDepthConfiguration{}, nil)
	current := baseProfile()

	assessment := model.ConvergenceAssessment{Converged: false, ReasonCodes: []string{"completeness_below_threshold"}}
	report := model.SemanticValidationReport{Issues: []model.ValidationIssue{{IssueID: "i1", Type: model.IssueConsistency, Severity: model.SeverityHigh, Description: "x"}}}
	clarity := []ClarityState{ClarityBlocked}

	updated, ok := d.UpdateTaskProfile(context.Background(), current, assessment, report, clarity)
	if !ok {
		t.Fatalf("expected update to fire")
	}
	if updated.ProfileVersion != current.ProfileVersion+1 {
		t.Fatalf("expected profile_version to increment by exactly 1, got %d -> %d", current.ProfileVersion, updated.ProfileVersion)
	}
	if updated.ReasoningDepth != 5 {
		t.Fatalf("expected updated reasoning depth 5, got %d", updated.ReasoningDepth)
	}
}
