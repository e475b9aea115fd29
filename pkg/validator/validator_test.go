package validator

import (
	"context"
	"testing"

	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/toolregistry"
)

func TestStructuralCheckPrecedenceOnDuplicateStepIDs(t *testing.T) {
	v := New(nil, nil, nil)
	artifact := map[string]any{
		"goal": "do things",
		"steps": []any{
			map[string]any{"step_id": "s1", "description": "a"},
			map[string]any{"step_id": "s1", "description": "b"},
		},
	}
	report := v.Validate(context.Background(), artifact, model.ArtifactPlan)

	found := false
	for _, iss := range report.Issues {
		if iss.Type == model.IssueConsistency && iss.Severity == model.SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a HIGH-severity consistency issue for duplicate step_ids, got %+v", report.Issues)
	}
}

func TestStructuralCheckRunsWithoutLLM(t *testing.T) {
	v := New(nil, nil, nil)
	artifact := map[string]any{"goal": "", "steps": []any{}}
	report := v.Validate(context.Background(), artifact, model.ArtifactPlan)
	if !report.HasIssues() {
		t.Fatalf("expected structural issues for empty goal/steps even without an LLM adapter")
	}
}

func TestHallucinationCheckFlagsUnknownTool(t *testing.T) {
	reg := toolregistry.NewInMemory()
	reg.Register(toolregistry.ToolDescriptor{Name: "web_search"}, nil)

	v := New(nil, reg, nil)
	artifact := map[string]any{
		"goal": "find info",
		"steps": []any{
			map[string]any{"step_id": "s1", "description": "search", "tool": "nonexistent_tool"},
		},
	}
	report := v.Validate(context.Background(), artifact, model.ArtifactPlan)

	found := false
	for _, iss := range report.Issues {
		if iss.Type == model.IssueHallucination {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected hallucination issue for unregistered tool, got %+v", report.Issues)
	}
}
