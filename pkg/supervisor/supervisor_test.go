package supervisor

import (
	"context"
	"testing"

	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/toolregistry"
)

type scriptedAdapter struct {
	responses []string
	calls     int
}

func (s *scriptedAdapter) Generate(ctx context.Context, prompt, systemPrompt string, maxTokens int, temperature float64) (llmadapter.GenerateResult, error) {
	if s.calls >= len(s.responses) {
		return llmadapter.GenerateResult{}, context.DeadlineExceeded
	}
	r := s.responses[s.calls]
	s.calls++
	return llmadapter.GenerateResult{Text: r}, nil
}

func TestRepairJSONSucceedsOnFirstValidResponse(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{`{"reasoning_depth": 3}`}}
	sup := New(adapter, nil, 2)
	out, err := sup.RepairJSON(context.Background(), "{reasoning_depth: 3", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["reasoning_depth"].(float64) != 3 {
		t.Fatalf("unexpected repaired value: %v", out)
	}
}

func TestRepairJSONRetriesThenExhausts(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{"still not json", "also not json"}}
	sup := New(adapter, nil, 2)
	_, err := sup.RepairJSON(context.Background(), "bad json", "")
	if err == nil {
		t.Fatalf("expected SupervisorError after exhausting attempts")
	}
	if adapter.calls != 2 {
		t.Fatalf("expected exactly max_attempts=2 calls, got %d", adapter.calls)
	}
}

func TestRepairJSONExtractsFromMarkdownFence(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{"```json\n{\"a\": 1}\n```"}}
	sup := New(adapter, nil, 2)
	out, err := sup.RepairJSON(context.Background(), "bad", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["a"].(float64) != 1 {
		t.Fatalf("unexpected value: %v", out)
	}
}

func TestRepairMissingToolStepRejectsUnknownTool(t *testing.T) {
	adapter := &scriptedAdapter{responses: []string{
		`{"step_id": "s1", "description": "search the web", "tool": "not_registered"}`,
		`{"step_id": "s1", "description": "search the web", "tool": "web_search"}`,
	}}
	sup := New(adapter, nil, 2)
	step, _ := model.NewPlanStep("s1", "search the web")
	tools := []toolregistry.ToolDescriptor{{Name: "web_search"}}

	repaired, err := sup.RepairMissingToolStep(context.Background(), step, tools, "find the answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repaired.Tool != "web_search" {
		t.Fatalf("expected repaired step to use registered tool, got %q", repaired.Tool)
	}
	if repaired.Errors != nil {
		t.Fatalf("expected errors cleared on successful repair")
	}
}
