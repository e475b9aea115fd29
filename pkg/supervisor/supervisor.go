// Package supervisor implements bounded, LM-backed repair of malformed
// JSON, tool calls, plans, and missing-tool steps.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/aeonerrors"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/toolregistry"
)

// DefaultMaxAttempts is the spec's default bound on repair attempts.
const DefaultMaxAttempts = 2

// Supervisor repairs malformed LM output within a bounded number of
// attempts, raising a non-retryable SupervisorError on exhaustion.
type Supervisor struct {
	adapter     llmadapter.LLMAdapter
	logger      logging.ExtendedLogger
	maxAttempts int
}

// New constructs a Supervisor with the given LM adapter and an optional
// attempt bound (DefaultMaxAttempts if <= 0).
func New(adapter llmadapter.LLMAdapter, logger logging.ExtendedLogger, maxAttempts int) *Supervisor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Supervisor{adapter: adapter, logger: logger, maxAttempts: maxAttempts}
}

// schemaFor reflects a Go type into a JSON Schema the repair prompt can
// present concretely instead of in prose.
func schemaFor(v any) string {
	reflector := &jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(v)
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// RepairJSON attempts to coerce malformed text into valid JSON matching
// expectedSchema (a JSON Schema string; may be empty). Returns the parsed
// object as a map.
func (s *Supervisor) RepairJSON(ctx context.Context, text, expectedSchema string) (map[string]any, error) {
	var lastErr error
	attempt := 0
	for attempt < s.maxAttempts {
		attempt++
		prompt := buildRepairPrompt(text, expectedSchema, lastErr)
		resp, err := s.adapter.Generate(ctx, prompt, repairSystemPrompt, 2048, 0.0)
		if err != nil {
			lastErr = err
			continue
		}
		candidate := extractJSONObject(resp.Text)
		var out map[string]any
		if err := json.Unmarshal([]byte(candidate), &out); err != nil {
			lastErr = err
			text = resp.Text
			continue
		}
		return out, nil
	}
	return nil, aeonerrors.NewSupervisorError("repair_json", attempt, lastErr)
}

// RepairToolCall repairs a malformed tool-call payload against a tool's
// input schema.
func (s *Supervisor) RepairToolCall(ctx context.Context, call map[string]any, toolSchema map[string]any) (map[string]any, error) {
	callJSON, _ := json.Marshal(call)
	schemaJSON, _ := json.Marshal(toolSchema)
	return s.RepairJSON(ctx, string(callJSON), string(schemaJSON))
}

// RepairPlan repairs a malformed plan payload (represented as a
// map[string]any prior to typed construction) against the Plan schema.
func (s *Supervisor) RepairPlan(ctx context.Context, planDict map[string]any) (map[string]any, error) {
	planJSON, _ := json.Marshal(planDict)
	return s.RepairJSON(ctx, string(planJSON), schemaFor(model.Plan{}))
}

// RepairMissingToolStep produces a replacement PlanStep that references a
// real tool from availableTools, clearing the step's errors on success.
func (s *Supervisor) RepairMissingToolStep(ctx context.Context, step *model.PlanStep, availableTools []toolregistry.ToolDescriptor, planGoal string) (*model.PlanStep, error) {
	var names strings.Builder
	for i, t := range availableTools {
		if i > 0 {
			names.WriteString(", ")
		}
		names.WriteString(t.Name)
	}

	prompt := fmt.Sprintf(
		"The plan step %q (description: %q) references a tool that does not exist in the registry. "+
			"The plan's goal is %q. Available tools: [%s]. "+
			"Produce a replacement step as JSON with fields step_id, description, tool (must be one of the available tools), "+
			"using schema:\n%s",
		step.StepID, step.Description, planGoal, names.String(), schemaFor(model.PlanStep{}),
	)

	var lastErr error
	attempt := 0
	for attempt < s.maxAttempts {
		attempt++
		resp, err := s.adapter.Generate(ctx, prompt, repairSystemPrompt, 1024, 0.0)
		if err != nil {
			lastErr = err
			continue
		}
		candidate := extractJSONObject(resp.Text)
		var dict map[string]any
		if err := json.Unmarshal([]byte(candidate), &dict); err != nil {
			lastErr = err
			continue
		}
		newStep, err := stepFromDict(dict)
		if err != nil {
			lastErr = err
			continue
		}
		if !toolExists(newStep.Tool, availableTools) {
			lastErr = fmt.Errorf("repaired step references unknown tool %q", newStep.Tool)
			continue
		}
		newStep.Errors = nil
		return newStep, nil
	}
	return nil, aeonerrors.NewSupervisorError("repair_missing_tool_step", attempt, lastErr)
}

func toolExists(name string, tools []toolregistry.ToolDescriptor) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func stepFromDict(dict map[string]any) (*model.PlanStep, error) {
	b, err := json.Marshal(dict)
	if err != nil {
		return nil, err
	}
	var step model.PlanStep
	if err := json.Unmarshal(b, &step); err != nil {
		return nil, err
	}
	if err := step.Validate(); err != nil {
		return nil, err
	}
	return &step, nil
}

const repairSystemPrompt = "You are a strict JSON repair assistant. Given malformed or non-conforming JSON and a target schema, " +
	"respond with ONLY a single corrected JSON object that satisfies the schema. No prose, no markdown fences."

func buildRepairPrompt(text, schema string, lastErr error) string {
	var b strings.Builder
	b.WriteString("Repair the following JSON so it parses and matches the schema.\n\nJSON:\n")
	b.WriteString(text)
	if schema != "" {
		b.WriteString("\n\nSchema:\n")
		b.WriteString(schema)
	}
	if lastErr != nil {
		b.WriteString("\n\nPrevious attempt failed: ")
		b.WriteString(lastErr.Error())
	}
	return b.String()
}

// extractJSONObject trims surrounding markdown fences and prose the LM
// sometimes wraps its JSON output in.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	end := strings.LastIndexAny(text, "}]")
	if end < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
