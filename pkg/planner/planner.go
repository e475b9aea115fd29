// Package planner implements the Recursive Planner: LM-backed plan
// generation and refinement-action synthesis. Both operations degrade
// non-fatally on failure, per the phase orchestrator's propagation policy.
package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/supervisor"
)

// Planner generates and refines Plans via the LM.
type Planner struct {
	adapter    llmadapter.LLMAdapter
	supervisor *supervisor.Supervisor
	logger     logging.ExtendedLogger
}

// New constructs a Planner.
func New(adapter llmadapter.LLMAdapter, logger logging.ExtendedLogger) *Planner {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Planner{
		adapter:    adapter,
		supervisor: supervisor.New(adapter, logger, supervisor.DefaultMaxAttempts),
		logger:     logger,
	}
}

type planJSON struct {
	Goal  string          `json:"goal"`
	Steps []stepJSON      `json:"steps"`
}

type stepJSON struct {
	StepID       string   `json:"step_id"`
	Description  string   `json:"description"`
	Tool         string   `json:"tool,omitempty"`
	Agent        string   `json:"agent,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

func (pj planJSON) toSteps() []*model.PlanStep {
	steps := make([]*model.PlanStep, 0, len(pj.Steps))
	for _, s := range pj.Steps {
		steps = append(steps, &model.PlanStep{
			StepID:       s.StepID,
			Description:  s.Description,
			Status:       model.StepPending,
			Tool:         s.Tool,
			Agent:        s.Agent,
			Dependencies: s.Dependencies,
		})
	}
	return steps
}

// GeneratePlan produces an initial Plan for a request and TaskProfile via
// the LM. Returns an error on any failure (no adapter, failed LM call,
// unparseable response, or invalid plan); Phase B retains the previous
// plan on error when there is one, per the non-fatal propagation policy.
func (p *Planner) GeneratePlan(ctx context.Context, request string, profile model.TaskProfile) (*model.Plan, error) {
	if p.adapter == nil {
		return nil, fmt.Errorf("planner: no llm adapter configured")
	}

	prompt := buildGeneratePrompt(request, profile)
	resp, err := p.adapter.Generate(ctx, prompt, generateSystemPrompt, 4096, 0.3)
	if err != nil {
		return nil, fmt.Errorf("planner: generate call failed: %w", err)
	}

	pj, err := p.parsePlanJSON(ctx, resp.Text)
	if err != nil {
		return nil, fmt.Errorf("planner: could not parse generated plan: %w", err)
	}

	plan, err := model.NewPlan(pj.Goal, pj.toSteps())
	if err != nil {
		return nil, fmt.Errorf("planner: generated plan invalid: %w", err)
	}
	return plan, nil
}

func (p *Planner) parsePlanJSON(ctx context.Context, text string) (planJSON, error) {
	var pj planJSON
	if err := json.Unmarshal([]byte(text), &pj); err == nil {
		return pj, nil
	}

	repaired, err := p.supervisor.RepairJSON(ctx, text, planSchemaHint)
	if err != nil {
		return planJSON{}, err
	}
	b, _ := json.Marshal(repaired)
	if err := json.Unmarshal(b, &pj); err != nil {
		return planJSON{}, err
	}
	return pj, nil
}

type refinementActionJSON struct {
	ActionType   string          `json:"action_type"`
	TargetStepID string          `json:"target_step_id,omitempty"`
	NewStep      json.RawMessage `json:"new_step,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

type refinementActionsJSON struct {
	Actions []refinementActionJSON `json:"actions"`
}

// RefinePlan asks the LM for a sequence of RefinementActions given the
// current plan, validation issues, and convergence reason codes. Returns
// an empty (nil) action slice, never an error that callers must surface —
// a failed refinement call just means "no changes" for this pass.
func (p *Planner) RefinePlan(ctx context.Context, plan *model.Plan, report model.SemanticValidationReport, reasonCodes []string) []model.RefinementAction {
	if p.adapter == nil {
		return nil
	}

	planJSON, _ := json.Marshal(plan)
	reportJSON, _ := json.Marshal(report)
	prompt := fmt.Sprintf(
		"The current plan has not converged. Propose refinement actions (ADD, MODIFY, REMOVE, REPLACE) "+
			"to resolve the issues below. Respond with a single JSON object matching schema:\n%s\n\n"+
			"Plan:\n%s\n\nValidation report:\n%s\n\nConvergence reason codes: %v",
		refinementActionSchemaHint, string(planJSON), string(reportJSON), reasonCodes,
	)

	resp, err := p.adapter.Generate(ctx, prompt, refineSystemPrompt, 4096, 0.3)
	if err != nil {
		p.logger.Warnf("planner: refine call failed, no refinement actions produced: %v", err)
		return nil
	}

	actions, err := p.parseActions(ctx, resp.Text)
	if err != nil {
		p.logger.Warnf("planner: could not parse refinement actions: %v", err)
		return nil
	}
	return actions
}

func (p *Planner) parseActions(ctx context.Context, text string) ([]model.RefinementAction, error) {
	var wrapped refinementActionsJSON
	if err := json.Unmarshal([]byte(text), &wrapped); err != nil || wrapped.Actions == nil {
		repaired, rerr := p.supervisor.RepairJSON(ctx, text, refinementActionSchemaHint)
		if rerr != nil {
			return nil, rerr
		}
		b, _ := json.Marshal(repaired)
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return nil, err
		}
	}

	actions := make([]model.RefinementAction, 0, len(wrapped.Actions))
	for _, r := range wrapped.Actions {
		action := model.RefinementAction{
			ActionType:   model.ActionType(r.ActionType),
			TargetStepID: r.TargetStepID,
			Reason:       r.Reason,
		}
		switch action.ActionType {
		case model.ActionAdd, model.ActionReplace:
			if len(r.NewStep) > 0 {
				var sj stepJSON
				if err := json.Unmarshal(r.NewStep, &sj); err == nil {
					action.NewStep = &model.PlanStep{
						StepID:       sj.StepID,
						Description:  sj.Description,
						Status:       model.StepPending,
						Tool:         sj.Tool,
						Agent:        sj.Agent,
						Dependencies: sj.Dependencies,
					}
				}
			}
		case model.ActionModify:
			if len(r.NewStep) > 0 {
				var patch model.StepPatch
				var fields map[string]json.RawMessage
				if err := json.Unmarshal(r.NewStep, &fields); err == nil {
					applyPatchField(&patch, fields)
				}
				action.Patch = &patch
			}
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func applyPatchField(patch *model.StepPatch, fields map[string]json.RawMessage) {
	if raw, ok := fields["description"]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			patch.Description = &v
		}
	}
	if raw, ok := fields["tool"]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			patch.Tool = &v
		}
	}
	if raw, ok := fields["agent"]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			patch.Agent = &v
		}
	}
	if raw, ok := fields["dependencies"]; ok {
		var v []string
		if json.Unmarshal(raw, &v) == nil {
			patch.Dependencies = &v
		}
	}
	if raw, ok := fields["handoff_to_next"]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			patch.HandoffToNext = &v
		}
	}
}

func buildGeneratePrompt(request string, profile model.TaskProfile) string {
	profileJSON, _ := json.Marshal(profile)
	return fmt.Sprintf(
		"Generate a step-by-step execution plan for this request. Respond with JSON matching schema:\n%s\n\n"+
			"Request: %s\n\nTask profile: %s",
		planSchemaHint, request, string(profileJSON),
	)
}

const generateSystemPrompt = "You generate structured, minimal execution plans. Always answer with strict JSON, no prose."
const refineSystemPrompt = "You propose minimal refinement actions to fix a plan that has not converged. Always answer with strict JSON, no prose."
const planSchemaHint = `{"goal":"string","steps":[{"step_id":"string","description":"string","tool":"string?","agent":"string?","dependencies":["string"]}]}`
const refinementActionSchemaHint = `{"actions":[{"action_type":"ADD|MODIFY|REMOVE|REPLACE","target_step_id":"string?","new_step":{"...":"..."},"reason":"string?"}]}`
