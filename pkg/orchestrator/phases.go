package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/brbuxton/aeon/pkg/aeonerrors"
	"github.com/brbuxton/aeon/pkg/depth"
	"github.com/brbuxton/aeon/pkg/memory"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/stepprep"
)

// runPhaseA infers a TaskProfile and allocates its TTL. Never fails: any
// inference problem falls back to the default profile, whose TTL is then
// allocated (and capped at the global limit) like any other; default_ttl
// is used only when that allocation yields no positive TTL.
func (o *Orchestrator) runPhaseA(ctx context.Context, request string) (model.TaskProfile, int) {
	profile := o.depth.InferTaskProfile(ctx, request, nil)
	ttl := o.depth.AllocateTTL(profile, o.globalTTLLimit)
	if ttl <= 0 {
		ttl = o.depth.DefaultTTL()
	}
	return profile, ttl
}

// runPhaseB generates (or, given a prior plan, refines) the initial Plan.
// A planner failure is non-fatal: the prior plan, if any, is retained.
func (o *Orchestrator) runPhaseB(ctx context.Context, request string, profile model.TaskProfile, prior *model.Plan) (*model.Plan, error) {
	plan, err := o.planner.GeneratePlan(ctx, request, profile)
	if err != nil {
		if prior != nil {
			o.logger.Warnf("phase B: planner failed, retaining previous plan: %v", err)
			return prior, nil
		}
		return nil, aeonerrors.NewPhaseTransitionError(aeonerrors.TransitionAToB, "malformed_plan_json", true, 1, err)
	}

	artifact := planArtifact(plan)
	report := o.validator.Validate(ctx, artifact, model.ArtifactPlan)
	if report.HasIssues() {
		actions := o.planner.RefinePlan(ctx, plan, report, nil)
		if len(actions) > 0 {
			if success, refined, rerr := o.refine(plan, actions); success {
				plan = refined
			} else {
				o.logger.Warnf("phase B: refinement failed, keeping generated plan: %v", rerr)
			}
		}
	}
	stepprep.PopulateStepIndices(plan)
	return plan, nil
}

// runPhaseCExecute selects the ready-step batch and executes it, optionally
// in parallel. TTL is decremented exactly once per executed step whether
// or not the step succeeds; a single step failure never aborts the batch.
// The batch is capped at state.TTLRemaining steps so TTLRemaining never
// goes negative: the remaining ready steps stay pending and are picked up
// in a later pass.
func (o *Orchestrator) runPhaseCExecute(ctx context.Context, state *model.OrchestrationState) []map[string]any {
	ready := stepprep.GetReadySteps(ctx, state.Plan, o.memory)
	if len(ready) == 0 {
		return nil
	}
	if state.TTLRemaining < len(ready) {
		ready = ready[:state.TTLRemaining]
	}
	if len(ready) == 0 {
		return nil
	}

	results := make([]map[string]any, len(ready))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, step := range ready {
		i, step := i, step
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := o.executeStep(ctx, step, state.Plan)

			mu.Lock()
			results[i] = result
			state.TTLRemaining--
			ttlRemaining := state.TTLRemaining
			mu.Unlock()

			if o.telemetry != nil {
				o.telemetry.Append(stepTelemetryRecord(step, result, ttlRemaining))
			}
		}()
	}
	wg.Wait()
	return results
}

// executeStep routes a single step through the tool registry or the LM
// directly, per its StepKind, and records the result to memory.
func (o *Orchestrator) executeStep(ctx context.Context, step *model.PlanStep, plan *model.Plan) map[string]any {
	step.Status = model.StepRunning

	switch kind := step.Kind().(type) {
	case model.ToolKind:
		o.runToolStep(ctx, step, plan, kind)
	case model.LLMKind:
		o.runLLMStep(ctx, step, kind)
	}

	if o.memory != nil && step.Status == model.StepComplete && step.HandoffToNext != "" {
		if err := o.memory.Write(ctx, memory.StepResultKey(step.StepID), step.HandoffToNext); err != nil {
			o.logger.Warnf("phase C-execute: memory write failed for step %q: %v", step.StepID, err)
		}
	}

	return map[string]any{
		"step_id":         step.StepID,
		"status":          string(step.Status),
		"handoff_to_next": step.HandoffToNext,
		"errors":          append([]string(nil), step.Errors...),
	}
}

func (o *Orchestrator) runToolStep(ctx context.Context, step *model.PlanStep, plan *model.Plan, kind model.ToolKind) {
	if o.tools == nil {
		step.Status = model.StepFailed
		step.Errors = append(step.Errors, fmt.Sprintf("no tool registry configured for tool %q", kind.Name))
		return
	}

	_, found, err := o.tools.Get(ctx, kind.Name)
	if err != nil || !found {
		if o.adapter == nil {
			step.Status = model.StepFailed
			step.Errors = append(step.Errors, fmt.Sprintf("unknown tool %q and no llm adapter configured to repair it", kind.Name))
			return
		}
		available, _ := o.tools.ListAll(ctx)
		repaired, rerr := o.supervisor.RepairMissingToolStep(ctx, step, available, plan.Goal)
		if rerr != nil {
			step.Status = model.StepFailed
			step.Errors = append(step.Errors, fmt.Sprintf("unknown tool %q: %v", kind.Name, rerr))
			return
		}
		step.Tool = repaired.Tool
		step.Description = repaired.Description
		kind = model.ToolKind{Name: repaired.Tool}
	}

	out, err := o.tools.Invoke(ctx, kind.Name, map[string]any{
		"description":     step.Description,
		"incoming_context": step.IncomingContext,
	})
	if err != nil {
		step.Status = model.StepFailed
		step.Errors = append(step.Errors, err.Error())
		return
	}
	step.Status = model.StepComplete
	step.HandoffToNext = fmt.Sprintf("%v", out)
}

func (o *Orchestrator) runLLMStep(ctx context.Context, step *model.PlanStep, kind model.LLMKind) {
	if o.adapter == nil {
		step.Status = model.StepFailed
		step.Errors = append(step.Errors, "no llm adapter configured")
		return
	}
	prompt := kind.Prompt
	if step.IncomingContext != "" {
		prompt = step.IncomingContext + "\n\n" + prompt
	}
	resp, err := o.adapter.Generate(ctx, prompt, stepSystemPrompt, 2048, 0.3)
	if err != nil {
		step.Status = model.StepFailed
		step.Errors = append(step.Errors, err.Error())
		return
	}
	step.Status = model.StepComplete
	step.HandoffToNext = resp.Text
}

const stepSystemPrompt = "You execute a single step of a larger plan. Be concise and produce output the next step can consume directly."

// phaseCEvaluation bundles Phase C-evaluate's outputs.
type phaseCEvaluation struct {
	Converged  bool
	Report     model.SemanticValidationReport
	Assessment model.ConvergenceAssessment
}

// runPhaseCEvaluate validates the execution artifact and scores
// convergence. Auto-convergence short-circuits to converged=true when
// every step is COMPLETE and no issue reaches HIGH severity or above.
func (o *Orchestrator) runPhaseCEvaluate(ctx context.Context, plan *model.Plan, executionResults []map[string]any) phaseCEvaluation {
	artifact := executionArtifact(plan, executionResults)
	report := o.validator.Validate(ctx, artifact, model.ArtifactExecutionArtifact)

	if allStepsComplete(plan) && !report.MaxSeverity().AtLeast(model.SeverityHigh) {
		return phaseCEvaluation{
			Converged: true,
			Report:    report,
			Assessment: model.ConvergenceAssessment{
				Converged:         true,
				CompletenessScore: 1.0,
				CoherenceScore:    1.0,
				ConsistencyStatus: model.ConsistencyStatus{PlanAligned: true, StepAligned: true, AnswerAligned: true, MemoryAligned: true},
			},
		}
	}

	assessment := o.convergence.Assess(ctx, plan, executionResults, report, nil)
	return phaseCEvaluation{Converged: assessment.Converged, Report: report, Assessment: assessment}
}

func allStepsComplete(plan *model.Plan) bool {
	for _, s := range plan.Steps {
		if s.Status != model.StepComplete {
			return false
		}
	}
	return true
}

// runPhaseCRefine requests refinement actions from the planner and applies
// them. On any failure the original plan is retained and success is false.
func (o *Orchestrator) runPhaseCRefine(ctx context.Context, plan *model.Plan, report model.SemanticValidationReport, reasonCodes []string) (bool, *model.Plan) {
	actions := o.planner.RefinePlan(ctx, plan, report, reasonCodes)
	if len(actions) == 0 {
		return false, plan
	}
	success, updated, err := o.refine(plan, actions)
	if !success {
		o.logger.Warnf("phase C-refine: refinement application failed, keeping prior plan: %v", err)
		return false, plan
	}
	stepprep.PopulateStepIndices(updated)
	return true, updated
}

// runPhaseD re-estimates the TaskProfile and, if it changes, recomputes
// TTL. Firing requires all three conditions the Adaptive Depth component
// checks; see pkg/depth.UpdateTaskProfile.
func (o *Orchestrator) runPhaseD(ctx context.Context, profile model.TaskProfile, assessment model.ConvergenceAssessment, report model.SemanticValidationReport, clarity []depth.ClarityState, currentTTL int) (model.TaskProfile, int, bool) {
	updated, fired := o.depth.UpdateTaskProfile(ctx, profile, assessment, report, clarity)
	if !fired {
		return profile, currentTTL, false
	}
	newTTL := depth.AdjustTTLForUpdatedProfile(profile, updated, currentTTL, o.depthConfig, o.globalTTLLimit)
	return updated, newTTL, true
}
