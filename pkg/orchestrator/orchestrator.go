// Package orchestrator implements the Phase Orchestrator: the state
// machine that drives a request through Phase A (profile & TTL), Phase B
// (initial plan), Phase C (execute/evaluate/refine), and Phase D (adaptive
// depth re-evaluation), enforcing the four legal phase transitions.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/aeonerrors"
	"github.com/brbuxton/aeon/pkg/convergence"
	"github.com/brbuxton/aeon/pkg/depth"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/memory"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/planner"
	"github.com/brbuxton/aeon/pkg/refinement"
	"github.com/brbuxton/aeon/pkg/supervisor"
	"github.com/brbuxton/aeon/pkg/telemetry"
	"github.com/brbuxton/aeon/pkg/toolregistry"
	"github.com/brbuxton/aeon/pkg/validator"
)

// DefaultMaxPasses bounds the C/D outer loop when neither convergence nor
// TTL exhaustion ends it first.
const DefaultMaxPasses = 25

// Config wires every collaborator the orchestrator needs. Adapter, Tools,
// Memory, and Telemetry may be nil: a nil adapter degrades every LM-backed
// collaborator to its documented fallback behavior, a nil Tools registry
// makes every tool step fail closed, a nil Memory skips context hydration,
// and a nil Telemetry makes step recording a no-op.
type Config struct {
	Adapter        llmadapter.LLMAdapter
	Tools          toolregistry.ToolRegistry
	Memory         memory.Memory
	Telemetry      *telemetry.Writer
	Logger         logging.ExtendedLogger
	DepthConfig    model.AdaptiveDepthConfiguration
	Criteria       convergence.Criteria
	GlobalTTLLimit *int
	MaxPasses      int
}

// Orchestrator wires the Adaptive Depth, Recursive Planner, Semantic
// Validator, and Convergence Engine collaborators and drives them through
// the four-phase contract.
type Orchestrator struct {
	adapter     llmadapter.LLMAdapter
	tools       toolregistry.ToolRegistry
	memory      memory.Memory
	telemetry   *telemetry.Writer
	logger      logging.ExtendedLogger
	supervisor  *supervisor.Supervisor

	depth       *depth.AdaptiveDepth
	planner     *planner.Planner
	validator   *validator.Validator
	convergence *convergence.Engine

	depthConfig    model.AdaptiveDepthConfiguration
	globalTTLLimit *int
	maxPasses      int
}

// New constructs an Orchestrator from its collaborator configuration.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoop()
	}
	depthConfig := cfg.DepthConfig
	if depthConfig.TTLBaseMultiplier == 0 {
		depthConfig = model.DefaultAdaptiveDepthConfiguration()
	}
	maxPasses := cfg.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	return &Orchestrator{
		adapter:        cfg.Adapter,
		tools:          cfg.Tools,
		memory:         cfg.Memory,
		telemetry:      cfg.Telemetry,
		logger:         logger,
		supervisor:     supervisor.New(cfg.Adapter, logger, supervisor.DefaultMaxAttempts),
		depth:          depth.New(cfg.Adapter, logger, depthConfig, cfg.GlobalTTLLimit),
		planner:        planner.New(cfg.Adapter, logger),
		validator:      validator.New(cfg.Adapter, cfg.Tools, logger),
		convergence:    convergence.New(cfg.Adapter, logger, cfg.Criteria),
		depthConfig:    depthConfig,
		globalTTLLimit: cfg.GlobalTTLLimit,
		maxPasses:      maxPasses,
	}
}

// Result is the envelope returned to callers once a request terminates.
type Result struct {
	CorrelationID    string               `json:"correlation_id"`
	Status           string               `json:"status"`
	FinalPlan        *model.Plan          `json:"final_plan"`
	Profile          model.TaskProfile    `json:"final_task_profile"`
	TTLRemaining     int                  `json:"ttl_remaining"`
	ExecutionHistory []model.ExecutionPass `json:"execution_history"`
}

// Terminal status values for Result.Status.
const (
	StatusConverged       = "converged"
	StatusTTLExpired       = "ttl_expired"
	StatusMaxPassesReached = "max_passes_reached"
)

// Run drives a request through Phase A, Phase B, and the Phase C/D outer
// loop until convergence, TTL exhaustion, or the max-pass bound. It also
// stops early, with status max_passes_reached, after a pass that produces
// neither a plan refinement nor a profile update.
func (o *Orchestrator) Run(ctx context.Context, request string) (Result, error) {
	correlationID := uuid.NewString()

	profile, ttl := o.runPhaseA(ctx, request)

	var plan *model.Plan
	err := enforceTransition(ctx, aeonerrors.TransitionAToB, func(ctx context.Context) error {
		p, perr := o.runPhaseB(ctx, request, profile, nil)
		if perr != nil {
			return perr
		}
		plan = p
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	state := &model.OrchestrationState{
		Plan:          plan,
		TTLRemaining:  ttl,
		CorrelationID: correlationID,
	}

	for pass := 1; pass <= o.maxPasses; pass++ {
		if state.TTLRemaining <= 0 {
			state.RecordPass(pass, "C")
			return o.finish(state, profile, StatusTTLExpired), nil
		}

		var results []map[string]any
		if err := enforceTransition(ctx, aeonerrors.TransitionBToC, func(ctx context.Context) error {
			results = o.runPhaseCExecute(ctx, state)
			return nil
		}); err != nil {
			return Result{}, err
		}
		state.RecordPass(pass, "C")

		eval := o.runPhaseCEvaluate(ctx, state.Plan, results)
		if eval.Converged {
			return o.finish(state, profile, StatusConverged), nil
		}

		if state.TTLRemaining <= 0 {
			return o.finish(state, profile, StatusTTLExpired), nil
		}

		var refined bool
		err = enforceTransition(ctx, aeonerrors.TransitionCToD, func(ctx context.Context) error {
			ok, updated := o.runPhaseCRefine(ctx, state.Plan, eval.Report, eval.Assessment.ReasonCodes)
			refined = ok
			state.Plan = updated
			return nil
		})
		if err != nil {
			return Result{}, err
		}

		clarity := clarityStatesForSteps(results)
		var fired bool
		err = enforceTransition(ctx, aeonerrors.TransitionDToNext, func(ctx context.Context) error {
			newProfile, newTTL, ok := o.runPhaseD(ctx, profile, eval.Assessment, eval.Report, clarity, state.TTLRemaining)
			fired = ok
			if ok {
				profile = newProfile
				state.TTLRemaining = newTTL
			}
			return nil
		})
		if err != nil {
			return Result{}, err
		}

		if !refined && !fired {
			o.logger.Warnf("phase C/D: pass %d produced neither refinement nor a profile update, stopping", pass)
			return o.finish(state, profile, StatusMaxPassesReached), nil
		}
	}

	return o.finish(state, profile, StatusMaxPassesReached), nil
}

func (o *Orchestrator) finish(state *model.OrchestrationState, profile model.TaskProfile, status string) Result {
	return Result{
		CorrelationID:    state.CorrelationID,
		Status:           status,
		FinalPlan:        state.Plan,
		Profile:          profile,
		TTLRemaining:     state.TTLRemaining,
		ExecutionHistory: state.ExecutionPasses,
	}
}

// refine applies a batch of refinement actions, returning the plan
// unchanged on any failure per the all-or-nothing contract.
func (o *Orchestrator) refine(plan *model.Plan, actions []model.RefinementAction) (bool, *model.Plan, error) {
	return refinement.ApplyActions(plan, actions)
}

func planArtifact(plan *model.Plan) map[string]any {
	b, _ := json.Marshal(plan)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

func executionArtifact(plan *model.Plan, executionResults []map[string]any) map[string]any {
	m := planArtifact(plan)
	m["execution_results"] = executionResults
	return m
}

func stepTelemetryRecord(step *model.PlanStep, result map[string]any, ttlRemaining int) telemetry.StepRecord {
	var errs []telemetry.ErrorRecord
	for _, e := range step.Errors {
		errs = append(errs, telemetry.ErrorRecord{Type: "execution_error", Message: e})
	}
	return telemetry.StepRecord{
		StepNumber:   step.StepIndex,
		PlanState:    telemetry.PlanStateSnapshot{Goal: fmt.Sprintf("step %s", step.StepID)},
		LLMOutput:    result["handoff_to_next"],
		TTLRemaining: ttlRemaining,
		Errors:       errs,
	}
}
