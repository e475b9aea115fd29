// Package depth implements Adaptive Depth: task-profile inference and the
// deterministic TTL allocation/adjustment formulas.
package depth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/supervisor"
)

// AdaptiveDepth infers TaskProfiles via the LM and allocates/adjusts TTL
// deterministically from them.
type AdaptiveDepth struct {
	adapter        llmadapter.LLMAdapter
	supervisor     *supervisor.Supervisor
	logger         logging.ExtendedLogger
	config         model.AdaptiveDepthConfiguration
	globalTTLLimit *int
}

// New constructs an AdaptiveDepth. config defaults to
// model.DefaultAdaptiveDepthConfiguration() when zero.
func New(adapter llmadapter.LLMAdapter, logger logging.ExtendedLogger, config model.AdaptiveDepthConfiguration, globalTTLLimit *int) *AdaptiveDepth {
	if logger == nil {
		logger = logging.NewNoop()
	}
	if config.TTLBaseMultiplier == 0 {
		config = model.DefaultAdaptiveDepthConfiguration()
	}
	return &AdaptiveDepth{
		adapter:        adapter,
		supervisor:     supervisor.New(adapter, logger, supervisor.DefaultMaxAttempts),
		logger:         logger,
		config:         config,
		globalTTLLimit: globalTTLLimit,
	}
}

type profileJSON struct {
	ProfileVersion         int     `json:"profile_version"`
	ReasoningDepth         int     `json:"reasoning_depth"`
	InformationSufficiency float64 `json:"information_sufficiency"`
	ExpectedToolUsage      string  `json:"expected_tool_usage"`
	OutputBreadth          string  `json:"output_breadth"`
	ConfidenceRequirement  string  `json:"confidence_requirement"`
	RawInference           string  `json:"raw_inference"`
}

func (p profileJSON) toModel() model.TaskProfile {
	return model.TaskProfile{
		ProfileVersion:         p.ProfileVersion,
		ReasoningDepth:         p.ReasoningDepth,
		InformationSufficiency: p.InformationSufficiency,
		ExpectedToolUsage:      model.ToolUsage(p.ExpectedToolUsage),
		OutputBreadth:          model.OutputBreadth(p.OutputBreadth),
		ConfidenceRequirement:  model.ConfidenceRequirement(p.ConfidenceRequirement),
		RawInference:           p.RawInference,
	}
}

// InferTaskProfile builds a TaskProfile for the given task via the LM.
// Must never raise to the caller: on any parse/schema failure it tries a
// Supervisor JSON repair once, and on residual failure returns
// model.DefaultTaskProfile().
func (d *AdaptiveDepth) InferTaskProfile(ctx context.Context, task string, taskContext map[string]any) model.TaskProfile {
	if strings.TrimSpace(task) == "" {
		return model.DefaultTaskProfile()
	}
	if d.adapter == nil {
		return model.DefaultTaskProfile()
	}

	prompt := buildProfilePrompt(task, taskContext)
	resp, err := d.adapter.Generate(ctx, prompt, profileSystemPrompt, 2048, 0.7)
	if err != nil {
		d.logger.Warnf("adaptive depth: llm inference failed, using default profile: %v", err)
		return model.DefaultTaskProfile()
	}

	profile, ok := d.parseProfile(ctx, resp.Text)
	if !ok {
		return model.DefaultTaskProfile()
	}

	if profile.InformationSufficiency <= 0 {
		contextText := contextToText(taskContext)
		profile.InformationSufficiency = heuristicSufficiency(contextText, -1)
	}
	if profile.ProfileVersion < 1 {
		profile.ProfileVersion = 1
	}
	if err := profile.Validate(); err != nil {
		d.logger.Warnf("adaptive depth: inferred profile failed validation, using default: %v", err)
		return model.DefaultTaskProfile()
	}
	return profile
}

func (d *AdaptiveDepth) parseProfile(ctx context.Context, text string) (model.TaskProfile, bool) {
	var pj profileJSON
	if err := json.Unmarshal([]byte(text), &pj); err == nil {
		return pj.toModel(), true
	}

	repaired, err := d.supervisor.RepairJSON(ctx, text, taskProfileSchemaHint)
	if err != nil {
		return model.TaskProfile{}, false
	}
	b, _ := json.Marshal(repaired)
	if err := json.Unmarshal(b, &pj); err != nil {
		return model.TaskProfile{}, false
	}
	return pj.toModel(), true
}

// AllocateTTL delegates to the pure formula in ttl.go, capping at the
// instance's global limit when no call-specific limit is given.
func (d *AdaptiveDepth) AllocateTTL(profile model.TaskProfile, limit *int) int {
	if limit == nil {
		limit = d.globalTTLLimit
	}
	return AllocateTTL(profile, d.config, limit)
}

// DefaultTTL returns the configured fallback TTL for inference failure.
func (d *AdaptiveDepth) DefaultTTL() int {
	if d.config.DefaultTTL <= 0 {
		return 10
	}
	return d.config.DefaultTTL
}

// ClarityState is a per-step execution outcome tag.
type ClarityState string

const (
	ClarityClear           ClarityState = "CLEAR"
	ClarityPartiallyClear  ClarityState = "PARTIALLY_CLEAR"
	ClarityBlocked         ClarityState = "BLOCKED"
)

// UpdateTaskProfile re-infers the TaskProfile at a pass boundary. It fires
// only when all three conditions hold: convergence failed, validation
// issues are present, and at least one clarity state is BLOCKED. Falls
// back to (zero TaskProfile, false) — "no update" — on any failure.
func (d *AdaptiveDepth) UpdateTaskProfile(ctx context.Context, current model.TaskProfile, assessment model.ConvergenceAssessment, report model.SemanticValidationReport, clarityStates []ClarityState) (model.TaskProfile, bool) {
	convergenceFailed := !assessment.Converged
	validationIssuesPresent := report.HasIssues()
	blockedPresent := false
	for _, c := range clarityStates {
		if c == ClarityBlocked {
			blockedPresent = true
			break
		}
	}

	if !(convergenceFailed && validationIssuesPresent && blockedPresent) {
		return model.TaskProfile{}, false
	}

	if d.adapter == nil {
		return model.TaskProfile{}, false
	}

	prompt := buildUpdatePrompt(current, assessment, report, clarityStates)
	resp, err := d.adapter.Generate(ctx, prompt, updateProfileSystemPrompt, 2048, 0.7)
	if err != nil {
		d.logger.Warnf("adaptive depth: profile update llm call failed: %v", err)
		return model.TaskProfile{}, false
	}

	profile, ok := d.parseProfile(ctx, resp.Text)
	if !ok {
		return model.TaskProfile{}, false
	}
	profile.ProfileVersion = current.ProfileVersion + 1
	if err := profile.Validate(); err != nil {
		d.logger.Warnf("adaptive depth: updated profile failed validation: %v", err)
		return model.TaskProfile{}, false
	}
	return profile, true
}

func buildProfilePrompt(task string, taskContext map[string]any) string {
	ctxJSON, _ := json.Marshal(taskContext)
	return fmt.Sprintf(
		"Infer a TaskProfile for this request.\n\nDimensions:\n"+
			"- reasoning_depth: integer 1-5\n"+
			"- information_sufficiency: float 0.0-1.0\n"+
			"- expected_tool_usage: one of none, minimal, moderate, extensive\n"+
			"- output_breadth: one of narrow, moderate, broad\n"+
			"- confidence_requirement: one of low, medium, high\n"+
			"- raw_inference: short natural-language rationale (non-empty)\n\n"+
			"Respond with JSON matching schema:\n%s\n\nTask: %s\nContext: %s",
		taskProfileSchemaHint, task, string(ctxJSON),
	)
}

func buildUpdatePrompt(current model.TaskProfile, assessment model.ConvergenceAssessment, report model.SemanticValidationReport, clarityStates []ClarityState) string {
	currentJSON, _ := json.Marshal(current)
	assessmentJSON, _ := json.Marshal(assessment)
	reportJSON, _ := json.Marshal(report)
	return fmt.Sprintf(
		"Re-estimate the TaskProfile given evidence of under-estimated complexity.\n\n"+
			"Current profile: %s\nConvergence assessment: %s\nValidation report: %s\nClarity states: %v\n\n"+
			"Respond with JSON matching schema:\n%s",
		string(currentJSON), string(assessmentJSON), string(reportJSON), clarityStates, taskProfileSchemaHint,
	)
}

func contextToText(taskContext map[string]any) string {
	b, _ := json.Marshal(taskContext)
	return string(b)
}

const profileSystemPrompt = "You infer structured complexity profiles for incoming requests. Always answer with strict JSON, no prose."
const updateProfileSystemPrompt = "You re-estimate a task's complexity profile given evidence the initial estimate was too shallow. Always answer with strict JSON, no prose."
const taskProfileSchemaHint = `{"profile_version":"int","reasoning_depth":"int 1-5","information_sufficiency":"float 0-1","expected_tool_usage":"none|minimal|moderate|extensive","output_breadth":"narrow|moderate|broad","confidence_requirement":"low|medium|high","raw_inference":"string"}`
