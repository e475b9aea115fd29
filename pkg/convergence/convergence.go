// Package convergence implements the Convergence Engine: LM-assisted
// scoring gated by configurable thresholds on completeness and coherence,
// plus the requirement that every cross-artifact consistency flag is
// aligned.
package convergence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
)

// errUnexpectedScoring marks a score() failure that happened after a
// successful LM call (response parsing or range validation), as opposed to
// the adapter call itself failing.
var errUnexpectedScoring = errors.New("unexpected_error")

// Criteria are the thresholds gating convergence. Defaults per spec.md
// section 4.3. Assess reads only CompletenessThreshold and
// CoherenceThreshold; consistency is decided by ConsistencyStatus.AllAligned
// and ConsistencyThreshold is not consulted.
type Criteria struct {
	CompletenessThreshold float64
	CoherenceThreshold    float64
	ConsistencyThreshold  float64
}

// DefaultCriteria returns the spec's default thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		CompletenessThreshold: 0.95,
		CoherenceThreshold:    0.90,
		ConsistencyThreshold:  0.90,
	}
}

// Engine scores plan/execution state via the LM and applies threshold
// gates to decide convergence.
type Engine struct {
	adapter  llmadapter.LLMAdapter
	logger   logging.ExtendedLogger
	criteria Criteria
}

// New constructs a convergence Engine. criteria is DefaultCriteria() if the
// zero value is passed.
func New(adapter llmadapter.LLMAdapter, logger logging.ExtendedLogger, criteria Criteria) *Engine {
	if logger == nil {
		logger = logging.NewNoop()
	}
	if criteria == (Criteria{}) {
		criteria = DefaultCriteria()
	}
	return &Engine{adapter: adapter, logger: logger, criteria: criteria}
}

type llmScores struct {
	CompletenessScore float64                  `json:"completeness_score"`
	CoherenceScore    float64                  `json:"coherence_score"`
	ConsistencyStatus model.ConsistencyStatus  `json:"consistency_status"`
	DetectedIssues    []string                 `json:"detected_issues"`
}

// Assess scores the current plan state, execution results, and semantic
// validation report, then applies the configured thresholds.
func (e *Engine) Assess(ctx context.Context, plan *model.Plan, executionResults []map[string]any, report model.SemanticValidationReport, customCriteria *Criteria) model.ConvergenceAssessment {
	criteria := e.criteria
	if customCriteria != nil {
		criteria = *customCriteria
	}

	scores, err := e.score(ctx, plan, executionResults, report)
	if err != nil {
		reason := "llm_assessment_failed"
		if errors.Is(err, errUnexpectedScoring) {
			reason = "unexpected_error"
		}
		e.logger.Warnf("convergence engine: assessment failed (%s): %v", reason, err)
		return model.ConvergenceAssessment{
			Converged:         false,
			ReasonCodes:       []string{reason},
			CompletenessScore: 0.0,
			CoherenceScore:    0.0,
			Metadata:          metadata(report),
		}
	}

	var reasonCodes []string
	if scores.CompletenessScore < criteria.CompletenessThreshold {
		reasonCodes = append(reasonCodes, "completeness_below_threshold")
	}
	if scores.CoherenceScore < criteria.CoherenceThreshold {
		reasonCodes = append(reasonCodes, "coherence_below_threshold")
	}
	if !scores.ConsistencyStatus.AllAligned() {
		reasonCodes = append(reasonCodes, "consistency_not_aligned")
		if scores.CompletenessScore >= criteria.CompletenessThreshold && scores.CoherenceScore >= criteria.CoherenceThreshold {
			reasonCodes = append(reasonCodes, "consistency_conflict")
		}
	}

	converged := len(reasonCodes) == 0
	return model.ConvergenceAssessment{
		Converged:         converged,
		ReasonCodes:       reasonCodes,
		CompletenessScore: scores.CompletenessScore,
		CoherenceScore:    scores.CoherenceScore,
		ConsistencyStatus: scores.ConsistencyStatus,
		DetectedIssues:    scores.DetectedIssues,
		Metadata:          metadata(report),
	}
}

func metadata(report model.SemanticValidationReport) map[string]any {
	return map[string]any{
		"validation_issue_count": len(report.Issues),
		"max_severity":           string(report.MaxSeverity()),
	}
}

func (e *Engine) score(ctx context.Context, plan *model.Plan, executionResults []map[string]any, report model.SemanticValidationReport) (llmScores, error) {
	if e.adapter == nil {
		return llmScores{}, fmt.Errorf("no llm adapter configured")
	}

	planJSON, _ := json.Marshal(plan)
	resultsJSON, _ := json.Marshal(executionResults)
	reportJSON, _ := json.Marshal(report)

	prompt := fmt.Sprintf(
		"Score convergence of this multi-step execution. Respond with JSON: "+
			"{\"completeness_score\": 0.0-1.0, \"coherence_score\": 0.0-1.0, "+
			"\"consistency_status\": {\"plan_aligned\": bool, \"step_aligned\": bool, \"answer_aligned\": bool, \"memory_aligned\": bool}, "+
			"\"detected_issues\": [string]}.\n\nPlan:\n%s\n\nExecution results:\n%s\n\nValidation report:\n%s",
		string(planJSON), string(resultsJSON), string(reportJSON),
	)

	resp, err := e.adapter.Generate(ctx, prompt, convergenceSystemPrompt, 1024, 0.0)
	if err != nil {
		return llmScores{}, err
	}

	var scores llmScores
	if err := json.Unmarshal([]byte(resp.Text), &scores); err != nil {
		return llmScores{}, fmt.Errorf("%w: %v", errUnexpectedScoring, err)
	}
	if scores.CompletenessScore < 0 || scores.CompletenessScore > 1 || scores.CoherenceScore < 0 || scores.CoherenceScore > 1 {
		return llmScores{}, fmt.Errorf("%w: scores out of range", errUnexpectedScoring)
	}
	return scores, nil
}

const convergenceSystemPrompt = "You are a strict evaluator of multi-step task execution. " +
	"Score conservatively: only claim alignment when you are confident."
