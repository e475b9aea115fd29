// Package validator implements the Semantic Validator: structural checks
// run first and always, followed by an LM advisory check that degrades
// silently on failure.
package validator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/brbuxton/aeon/internal/logging"
	"github.com/brbuxton/aeon/pkg/llmadapter"
	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/supervisor"
	"github.com/brbuxton/aeon/pkg/toolregistry"
)

// Validator runs structural and LM-advisory semantic checks against an
// artifact.
type Validator struct {
	adapter      llmadapter.LLMAdapter
	supervisor   *supervisor.Supervisor
	toolRegistry toolregistry.ToolRegistry
	logger       logging.ExtendedLogger
}

// New constructs a Validator. toolRegistry may be nil (hallucination
// checks are then skipped).
func New(adapter llmadapter.LLMAdapter, toolRegistry toolregistry.ToolRegistry, logger logging.ExtendedLogger) *Validator {
	if logger == nil {
		logger = logging.NewNoop()
	}
	return &Validator{
		adapter:      adapter,
		supervisor:   supervisor.New(adapter, logger, supervisor.DefaultMaxAttempts),
		toolRegistry: toolRegistry,
		logger:       logger,
	}
}

// Validate runs structural checks first, then an LM advisory pass keyed by
// artifactType. LM failures degrade silently: the returned report then
// contains only structural issues.
func (v *Validator) Validate(ctx context.Context, artifact map[string]any, artifactType model.ArtifactType) model.SemanticValidationReport {
	report := model.SemanticValidationReport{
		ValidationID: uuid.NewString(),
		ArtifactType: artifactType,
	}

	report.Issues = append(report.Issues, checkPlanStructure(artifact, artifactType)...)
	report.Issues = append(report.Issues, v.checkToolReferences(ctx, artifact, artifactType)...)

	advisory, err := v.runAdvisoryCheck(ctx, artifact, artifactType)
	if err != nil {
		v.logger.Warnf("semantic validator: advisory check degraded: %v", err)
		return report
	}
	report.Issues = append(report.Issues, advisory...)
	return report
}

// advisoryResponse is the shape the LM is asked to produce for its
// advisory pass.
type advisoryResponse struct {
	Issues []advisoryIssue `json:"issues"`
}

type advisoryIssue struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Location       string `json:"location,omitempty"`
	ProposedRepair string `json:"proposed_repair,omitempty"`
}

func (v *Validator) runAdvisoryCheck(ctx context.Context, artifact map[string]any, artifactType model.ArtifactType) ([]model.ValidationIssue, error) {
	if v.adapter == nil {
		return nil, fmt.Errorf("no llm adapter configured")
	}
	artifactJSON, err := json.Marshal(artifact)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Review this %s artifact for specificity, relevance, do/say mismatch, and consistency issues. "+
			"Respond with JSON: {\"issues\": [{\"type\": one of specificity|relevance|consistency|hallucination|do_say_mismatch, "+
			"\"severity\": one of LOW|MEDIUM|HIGH|CRITICAL, \"description\": string, \"location\": string, \"proposed_repair\": string}]}. "+
			"Artifact:\n%s", artifactType, string(artifactJSON))

	resp, err := v.adapter.Generate(ctx, prompt, advisorySystemPrompt, 2048, 0.2)
	if err != nil {
		return nil, err
	}

	var parsed advisoryResponse
	if jsonErr := json.Unmarshal([]byte(resp.Text), &parsed); jsonErr != nil {
		repaired, repairErr := v.supervisor.RepairJSON(ctx, resp.Text, advisorySchemaHint)
		if repairErr != nil {
			return nil, repairErr
		}
		b, _ := json.Marshal(repaired)
		if err := json.Unmarshal(b, &parsed); err != nil {
			return nil, err
		}
	}

	issues := make([]model.ValidationIssue, 0, len(parsed.Issues))
	for _, iss := range parsed.Issues {
		issues = append(issues, model.ValidationIssue{
			IssueID:        uuid.NewString(),
			Type:           model.IssueType(iss.Type),
			Severity:       model.Severity(iss.Severity),
			Description:    iss.Description,
			Location:       iss.Location,
			ProposedRepair: iss.ProposedRepair,
		})
	}
	return issues, nil
}

const advisorySystemPrompt = "You are a meticulous QA reviewer for an automated planning system. " +
	"Only report real issues; an empty issues array is a valid answer."

const advisorySchemaHint = `{"issues":[{"type":"string","severity":"string","description":"string"}]}`
