package validator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brbuxton/aeon/pkg/model"
	"github.com/brbuxton/aeon/pkg/toolregistry"
)

// checkPlanStructure detects duplicate step_ids and missing required
// fields on plan/step artifacts, independent of LM availability. These
// checks always run first, per the structural-check-precedence law.
func checkPlanStructure(artifact map[string]any, artifactType model.ArtifactType) []model.ValidationIssue {
	var issues []model.ValidationIssue

	switch artifactType {
	case model.ArtifactPlan:
		issues = append(issues, checkPlanDict(artifact)...)
	case model.ArtifactStep:
		issues = append(issues, checkStepDict(artifact, "")...)
	}
	return issues
}

func checkPlanDict(artifact map[string]any) []model.ValidationIssue {
	var issues []model.ValidationIssue

	goal, _ := artifact["goal"].(string)
	if goal == "" {
		issues = append(issues, newIssue(model.IssueConsistency, model.SeverityHigh, "plan is missing a non-empty goal", ""))
	}

	rawSteps, _ := artifact["steps"].([]any)
	if len(rawSteps) == 0 {
		issues = append(issues, newIssue(model.IssueConsistency, model.SeverityCritical, "plan has no steps", ""))
		return issues
	}

	seen := make(map[string]bool, len(rawSteps))
	for i, raw := range rawSteps {
		stepDict, ok := raw.(map[string]any)
		if !ok {
			issues = append(issues, newIssue(model.IssueConsistency, model.SeverityHigh, fmt.Sprintf("step at index %d is not an object", i), ""))
			continue
		}
		location := fmt.Sprintf("steps[%d]", i)
		issues = append(issues, checkStepDict(stepDict, location)...)

		id, _ := stepDict["step_id"].(string)
		if id != "" {
			if seen[id] {
				issues = append(issues, newIssue(model.IssueConsistency, model.SeverityHigh, fmt.Sprintf("duplicate step_id %q", id), location))
			}
			seen[id] = true
		}
	}
	return issues
}

func checkStepDict(step map[string]any, location string) []model.ValidationIssue {
	var issues []model.ValidationIssue

	if id, _ := step["step_id"].(string); id == "" {
		issues = append(issues, newIssue(model.IssueConsistency, model.SeverityHigh, "step is missing step_id", location))
	}
	if desc, _ := step["description"].(string); desc == "" {
		issues = append(issues, newIssue(model.IssueConsistency, model.SeverityHigh, "step is missing description", location))
	}
	return issues
}

// checkToolReferences flags tool names that do not exist in the registry
// as hallucination issues, when a registry is available.
func (v *Validator) checkToolReferences(ctx context.Context, artifact map[string]any, artifactType model.ArtifactType) []model.ValidationIssue {
	if v.toolRegistry == nil {
		return nil
	}
	known, err := v.toolRegistry.ListAll(ctx)
	if err != nil {
		return nil
	}
	knownNames := make(map[string]bool, len(known))
	for _, t := range known {
		knownNames[t.Name] = true
	}

	var issues []model.ValidationIssue
	switch artifactType {
	case model.ArtifactPlan:
		rawSteps, _ := artifact["steps"].([]any)
		for i, raw := range rawSteps {
			stepDict, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			issues = append(issues, checkToolInStep(stepDict, knownNames, fmt.Sprintf("steps[%d]", i), known)...)
		}
	case model.ArtifactStep:
		issues = append(issues, checkToolInStep(artifact, knownNames, "", known)...)
	}
	return issues
}

func checkToolInStep(step map[string]any, knownNames map[string]bool, location string, known []toolregistry.ToolDescriptor) []model.ValidationIssue {
	tool, _ := step["tool"].(string)
	if tool == "" || knownNames[tool] {
		return nil
	}
	return []model.ValidationIssue{
		newIssue(model.IssueHallucination, model.SeverityHigh,
			fmt.Sprintf("step references tool %q which is not in the tool registry", tool), location),
	}
}

func newIssue(t model.IssueType, sev model.Severity, desc, location string) model.ValidationIssue {
	return model.ValidationIssue{
		IssueID:     uuid.NewString(),
		Type:        t,
		Severity:    sev,
		Description: desc,
		Location:    location,
	}
}
