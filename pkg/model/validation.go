package model

import "fmt"

// IssueType categorizes a ValidationIssue.
type IssueType string

const (
	IssueSpecificity    IssueType = "specificity"
	IssueRelevance      IssueType = "relevance"
	IssueConsistency    IssueType = "consistency"
	IssueHallucination  IssueType = "hallucination"
	IssueDoSayMismatch  IssueType = "do_say_mismatch"
)

// Severity is the severity of a ValidationIssue.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AtLeast reports whether the severity is >= the given floor.
func (s Severity) AtLeast(floor Severity) bool {
	rank := map[Severity]int{SeverityLow: 0, SeverityMedium: 1, SeverityHigh: 2, SeverityCritical: 3}
	return rank[s] >= rank[floor]
}

// ValidationIssue is a single structural or semantic problem found in an
// artifact.
type ValidationIssue struct {
	IssueID        string    `json:"issue_id"`
	Type           IssueType `json:"type"`
	Severity       Severity  `json:"severity"`
	Description    string    `json:"description"`
	Location       string    `json:"location,omitempty"`
	ProposedRepair string    `json:"proposed_repair,omitempty"`
}

// ArtifactType is what a SemanticValidationReport was run against.
type ArtifactType string

const (
	ArtifactPlan              ArtifactType = "plan"
	ArtifactStep              ArtifactType = "step"
	ArtifactExecutionArtifact ArtifactType = "execution_artifact"
	ArtifactCrossPhase        ArtifactType = "cross_phase"
)

func (a ArtifactType) Valid() bool {
	switch a {
	case ArtifactPlan, ArtifactStep, ArtifactExecutionArtifact, ArtifactCrossPhase:
		return true
	default:
		return false
	}
}

// SemanticValidationReport bundles every issue found for one artifact.
type SemanticValidationReport struct {
	ValidationID string            `json:"validation_id"`
	ArtifactType ArtifactType      `json:"artifact_type"`
	Issues       []ValidationIssue `json:"issues"`
}

// HasIssues reports whether the report carries any issue at all.
func (r SemanticValidationReport) HasIssues() bool {
	return len(r.Issues) > 0
}

// MaxSeverity returns the highest severity present, or "" if there are no
// issues.
func (r SemanticValidationReport) MaxSeverity() Severity {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
	present := make(map[Severity]bool, len(r.Issues))
	for _, iss := range r.Issues {
		present[iss.Severity] = true
	}
	for _, s := range order {
		if present[s] {
			return s
		}
	}
	return ""
}

func (a ArtifactType) validateOrErr() error {
	if !a.Valid() {
		return fmt.Errorf("invalid artifact_type %q", a)
	}
	return nil
}
