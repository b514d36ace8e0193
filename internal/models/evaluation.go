package models

import (
	"fmt"
	"strings"
)

// Status is the verdict for one requirement.
type Status string

const (
	StatusCompliant          Status = "Compliant"
	StatusNonCompliant       Status = "Non-Compliant"
	StatusPartiallyCompliant Status = "Partially Compliant"
	StatusError              Status = "Error"
)

// ParseStatus maps a model-produced status string onto a known Status.
// Case, surrounding whitespace and the separator between words are ignored
// ("non_compliant", "NonCompliant" and "non compliant" all parse). Anything
// else is rejected.
func ParseStatus(s string) (Status, error) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))

	switch key {
	case "compliant":
		return StatusCompliant, nil
	case "noncompliant", "notcompliant":
		return StatusNonCompliant, nil
	case "partiallycompliant", "partial":
		return StatusPartiallyCompliant, nil
	case "error":
		return StatusError, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// EvaluationRow is the result for one requirement in one run. Rows are
// appended to a run's row list and never modified afterwards.
type EvaluationRow struct {
	RequirementID    string `json:"requirement_id"`
	RequirementText  string `json:"requirement_text"`
	RegulationSource string `json:"regulation_source,omitempty"`
	Category         string `json:"category,omitempty"`
	Severity         string `json:"severity,omitempty"`
	Evidence         string `json:"evidence"`
	EvidencePages    []int  `json:"evidence_pages"`
	Status           Status `json:"status"`
	Remarks          string `json:"remarks"`
}

// NewRow starts a row for req with the requirement's descriptive fields filled in.
func NewRow(req Requirement) EvaluationRow {
	return EvaluationRow{
		RequirementID:    req.ID,
		RequirementText:  req.Text,
		RegulationSource: req.RegulationSource,
		Category:         req.Category,
		Severity:         req.Severity,
		EvidencePages:    []int{},
	}
}

// ErrorRow builds an Error row for req with the given remarks.
func ErrorRow(req Requirement, remarks string) EvaluationRow {
	row := NewRow(req)
	row.Status = StatusError
	row.Evidence = "Not found"
	row.Remarks = remarks
	return row
}

// RunSummary holds per-status counts derived from a row list.
type RunSummary struct {
	Total              int     `json:"total"`
	Processed          int     `json:"processed"`
	Compliant          int     `json:"compliant"`
	NonCompliant       int     `json:"non_compliant"`
	PartiallyCompliant int     `json:"partially_compliant"`
	Error              int     `json:"error"`
	ComplianceRate     float64 `json:"compliance_rate"`
}

// Summarize recomputes the summary from rows. total is the number of
// requirements in the checklist.
func Summarize(rows []EvaluationRow, total int) RunSummary {
	s := RunSummary{Total: total, Processed: len(rows)}
	for _, r := range rows {
		switch r.Status {
		case StatusCompliant:
			s.Compliant++
		case StatusNonCompliant:
			s.NonCompliant++
		case StatusPartiallyCompliant:
			s.PartiallyCompliant++
		default:
			s.Error++
		}
	}
	if s.Processed > 0 {
		s.ComplianceRate = float64(s.Compliant) / float64(s.Processed) * 100
	}
	return s
}
