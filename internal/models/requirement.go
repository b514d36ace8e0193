package models

// Requirement is one fixed checklist item. It is loaded once per run and
// never mutated afterwards.
type Requirement struct {
	ID               string   `json:"id" yaml:"id"`
	Text             string   `json:"requirement" yaml:"requirement"`
	RegulationSource string   `json:"regulation_source" yaml:"regulation_source"`
	Category         string   `json:"category" yaml:"category"`
	Severity         string   `json:"severity" yaml:"severity"`
	ExpectedFields   []string `json:"expected_fields" yaml:"expected_fields"`
	CheckType        string   `json:"check_type" yaml:"check_type"`
	SearchKeywords   []string `json:"search_keywords" yaml:"search_keywords"`
}

// Checklist is a named, versioned, ordered list of requirements.
type Checklist struct {
	ID           string        `json:"id" yaml:"-"`
	Name         string        `json:"checklist_name" yaml:"checklist_name"`
	Version      string        `json:"version" yaml:"version"`
	ReportTitle  string        `json:"output_report_title,omitempty" yaml:"output_report_title,omitempty"`
	Requirements []Requirement `json:"requirements" yaml:"requirements"`
}

// ChecklistInfo is the catalog listing entry for a checklist.
type ChecklistInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	Requirements int    `json:"requirements"`
}

// Info summarizes the checklist for listings.
func (c Checklist) Info() ChecklistInfo {
	return ChecklistInfo{
		ID:           c.ID,
		Name:         c.Name,
		Version:      c.Version,
		Requirements: len(c.Requirements),
	}
}
