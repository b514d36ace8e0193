package service

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/models"
)

// systemPrompt is sent with every evaluation and switches providers into
// JSON output.
const systemPrompt = "You are a compliance auditor reviewing a document against a fixed checklist. Respond only with valid JSON."

// BuildQuery is the retrieval query for a requirement: its text followed by
// its search keywords.
func BuildQuery(req models.Requirement) string {
	if len(req.SearchKeywords) == 0 {
		return req.Text
	}
	return req.Text + "\nKeywords: " + strings.Join(req.SearchKeywords, ", ")
}

func formatExcerpts(matches []index.Match) string {
	if len(matches) == 0 {
		return "(no excerpts retrieved)"
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = fmt.Sprintf("[Excerpt %d - %s]\n%s", i+1, pageLabel(m.Chunk), m.Chunk.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func pageLabel(c models.Chunk) string {
	if c.PageStart == c.PageEnd {
		return fmt.Sprintf("Page %d", c.PageStart)
	}
	return fmt.Sprintf("Pages %d-%d", c.PageStart, c.PageEnd)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "n/a"
	}
	return s
}

func buildPrompt(req models.Requirement, total int, matches []index.Match) string {
	var b strings.Builder

	b.WriteString("You are checking ONE specific requirement of a compliance checklist.\n\n")
	fmt.Fprintf(&b, "REQUIREMENT ID: %s (out of %d total requirements)\n\n", req.ID, total)
	fmt.Fprintf(&b, "REQUIREMENT:\n%s\n\n", req.Text)

	fields := "n/a"
	if len(req.ExpectedFields) > 0 {
		fields = strings.Join(req.ExpectedFields, ", ")
	}
	fmt.Fprintf(&b, "EXPECTED FIELDS/INFORMATION:\n%s\n\n", fields)
	fmt.Fprintf(&b, "REGULATION SOURCE:\n%s\n\n", orNone(req.RegulationSource))
	fmt.Fprintf(&b, "CHECK TYPE: %s\n", orNone(req.CheckType))
	fmt.Fprintf(&b, "SEVERITY: %s\n\n", orNone(req.Severity))
	fmt.Fprintf(&b, "RELEVANT EXCERPTS FROM THE DOCUMENT:\n%s\n\n", formatExcerpts(matches))

	b.WriteString(`TASK:
Based only on the excerpts above, decide whether this requirement is satisfied by the document.

RESPONSE FORMAT (JSON only):
{
  "status": "Compliant" | "Non-Compliant" | "Partially Compliant",
  "evidence": "<exact quote from the excerpts, or 'Not found'>",
  "evidence_pages": [<page numbers where the evidence was found>],
  "remarks": "<brief explanation of the status, at most 2 sentences>"
}

RULES:
1. "Compliant" = all expected fields/information are present and adequate
2. "Non-Compliant" = required information is missing or inadequate
3. "Partially Compliant" = some but not all expected fields are present, or the information is incomplete
4. If the excerpts do not contain relevant information, set evidence to "Not found" and mark Non-Compliant
5. Evidence must quote exact text from the excerpts or state "Not found"
6. Only cite pages that appear in the excerpt headers

Respond with ONLY the JSON object, no other text.
`)
	return b.String()
}
