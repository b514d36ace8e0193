package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/raphaelgruber/complycheck/internal/models"
)

const evidenceWidth = 60

// printTask writes a task's header, verdict table and summary.
func printTask(w io.Writer, t models.Task) {
	fmt.Fprintf(w, "Task: %s\n", t.ID)
	fmt.Fprintf(w, "  Document: %s\n", t.DocumentName)
	if len(t.ChecklistIDs) > 0 {
		fmt.Fprintf(w, "  Checklists: %s\n", strings.Join(t.ChecklistIDs, ", "))
	}
	fmt.Fprintf(w, "  Status: %s (%s, %d%%)\n", t.Status, t.Phase, t.Progress)
	fmt.Fprintf(w, "  Message: %s\n", t.Message)
	fmt.Fprintf(w, "  Created: %s\n", t.CreatedAt.Format(time.RFC3339))
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed: %s\n", t.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "  Duration: %s\n", t.CompletedAt.Sub(t.CreatedAt).Round(time.Second))
	}
	if t.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", t.Error)
	}

	if len(t.Rows) > 0 {
		fmt.Fprintln(w)
		printRows(w, t.Rows)
	}
	fmt.Fprintln(w)
	printSummary(w, t.Summary)
}

// printRows writes the verdict table.
func printRows(w io.Writer, rows []models.EvaluationRow) {
	fmt.Fprintf(w, "%-12s %-20s %-10s %s\n", "ID", "STATUS", "PAGES", "EVIDENCE")
	fmt.Fprintln(w, strings.Repeat("-", 104))
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s %-20s %-10s %s\n", r.RequirementID, r.Status, formatPages(r.EvidencePages), clip(r.Evidence, evidenceWidth))
	}
}

func printSummary(w io.Writer, s models.RunSummary) {
	fmt.Fprintf(w, "Checked %d/%d requirements: %d compliant, %d partially compliant, %d non-compliant, %d errors (%.1f%% compliant)\n",
		s.Processed, s.Total, s.Compliant, s.PartiallyCompliant, s.NonCompliant, s.Error, s.ComplianceRate)
}

// printTaskList writes one line per task.
func printTaskList(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found")
		return
	}
	fmt.Fprintf(w, "%-10s %-11s %-12s %-9s %-8s %s\n", "ID", "STATUS", "PHASE", "PROGRESS", "CREATED", "DOCUMENT")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, t := range tasks {
		fmt.Fprintf(w, "%-10s %-11s %-12s %-9s %-8s %s\n",
			t.ID, t.Status, t.Phase, fmt.Sprintf("%d%%", t.Progress), t.CreatedAt.Format("15:04:05"), t.DocumentName)
	}
}

// printChecklists writes one line per checklist.
func printChecklists(w io.Writer, infos []models.ChecklistInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No checklists found")
		return
	}
	fmt.Fprintf(w, "%-24s %-8s %-6s %s\n", "ID", "VERSION", "ITEMS", "NAME")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, c := range infos {
		fmt.Fprintf(w, "%-24s %-8s %-6d %s\n", c.ID, c.Version, c.Requirements, c.Name)
	}
}

// writeJSON writes v as indented JSON to path, or to w when path is "-".
func writeJSON(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "-"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// clip shortens s to n runes on a single line.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
