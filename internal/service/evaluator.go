package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/models"
)

// Reasoner produces a text completion. schemaHint is sent as the system
// message and asks for JSON output.
type Reasoner interface {
	Complete(ctx context.Context, prompt, schemaHint string) (string, error)
}

const (
	notFound        = "Not found"
	evidenceSnippet = 120
	maxRawRemarks   = 500
)

// Evaluator judges one requirement against retrieved excerpts.
type Evaluator struct {
	reasoner Reasoner
	retry    llm.RetryPolicy
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator. A zero retry policy uses the default.
func NewEvaluator(reasoner Reasoner, retry llm.RetryPolicy, logger *slog.Logger) *Evaluator {
	if retry.MaxAttempts <= 0 {
		retry = llm.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{reasoner: reasoner, retry: retry, logger: logger}
}

// Evaluate asks the reasoner for a verdict on req. total is the number of
// requirements in the run and only appears in the prompt.
//
// The returned row is always usable. A non-nil error means the row was
// downgraded to Error because the reasoning call failed after retries or
// ctx ended; a response that cannot be parsed yields an Error row with a
// nil error.
func (e *Evaluator) Evaluate(ctx context.Context, req models.Requirement, total int, matches []index.Match) (models.EvaluationRow, error) {
	prompt := buildPrompt(req, total, matches)

	raw, err := llm.Retry(ctx, e.retry, "reasoning", func(ctx context.Context) (string, error) {
		return e.reasoner.Complete(ctx, prompt, systemPrompt)
	})
	if err != nil {
		remarks := "Reasoning failed: " + err.Error()
		if ctx.Err() != nil {
			remarks = "Evaluation interrupted: " + ctx.Err().Error()
		}
		e.logger.Warn("requirement downgraded to error", "requirement_id", req.ID, "error", err)
		return models.ErrorRow(req, remarks), &EvaluationError{RequirementID: req.ID, Err: err}
	}

	row, err := parseVerdict(req, raw, matches)
	if err != nil {
		e.logger.Warn("unparseable verdict", "requirement_id", req.ID, "error", err)
		return models.ErrorRow(req, "Could not parse model response: "+truncate(raw, maxRawRemarks)), nil
	}
	return row, nil
}

// verdictFields are the keys every response must carry.
var verdictFields = []string{"status", "evidence", "evidence_pages", "remarks"}

func parseVerdict(req models.Requirement, raw string, matches []index.Match) (models.EvaluationRow, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &fields); err != nil {
		return models.EvaluationRow{}, fmt.Errorf("decode response: %w", err)
	}
	for _, f := range verdictFields {
		if _, ok := fields[f]; !ok {
			return models.EvaluationRow{}, fmt.Errorf("missing field %q", f)
		}
	}

	var statusText, evidence, remarks string
	if err := json.Unmarshal(fields["status"], &statusText); err != nil {
		return models.EvaluationRow{}, fmt.Errorf("status: %w", err)
	}
	if err := json.Unmarshal(fields["evidence"], &evidence); err != nil {
		return models.EvaluationRow{}, fmt.Errorf("evidence: %w", err)
	}
	if err := json.Unmarshal(fields["remarks"], &remarks); err != nil {
		return models.EvaluationRow{}, fmt.Errorf("remarks: %w", err)
	}
	var rawPages []any
	if err := json.Unmarshal(fields["evidence_pages"], &rawPages); err != nil {
		return models.EvaluationRow{}, errors.New("evidence_pages must be a list")
	}

	status, err := models.ParseStatus(statusText)
	if err != nil {
		return models.EvaluationRow{}, err
	}

	row := models.NewRow(req)
	row.Status = status
	row.Evidence = strings.TrimSpace(evidence)
	row.Remarks = strings.TrimSpace(remarks)
	if row.Evidence == "" {
		row.Evidence = notFound
	}

	cited := normalizePages(rawPages)
	pages := cited
	if len(pages) == 0 && !strings.EqualFold(row.Evidence, notFound) {
		pages = locateEvidence(row.Evidence, matches)
	}
	row.EvidencePages = pages

	if len(pages) > 0 && !strings.Contains(strings.ToLower(row.Remarks), "page") {
		row.Remarks = appendSentence(row.Remarks, "Found on page(s): "+joinInts(pages)+".")
	}
	if outside := pagesOutside(cited, matches); len(outside) > 0 {
		row.Remarks = appendSentence(row.Remarks, "Cited page(s) "+joinInts(outside)+" not in retrieved context.")
	}
	return row, nil
}

// normalizePages converts model-supplied page values to sorted, unique,
// positive integers. Values that are not whole numbers are ignored.
func normalizePages(values []any) []int {
	pages := []int{}
	for _, v := range values {
		var p int
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				continue
			}
			p = int(x)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(x))
			if err != nil {
				continue
			}
			p = n
		default:
			continue
		}
		if p > 0 {
			pages = append(pages, p)
		}
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

// locateEvidence finds the pages of chunks containing the quoted evidence,
// or its leading snippet.
func locateEvidence(evidence string, matches []index.Match) []int {
	snippet := evidence
	if r := []rune(evidence); len(r) > evidenceSnippet {
		snippet = string(r[:evidenceSnippet])
	}

	pages := []int{}
	for _, m := range matches {
		if strings.Contains(m.Chunk.Text, evidence) || strings.Contains(m.Chunk.Text, snippet) {
			for p := m.Chunk.PageStart; p <= m.Chunk.PageEnd; p++ {
				pages = append(pages, p)
			}
		}
	}
	slices.Sort(pages)
	return slices.Compact(pages)
}

func pagesOutside(pages []int, matches []index.Match) []int {
	var outside []int
	for _, p := range pages {
		covered := slices.ContainsFunc(matches, func(m index.Match) bool {
			return m.Chunk.Covers(p)
		})
		if !covered {
			outside = append(outside, p)
		}
	}
	return outside
}

func appendSentence(text, sentence string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return sentence
	}
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text + " " + sentence
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
