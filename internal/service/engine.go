package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
)

// ChecklistSource supplies the requirements for one run.
type ChecklistSource interface {
	Load() ([]models.Requirement, error)
}

// CancelToken is a cooperative cancellation flag checked before each
// requirement. The zero value is ready to use.
type CancelToken struct {
	flag atomic.Bool
}

// Cancel requests cancellation.
func (t *CancelToken) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (t *CancelToken) Cancelled() bool {
	return t != nil && t.flag.Load()
}

// ProgressEvent is emitted after every evaluated requirement.
type ProgressEvent struct {
	Processed int
	Total     int
	Progress  int
	Row       models.EvaluationRow
	Summary   models.RunSummary
	Message   string
}

// Observer receives run progress. Calls are made from the run's goroutine
// and must not block for long.
type Observer interface {
	PhaseChanged(phase models.Phase, message string)
	RowEvaluated(ev ProgressEvent)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) PhaseChanged(models.Phase, string) {}
func (NopObserver) RowEvaluated(ProgressEvent)        {}

// RunInput is what one compliance check operates on.
type RunInput struct {
	Document  parser.Document
	Checklist ChecklistSource
}

// RunResult is the outcome of Engine.Run. Rows holds whatever was evaluated
// before the run ended, also for cancelled and failed runs.
type RunResult struct {
	Rows      []models.EvaluationRow
	Summary   models.RunSummary
	Cancelled bool
	Index     index.Stats
}

// Runner executes a compliance check.
type Runner interface {
	Run(ctx context.Context, in RunInput, token *CancelToken, obs Observer) (RunResult, error)
}

// EngineOptions configures an Engine. Zero values fall back to defaults,
// except MaxConsecutiveFailures where 0 disables the limit.
type EngineOptions struct {
	RetrievalK             int
	MaxConsecutiveFailures int
	Retry                  llm.RetryPolicy
	Metrics                *metrics.Collector
	Logger                 *slog.Logger
}

// Engine runs a checklist against a document: index once, then retrieve
// and evaluate each requirement in checklist order.
type Engine struct {
	builder        *index.Builder
	evaluator      *Evaluator
	k              int
	maxConsecutive int
	retry          llm.RetryPolicy
	metrics        *metrics.Collector
	logger         *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(builder *index.Builder, evaluator *Evaluator, opts EngineOptions) *Engine {
	e := &Engine{
		builder:        builder,
		evaluator:      evaluator,
		k:              opts.RetrievalK,
		maxConsecutive: opts.MaxConsecutiveFailures,
		retry:          opts.Retry,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}
	if e.k <= 0 {
		e.k = index.DefaultK
	}
	if e.maxConsecutive < 0 {
		e.maxConsecutive = 0
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Run executes the checklist. Cancellation, through token or ctx, is not an
// error: the result comes back with Cancelled set and the rows produced so
// far. Loading the checklist, indexing and a reasoning outage are errors.
func (e *Engine) Run(ctx context.Context, in RunInput, token *CancelToken, obs Observer) (RunResult, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	stopped := func() bool { return token.Cancelled() || ctx.Err() != nil }
	start := time.Now()

	obs.PhaseChanged(models.PhaseIndexing, "Loading checklist")
	reqs, err := in.Checklist.Load()
	if err != nil {
		return RunResult{}, fmt.Errorf("load checklist: %w", err)
	}
	if len(reqs) == 0 {
		return RunResult{}, ErrEmptyChecklist
	}
	total := len(reqs)

	if stopped() {
		return RunResult{Cancelled: true, Summary: models.Summarize(nil, total)}, nil
	}

	obs.PhaseChanged(models.PhaseIndexing, fmt.Sprintf("Indexing %s", in.Document.Name))
	ix, err := e.builder.Build(ctx, in.Document)
	if err != nil {
		if stopped() {
			return RunResult{Cancelled: true, Summary: models.Summarize(nil, total)}, nil
		}
		return RunResult{Summary: models.Summarize(nil, total)}, fmt.Errorf("index document: %w", err)
	}
	stats := ix.Stats()

	msg := fmt.Sprintf("Indexed %d pages into %d chunks", stats.Pages, stats.Chunks)
	if stats.Dropped > 0 {
		msg += fmt.Sprintf(" (%d dropped)", stats.Dropped)
	}
	obs.PhaseChanged(models.PhaseEvaluating, msg)
	e.logger.Info("evaluating checklist", "document", in.Document.Name, "requirements", total,
		"pages", stats.Pages, "chunks", stats.Chunks)

	retriever := index.NewRetriever(ix, e.builder.Embedder(), e.retry, e.metrics)
	rows := make([]models.EvaluationRow, 0, total)
	result := func(cancelled bool) RunResult {
		return RunResult{Rows: rows, Summary: models.Summarize(rows, total), Cancelled: cancelled, Index: stats}
	}

	consecutive := 0
	for i, req := range reqs {
		if stopped() {
			e.logger.Info("run cancelled", "document", in.Document.Name, "processed", len(rows), "total", total)
			return result(true), nil
		}

		row, err := e.evaluate(ctx, retriever, req, total)
		if err != nil && ctx.Err() != nil {
			// Shutdown interrupted the call; the row only reflects that.
			return result(true), nil
		}

		rows = append(rows, row)
		e.metrics.RecordVerdict(string(row.Status))
		if err != nil {
			consecutive++
		} else {
			consecutive = 0
		}

		obs.RowEvaluated(ProgressEvent{
			Processed: i + 1,
			Total:     total,
			Progress:  (i + 1) * 100 / total,
			Row:       row,
			Summary:   models.Summarize(rows, total),
			Message:   fmt.Sprintf("Checked requirement %d/%d: %s", i+1, total, req.ID),
		})

		if e.maxConsecutive > 0 && consecutive >= e.maxConsecutive {
			return result(false), fmt.Errorf("%w: %d consecutive requirements failed, last: %w",
				ErrReasoningUnavailable, consecutive, err)
		}
	}

	obs.PhaseChanged(models.PhaseAggregating, "Aggregating results")
	res := result(false)
	e.logger.Info("run complete", "document", in.Document.Name, "requirements", total,
		"compliant", res.Summary.Compliant, "non_compliant", res.Summary.NonCompliant,
		"partially_compliant", res.Summary.PartiallyCompliant, "error", res.Summary.Error,
		"duration_ms", time.Since(start).Milliseconds())
	obs.PhaseChanged(models.PhaseDone, fmt.Sprintf("Checked %d requirements", total))
	return res, nil
}

// evaluate retrieves context for req and evaluates it. Retrieval failures
// are contained as Error rows.
func (e *Engine) evaluate(ctx context.Context, r *index.Retriever, req models.Requirement, total int) (models.EvaluationRow, error) {
	matches, err := r.Retrieve(ctx, BuildQuery(req), e.k)
	if err != nil {
		e.logger.Warn("retrieval failed", "requirement_id", req.ID, "error", err)
		return models.ErrorRow(req, "Retrieval failed: "+err.Error()), &EvaluationError{RequirementID: req.ID, Err: err}
	}
	return e.evaluator.Evaluate(ctx, req, total, matches)
}
