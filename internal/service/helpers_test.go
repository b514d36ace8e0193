package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/llm"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/testutil"
	"github.com/stretchr/testify/require"
)

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func newTestEngine(embedder index.Embedder, reasoner Reasoner, opts EngineOptions) *Engine {
	builder := index.NewBuilder(parser.TextExtractor{}, embedder, index.BuilderOptions{
		Chunking:  parser.ChunkConfig{Size: 200, Overlap: 40},
		BatchSize: 4,
		Retry:     fastRetry(),
		Logger:    config.DiscardLogger(),
	})
	evaluator := NewEvaluator(reasoner, fastRetry(), config.DiscardLogger())
	opts.Retry = fastRetry()
	opts.Logger = config.DiscardLogger()
	return NewEngine(builder, evaluator, opts)
}

// recyclingPlan is a four page document with one topic per page.
func recyclingPlan() parser.Document {
	pages := []string{
		"Ship Recycling Plan for MV Example. The plan was prepared by the yard safety department and approved by the competent authority.",
		"Fire safety: the fire safety officer is Jane Doe. Fire extinguishers are inspected weekly and hot work permits are issued daily.",
		"Hazardous materials: the inventory of hazardous materials lists asbestos in the engine room and PCB in cable insulation.",
		"Waste management: bilge water is pumped ashore to a licensed reception facility before cutting starts.",
	}
	return parser.Document{Name: "plan.txt", Data: []byte(strings.Join(pages, "\f"))}
}

func requirement(id, text string, keywords ...string) models.Requirement {
	return models.Requirement{
		ID:               id,
		Text:             text,
		RegulationSource: "Regulation 9",
		Category:         "Safety",
		Severity:         "High",
		ExpectedFields:   []string{"name", "procedure"},
		CheckType:        "presence",
		SearchKeywords:   keywords,
	}
}

func threeRequirements() parser.StaticSource {
	return parser.StaticSource{
		requirement("R1", "The plan must name the fire safety officer", "fire", "officer"),
		requirement("R2", "The plan must include the inventory of hazardous materials", "asbestos", "inventory"),
		requirement("R3", "The plan must describe how ballast water is treated", "ballast", "water"),
	}
}

func manyRequirements(n int) parser.StaticSource {
	reqs := make(parser.StaticSource, n)
	for i := range reqs {
		reqs[i] = requirement(fmt.Sprintf("REQ-%02d", i+1), fmt.Sprintf("Requirement number %d about fire safety", i+1), "fire")
	}
	return reqs
}

// byRequirement answers with verdicts keyed by requirement ID and
// Compliant for everything else.
func byRequirement(verdicts map[string]string) func(string, int) (string, error) {
	return func(prompt string, _ int) (string, error) {
		for id, v := range verdicts {
			if strings.Contains(prompt, "REQUIREMENT ID: "+id+" ") {
				return v, nil
			}
		}
		return testutil.Verdict("Compliant", "The plan was prepared", []int{1}, "Stated on the first page."), nil
	}
}

// recordingObserver stores every event it receives.
type recordingObserver struct {
	phases []models.Phase
	events []ProgressEvent
	onRow  func(ev ProgressEvent)
}

func (o *recordingObserver) PhaseChanged(phase models.Phase, _ string) {
	o.phases = append(o.phases, phase)
}

func (o *recordingObserver) RowEvaluated(ev ProgressEvent) {
	o.events = append(o.events, ev)
	if o.onRow != nil {
		o.onRow(ev)
	}
}

func statuses(rows []models.EvaluationRow) []models.Status {
	out := make([]models.Status, len(rows))
	for i, r := range rows {
		out[i] = r.Status
	}
	return out
}

// waitTerminal follows a task's stream until it ends and returns the final
// snapshot.
func waitTerminal(t *testing.T, m *TaskManager, id string) (models.Task, []models.TaskUpdate) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ch, err := m.Subscribe(ctx, id)
	require.NoError(t, err)

	var updates []models.TaskUpdate
	for u := range ch {
		updates = append(updates, u)
	}
	require.NotEmpty(t, updates)
	require.True(t, updates[len(updates)-1].Terminal, "stream ended without a terminal update")

	task, err := m.Get(id)
	require.NoError(t, err)
	return task, updates
}
