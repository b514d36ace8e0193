package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/complycheck/internal/config"
	"github.com/raphaelgruber/complycheck/internal/index"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/service"
	"github.com/raphaelgruber/complycheck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, a *App, id string) models.Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ch, err := a.Tasks.Subscribe(ctx, id)
	require.NoError(t, err)
	for range ch {
	}
	task, err := a.Tasks.Get(id)
	require.NoError(t, err)
	require.True(t, task.Status.Terminal(), "task still %s", task.Status)
	return task
}

func TestAssemble_RunsCatalogChecklist(t *testing.T) {
	cfg := testutil.Config(t)
	mem, err := index.NewMemoryCache(2)
	require.NoError(t, err)
	embedder := testutil.NewHashEmbedder()
	reasoner := &testutil.ScriptedReasoner{
		Respond: func(prompt string, _ int) (string, error) {
			if strings.Contains(prompt, "REQUIREMENT ID: FS-03 ") {
				return testutil.Verdict("Non-Compliant", "Not found", nil, "Ballast water is not mentioned."), nil
			}
			return testutil.Verdict("Compliant", "Jane Doe", []int{2}, "Named on page 2."), nil
		},
	}

	a := Assemble(cfg, Components{Embedder: embedder, Reasoner: reasoner, Store: mem}, metrics.NewCollector(), config.DiscardLogger())
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	submit := func() models.Task {
		task, err := a.Tasks.Submit(context.Background(), service.SubmitRequest{
			DocumentName: "plan.txt",
			Document:     testutil.RecyclingPlan(),
			ChecklistIDs: []string{"fire-safety", "waste"},
			Checklist:    a.Catalog.Source("fire-safety", "waste"),
		})
		require.NoError(t, err)
		return waitDone(t, a, task.ID)
	}

	first := submit()
	require.Equal(t, models.TaskCompleted, first.Status, first.Error)
	ids := make([]string, len(first.Rows))
	for i, r := range first.Rows {
		ids[i] = r.RequirementID
	}
	assert.Equal(t, []string{"FS-01", "FS-02", "FS-03", "WH-01"}, ids)
	assert.Equal(t, 3, first.Summary.Compliant)
	assert.Equal(t, 1, first.Summary.NonCompliant)

	stored, err := a.Results.Load(first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Summary, stored.Summary)

	batchBefore, _ := embedder.Calls()
	second := submit()
	require.Equal(t, models.TaskCompleted, second.Status)
	batchAfter, _ := embedder.Calls()
	assert.Equal(t, batchBefore, batchAfter, "second run should reuse the cached index")
	assert.Equal(t, 1, mem.Len())
}

func TestAssemble_UnknownChecklistFailsTask(t *testing.T) {
	cfg := testutil.Config(t)
	a := Assemble(cfg, Components{Embedder: testutil.NewHashEmbedder(), Reasoner: &testutil.ScriptedReasoner{}}, nil, config.DiscardLogger())
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	task, err := a.Tasks.Submit(context.Background(), service.SubmitRequest{
		DocumentName: "plan.txt",
		Document:     testutil.RecyclingPlan(),
		Checklist:    a.Catalog.Source("missing"),
	})
	require.NoError(t, err)

	done := waitDone(t, a, task.ID)
	assert.Equal(t, models.TaskFailed, done.Status)
	assert.Contains(t, done.Error, "checklist not found")
}

func TestAssemble_EmbedderDownFailsAtIndexing(t *testing.T) {
	cfg := testutil.Config(t)
	embedder := &testutil.HashEmbedder{Dim: 16, FailWhen: func(string) error { return errors.New("connection refused") }}
	a := Assemble(cfg, Components{Embedder: embedder, Reasoner: &testutil.ScriptedReasoner{}}, nil, config.DiscardLogger())
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	task, err := a.Tasks.Submit(context.Background(), service.SubmitRequest{
		DocumentName: "plan.txt",
		Document:     testutil.RecyclingPlan(),
		Checklist:    a.Catalog.Source("fire-safety"),
	})
	require.NoError(t, err)

	done := waitDone(t, a, task.ID)
	assert.Equal(t, models.TaskFailed, done.Status)
	assert.Equal(t, models.PhaseIndexing, done.Phase)
	assert.Contains(t, done.Error, index.ErrNoEmbeddings.Error())
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testutil.Config(t)
	cfg.ChunkOverlap = cfg.ChunkSize

	_, err := New(context.Background(), cfg, config.DiscardLogger())
	assert.ErrorContains(t, err, "invalid config")
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, time.Duration(0), janitorInterval(0))
	assert.Equal(t, 15*time.Second, janitorInterval(time.Minute))
	assert.Equal(t, time.Minute, janitorInterval(time.Hour))
}

func TestPDFExtractorChoice(t *testing.T) {
	assert.Equal(t, parser.PDFExtractor{}, pdfExtractor(""))

	ext, ok := pdfExtractor("/opt/poppler/bin/pdftotext").(*parser.PDFToTextExtractor)
	require.True(t, ok)
	assert.Equal(t, "/opt/poppler/bin/pdftotext", ext.Binary)
	assert.Equal(t, parser.PDFExtractor{}, ext.Fallback)
}

func TestWipeData_WithoutDatabase(t *testing.T) {
	a := Assemble(testutil.Config(t), Components{
		Embedder: testutil.NewHashEmbedder(),
		Reasoner: &testutil.ScriptedReasoner{},
	}, nil, config.DiscardLogger())
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.NoError(t, a.WipeData(context.Background()))
}
