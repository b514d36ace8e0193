package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticSource(updates []models.TaskUpdate, err error) updateSource {
	return func(ctx context.Context, send func(models.TaskUpdate) error) error {
		for _, u := range updates {
			if err := send(u); err != nil {
				return err
			}
		}
		return err
	}
}

func TestFollowTask_PlainPrintsEveryUpdate(t *testing.T) {
	row := models.EvaluationRow{RequirementID: "FS-01", Status: models.StatusCompliant}
	updates := []models.TaskUpdate{
		{TaskID: "t1", Status: models.TaskProcessing, Phase: models.PhaseIndexing, Progress: 10, Message: "Indexing document"},
		{TaskID: "t1", Status: models.TaskProcessing, Phase: models.PhaseEvaluating, Progress: 50, LatestRow: &row},
		{TaskID: "t1", Status: models.TaskCompleted, Phase: models.PhaseDone, Progress: 100, Message: "Done", Terminal: true},
	}

	var out bytes.Buffer
	res, err := followTask(context.Background(), "t1", staticSource(updates, nil), followOptions{Out: &out})
	require.NoError(t, err)
	require.NotNil(t, res.Last)
	assert.True(t, res.Last.Terminal)
	assert.False(t, res.Detached)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "processing: Indexing document")
	assert.Contains(t, lines[1], "FS-01")
	assert.Contains(t, lines[1], "Compliant")
	assert.Contains(t, lines[2], "[100%] completed: Done")
}

func TestFollowTask_SourceError(t *testing.T) {
	var out bytes.Buffer
	_, err := followTask(context.Background(), "t1", staticSource(nil, errors.New("connection reset")), followOptions{Out: &out})
	assert.ErrorContains(t, err, "connection reset")
}

func TestFollowTask_CancelledContextIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := func(ctx context.Context, send func(models.TaskUpdate) error) error {
		if err := send(models.TaskUpdate{TaskID: "t1", Status: models.TaskProcessing}); err != nil {
			return err
		}
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := followTask(ctx, "t1", src, followOptions{Out: &out})
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("followTask did not return after cancellation")
	}
}

func TestChecklistIDsTrimsAndDedupes(t *testing.T) {
	assert.Equal(t, []string{"fire-safety", "waste"}, checklistIDs([]string{" fire-safety", "waste", "", "fire-safety "}))
	assert.Empty(t, checklistIDs(nil))
}

func TestPrintTask(t *testing.T) {
	completed := time.Date(2025, 3, 1, 10, 0, 42, 0, time.UTC)
	task := models.Task{
		ID:           "abc12345",
		Status:       models.TaskCompleted,
		Phase:        models.PhaseDone,
		Progress:     100,
		Message:      "Completed",
		DocumentName: "plan.pdf",
		ChecklistIDs: []string{"fire-safety"},
		CreatedAt:    completed.Add(-42 * time.Second),
		CompletedAt:  &completed,
		Rows: []models.EvaluationRow{
			{RequirementID: "FS-01", Status: models.StatusCompliant, EvidencePages: []int{2, 3}, Evidence: "The fire officer is   named\nin section 2."},
			{RequirementID: "FS-02", Status: models.StatusNonCompliant},
		},
		Summary: models.RunSummary{Total: 2, Processed: 2, Compliant: 1, NonCompliant: 1, ComplianceRate: 50},
	}

	var out bytes.Buffer
	printTask(&out, task)
	got := out.String()

	assert.Contains(t, got, "Task: abc12345")
	assert.Contains(t, got, "Checklists: fire-safety")
	assert.Contains(t, got, "Duration: 42s")
	assert.Contains(t, got, "2,3")
	assert.Contains(t, got, "The fire officer is named in section 2.")
	assert.Contains(t, got, "Checked 2/2 requirements: 1 compliant")
	assert.Contains(t, got, "(50.0% compliant)")
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a b c", clip("a\n b\t c", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
	assert.Equal(t, "ääääääá...", clip("ääääääáááááá", 10))
}

func TestFormatPages(t *testing.T) {
	assert.Equal(t, "-", formatPages(nil))
	assert.Equal(t, "4", formatPages([]int{4}))
	assert.Equal(t, "1,5,9", formatPages([]int{1, 5, 9}))
}

func TestReportTask(t *testing.T) {
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := reportTask(cmd, models.Task{ID: "t1", Status: models.TaskFailed, Error: "checklist not found"}, "")
	assert.ErrorContains(t, err, "task t1 failed: checklist not found")

	out.Reset()
	require.NoError(t, reportTask(cmd, models.Task{ID: "t2", Status: models.TaskCompleted}, "-"))
	assert.True(t, strings.HasPrefix(out.String(), "{"), "JSON only on stdout")
	assert.Contains(t, out.String(), `"task_id": "t2"`)
}
