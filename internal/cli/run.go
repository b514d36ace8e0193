package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/raphaelgruber/complycheck/internal/app"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
	"github.com/raphaelgruber/complycheck/internal/service"
	"github.com/spf13/cobra"
)

var (
	runChecklists []string
	runOutput     string
	runPlain      bool
)

var runCmd = &cobra.Command{
	Use:   "run <document>",
	Short: "Check a document in this process",
	Long: `Check a document against one or more checklists without a server.

The document is indexed, every requirement is evaluated and the verdict
table is printed when the run ends. Interrupting the command cancels the
run; verdicts reached so far are still printed.

Examples:
  complycheck run plan.pdf -c fire-safety
  complycheck run plan.md -c fire-safety,waste -o report.json
  complycheck run plan.pdf -c waste --plain`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVarP(&runChecklists, "checklists", "c", nil, "checklist IDs to check against (required)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the full result as JSON to this file ('-' for stdout)")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print progress lines instead of the interactive view")
	_ = runCmd.MarkFlagRequired("checklists")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	ids := checklistIDs(runChecklists)
	if len(ids) == 0 {
		return errors.New("at least one checklist is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(sigCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Warn("shutdown failed", "error", err)
		}
	}()

	for _, id := range ids {
		if _, err := a.Catalog.Get(id); err != nil {
			if errors.Is(err, parser.ErrChecklistNotFound) {
				return fmt.Errorf("unknown checklist: %s", id)
			}
			return err
		}
	}

	task, err := a.Tasks.Submit(sigCtx, service.SubmitRequest{
		DocumentName: filepath.Base(path),
		Document:     data,
		ChecklistIDs: ids,
		Checklist:    a.Catalog.Source(ids...),
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	// A signal cancels the task; following continues until it reports
	// the cancellation.
	go func() {
		<-sigCtx.Done()
		_ = a.Tasks.Cancel(task.ID)
	}()

	out := cmd.OutOrStdout()
	res, err := followTask(context.Background(), task.ID, localSource(a.Tasks, task.ID), followOptions{
		Interactive: !runPlain && isTerminal(),
		QuitHint:    "ctrl+c or q cancels the check",
		Out:         out,
	})
	if err != nil {
		return err
	}
	if res.Detached {
		if err := a.Tasks.Cancel(task.ID); err != nil && !errors.Is(err, service.ErrAlreadyFinished) {
			return fmt.Errorf("cancel: %w", err)
		}
		if err := drainUntilTerminal(a.Tasks, task.ID); err != nil {
			return err
		}
	}

	final, err := a.Tasks.Get(task.ID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	return reportTask(cmd, final, runOutput)
}

// drainUntilTerminal blocks until the task's stream closes.
func drainUntilTerminal(m *service.TaskManager, id string) error {
	ch, err := m.Subscribe(context.Background(), id)
	if err != nil {
		return err
	}
	for range ch {
	}
	return nil
}

// reportTask prints a finished task, optionally writes its JSON and turns
// a failed task into an error.
func reportTask(cmd *cobra.Command, t models.Task, output string) error {
	out := cmd.OutOrStdout()
	if output != "-" {
		fmt.Fprintln(out)
		printTask(out, t)
	}
	if output != "" {
		if err := writeJSON(out, output, t); err != nil {
			return err
		}
		if output != "-" {
			fmt.Fprintf(out, "\nResults written to %s\n", output)
		}
	}
	if t.Status == models.TaskFailed {
		return fmt.Errorf("task %s failed: %s", t.ID, t.Error)
	}
	return nil
}

// checklistIDs trims and de-duplicates checklist IDs, keeping their order.
func checklistIDs(raw []string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range raw {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
