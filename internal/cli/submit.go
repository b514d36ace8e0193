package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	submitChecklists []string
	submitWatch      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <document>",
	Short: "Submit a document to the server",
	Long: `Upload a document to a complycheck-server and start a check.

The command prints the task ID and returns. Use --watch to follow the
task until it finishes.

Examples:
  complycheck submit plan.pdf -c fire-safety
  complycheck submit plan.pdf -c fire-safety,waste --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringSliceVarP(&submitChecklists, "checklists", "c", nil, "checklist IDs to check against (required)")
	submitCmd.Flags().BoolVarP(&submitWatch, "watch", "w", false, "follow the task until it finishes")
	submitCmd.Flags().BoolVar(&watchPlain, "plain", false, "with --watch, print progress lines instead of the interactive view")
	_ = submitCmd.MarkFlagRequired("checklists")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ids := checklistIDs(submitChecklists)
	if len(ids) == 0 {
		return errors.New("at least one checklist is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	task, err := apiClient.SubmitFile(ctx, args[0], ids)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Submitted task %s (%s)\n", task.ID, task.DocumentName)
	if !submitWatch {
		fmt.Fprintf(out, "Follow it with: complycheck watch %s\n", task.ID)
		return nil
	}
	return watchTask(ctx, cmd, task.ID)
}
