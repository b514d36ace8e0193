package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/complycheck/internal/client"
	"github.com/spf13/cobra"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a running task",
	Long: `Ask the server to stop a task. The requirement being evaluated is
finished first; the task then ends as cancelled with the verdicts it has.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}

func runCancel(cmd *cobra.Command, args []string) error {
	id := args[0]
	task, err := apiClient.Cancel(context.Background(), id)
	switch {
	case client.IsNotFound(err):
		return fmt.Errorf("task not found: %s", id)
	case client.IsConflict(err):
		return fmt.Errorf("task %s already finished", id)
	case err != nil:
		return fmt.Errorf("cancel: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for task %s (%s)\n", task.ID, task.Status)
	return nil
}
