package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/complycheck/internal/client"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/spf13/cobra"
)

var tasksStatus string

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List or inspect tasks on the server",
	Long: `List all tasks the server knows about or inspect a specific task by ID.

Examples:
  complycheck tasks                      # List all tasks
  complycheck tasks --status processing  # Only running tasks
  complycheck tasks 3f2a9c1d             # Show details for task 3f2a9c1d`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by status (pending, processing, completed, failed, cancelled)")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// If task ID provided, show that specific task
	if len(args) == 1 {
		task, err := apiClient.GetTask(ctx, args[0])
		if client.IsNotFound(err) {
			return fmt.Errorf("task not found: %s", args[0])
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		printTask(cmd.OutOrStdout(), *task)
		return nil
	}

	tasks, err := apiClient.ListTasks(ctx, models.TaskStatus(tasksStatus))
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	printTaskList(cmd.OutOrStdout(), tasks)
	return nil
}
