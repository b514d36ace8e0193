package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/complycheck/internal/client"
	"github.com/spf13/cobra"
)

var resultsOutput string

var resultsCmd = &cobra.Command{
	Use:   "results <task-id>",
	Short: "Print the verdicts of a finished task",
	Long: `Fetch the results of a finished task from the server.

Examples:
  complycheck results 3f2a9c1d
  complycheck results 3f2a9c1d -o -          # JSON to stdout
  complycheck results 3f2a9c1d -o report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func init() {
	resultsCmd.Flags().StringVarP(&resultsOutput, "output", "o", "", "write the full result as JSON to this file ('-' for stdout)")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	id := args[0]
	task, err := apiClient.Results(context.Background(), id)
	switch {
	case client.IsNotFound(err):
		return fmt.Errorf("task not found: %s", id)
	case client.IsConflict(err):
		return fmt.Errorf("task %s has not finished yet; follow it with 'complycheck watch %s'", id, id)
	case err != nil:
		return fmt.Errorf("get results: %w", err)
	}
	return reportTask(cmd, *task, resultsOutput)
}
