package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchPlain bool

var watchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Follow a task on the server",
	Long: `Stream a task's progress until it finishes, then print its verdicts.

Leaving the view does not cancel the task; use 'complycheck cancel'.

Examples:
  complycheck watch 3f2a9c1d
  complycheck watch 3f2a9c1d --plain`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "print progress lines instead of the interactive view")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchTask(ctx, cmd, args[0])
}

// watchTask follows a remote task and prints its results once it ends.
func watchTask(ctx context.Context, cmd *cobra.Command, id string) error {
	out := cmd.OutOrStdout()
	res, err := followTask(ctx, id, remoteSource(apiClient, id), followOptions{
		Interactive: !watchPlain && isTerminal(),
		QuitHint:    "q stops watching, the task keeps running",
		Out:         out,
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if res.Detached || ctx.Err() != nil || res.Last == nil || !res.Last.Terminal {
		fmt.Fprintf(out, "Stopped watching task %s\n", id)
		return nil
	}

	task, err := apiClient.Results(context.WithoutCancel(ctx), id)
	if err != nil {
		return fmt.Errorf("get results: %w", err)
	}
	return reportTask(cmd, *task, "")
}
