package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/raphaelgruber/complycheck/internal/client"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/service"
	"golang.org/x/term"
)

// updateSource streams a task's updates into send until the task ends.
type updateSource func(ctx context.Context, send func(models.TaskUpdate) error) error

// remoteSource follows a task on the server.
func remoteSource(c *client.Client, id string) updateSource {
	return func(ctx context.Context, send func(models.TaskUpdate) error) error {
		return c.Watch(ctx, id, send)
	}
}

// localSource follows a task running in this process.
func localSource(m *service.TaskManager, id string) updateSource {
	return func(ctx context.Context, send func(models.TaskUpdate) error) error {
		ch, err := m.Subscribe(ctx, id)
		if err != nil {
			return err
		}
		for u := range ch {
			if err := send(u); err != nil {
				return err
			}
		}
		return nil
	}
}

// followOptions controls how followTask renders updates.
type followOptions struct {
	Interactive bool
	QuitHint    string
	Out         io.Writer
}

// followResult is the outcome of following a task.
type followResult struct {
	Last     *models.TaskUpdate
	Detached bool
}

// followTask renders a task's updates until the task ends or, in
// interactive mode, the user quits.
func followTask(ctx context.Context, taskID string, src updateSource, opts followOptions) (followResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan models.TaskUpdate, 16)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		errc <- src(ctx, func(u models.TaskUpdate) error {
			select {
			case ch <- u:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var res followResult
	if opts.Interactive {
		pr, err := RunTaskProgress(taskID, ch, opts.QuitHint)
		if err != nil {
			return res, err
		}
		res.Last, res.Detached = pr.Last, pr.Quitting
	} else {
		for u := range ch {
			printUpdate(opts.Out, u)
			res.Last = &u
		}
	}

	cancel()
	for range ch {
	}
	if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
		return res, err
	}
	return res, nil
}

// printUpdate writes one plain progress line, plus the verdict if the
// update carries one.
func printUpdate(w io.Writer, u models.TaskUpdate) {
	if u.LatestRow != nil {
		fmt.Fprintf(w, "[%3d%%] %-12s %s\n", u.Progress, u.LatestRow.RequirementID, u.LatestRow.Status)
		return
	}
	fmt.Fprintf(w, "[%3d%%] %s: %s\n", u.Progress, u.Status, u.Message)
}

// isTerminal reports whether stdout is a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
