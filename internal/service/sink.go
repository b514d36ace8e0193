package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/complycheck/internal/models"
)

// ReportSink receives the final state of every completed or cancelled task.
type ReportSink interface {
	Save(ctx context.Context, task models.Task) error
}

// FileSink writes each task as <Dir>/<task_id>.json.
type FileSink struct {
	Dir string
}

// NewFileSink creates a sink writing into dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Path returns the results file for a task.
func (s *FileSink) Path(taskID string) string {
	return filepath.Join(s.Dir, taskID+".json")
}

// Save implements ReportSink. The file is written atomically.
func (s *FileSink) Save(_ context.Context, task models.Task) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, task.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close results: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(task.ID)); err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	return nil
}

// Load reads stored results for a task.
func (s *FileSink) Load(taskID string) (models.Task, error) {
	var task models.Task
	if taskID == "" || filepath.Base(taskID) != taskID {
		return task, ErrTaskNotFound
	}
	data, err := os.ReadFile(s.Path(taskID))
	if errors.Is(err, fs.ErrNotExist) {
		return task, ErrTaskNotFound
	}
	if err != nil {
		return task, fmt.Errorf("read results: %w", err)
	}
	if err := json.Unmarshal(data, &task); err != nil {
		return task, fmt.Errorf("decode results: %w", err)
	}
	return task, nil
}
