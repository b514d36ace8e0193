// Package service runs compliance checks: the requirement evaluator, the
// checklist engine and the task manager that executes runs in the
// background.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/complycheck/internal/metrics"
	"github.com/raphaelgruber/complycheck/internal/models"
	"github.com/raphaelgruber/complycheck/internal/parser"
)

// SubmitRequest describes a compliance check to start.
type SubmitRequest struct {
	DocumentName string
	Document     []byte
	// ChecklistIDs is informational; Checklist supplies the requirements.
	ChecklistIDs []string
	Checklist    ChecklistSource
}

// task is the manager's mutable record of one run.
type task struct {
	mu      sync.RWMutex
	state   models.Task
	token   CancelToken
	cancel  context.CancelFunc
	started bool

	updates *broadcaster
}

// TaskManagerOptions configures a TaskManager.
type TaskManagerOptions struct {
	// Retention is how long finished tasks are kept. 0 keeps them forever.
	Retention time.Duration
	// JanitorInterval is how often Prune runs. 0 disables the janitor.
	JanitorInterval  time.Duration
	SubscriberBuffer int
	Sink             ReportSink
	Metrics          *metrics.Collector
	Logger           *slog.Logger
}

// TaskManager tracks compliance-check tasks and runs each in its own
// goroutine.
type TaskManager struct {
	runner Runner
	opts   TaskManagerOptions
	logger *slog.Logger

	mu     sync.RWMutex
	tasks  map[string]*task
	closed bool

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewTaskManager creates a task manager and starts its janitor.
func NewTaskManager(runner Runner, opts TaskManagerOptions) *TaskManager {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := context.WithCancel(context.Background())
	m := &TaskManager{
		runner: runner,
		opts:   opts,
		logger: logger,
		tasks:  make(map[string]*task),
		ctx:    ctx,
		stop:   stop,
	}

	if opts.JanitorInterval > 0 && opts.Retention > 0 {
		m.wg.Add(1)
		go m.janitor(opts.JanitorInterval)
	}
	return m
}

// Submit registers a pending task and starts it in the background.
func (m *TaskManager) Submit(_ context.Context, req SubmitRequest) (models.Task, error) {
	if len(req.Document) == 0 {
		return models.Task{}, parser.ErrEmptyDocument
	}
	if req.Checklist == nil {
		return models.Task{}, errors.New("no checklist given")
	}

	now := time.Now()
	t := &task{
		state: models.Task{
			ID:           uuid.New().String()[:8],
			Status:       models.TaskPending,
			Phase:        models.PhaseNotStarted,
			Message:      "Queued",
			DocumentName: req.DocumentName,
			ChecklistIDs: slices.Clone(req.ChecklistIDs),
			Rows:         []models.EvaluationRow{},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		updates: newBroadcaster(m.opts.SubscriberBuffer),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return models.Task{}, ErrManagerClosed
	}
	ctx, cancel := context.WithCancel(m.ctx)
	t.cancel = cancel
	m.tasks[t.state.ID] = t
	m.wg.Add(1)
	m.mu.Unlock()

	in := RunInput{
		Document:  parser.Document{Name: req.DocumentName, Data: req.Document},
		Checklist: req.Checklist,
	}
	go m.run(ctx, t, in)

	m.logger.Info("task submitted", "task_id", t.state.ID, "document", req.DocumentName, "checklists", req.ChecklistIDs)
	return t.snapshot(), nil
}

func (m *TaskManager) run(ctx context.Context, t *task, in RunInput) {
	defer m.wg.Done()
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("task goroutine panicked", "task_id", t.id(), "panic", r)
			m.finish(t, models.TaskFailed, nil, fmt.Errorf("internal panic: %v", r))
		}
	}()

	if t.token.Cancelled() || ctx.Err() != nil {
		m.finish(t, models.TaskCancelled, nil, nil)
		return
	}

	t.mu.Lock()
	t.state.Status = models.TaskProcessing
	t.state.Message = "Starting"
	t.state.UpdatedAt = time.Now()
	t.started = true
	t.mu.Unlock()
	m.opts.Metrics.TaskStarted()
	t.updates.publish(t.update(nil))

	result, err := m.runner.Run(ctx, in, &t.token, &taskObserver{t: t})
	switch {
	case err != nil:
		m.finish(t, models.TaskFailed, &result, err)
	case result.Cancelled:
		m.finish(t, models.TaskCancelled, &result, nil)
	default:
		m.finish(t, models.TaskCompleted, &result, nil)
	}
}

// finish moves t to a terminal status exactly once and notifies
// subscribers.
func (m *TaskManager) finish(t *task, status models.TaskStatus, result *RunResult, runErr error) {
	t.mu.Lock()
	if t.state.Status.Terminal() {
		t.mu.Unlock()
		return
	}

	now := time.Now()
	t.state.Status = status
	t.state.UpdatedAt = now
	t.state.CompletedAt = &now
	if result != nil {
		if result.Rows != nil {
			t.state.Rows = slices.Clone(result.Rows)
		}
		t.state.Summary = result.Summary
	}

	switch status {
	case models.TaskCompleted:
		t.state.Phase = models.PhaseDone
		t.state.Progress = 100
		t.state.Message = fmt.Sprintf("Completed: %d requirements checked", len(t.state.Rows))
	case models.TaskCancelled:
		t.state.Message = fmt.Sprintf("Cancelled after %d requirements", len(t.state.Rows))
	case models.TaskFailed:
		t.state.Error = runErr.Error()
		t.state.Message = "Failed: " + runErr.Error()
	}
	started := t.started
	snap := t.snapshotLocked()
	t.mu.Unlock()

	m.opts.Metrics.TaskFinished(string(status), started)

	// Results are stored before subscribers learn the task is done.
	if m.opts.Sink != nil && status != models.TaskFailed {
		if err := m.opts.Sink.Save(context.Background(), snap); err != nil {
			m.logger.Warn("failed to store results", "task_id", snap.ID, "error", err)
		}
	}
	t.updates.publish(t.update(nil))

	switch status {
	case models.TaskFailed:
		m.logger.Error("task failed", "task_id", snap.ID, "error", runErr)
	default:
		m.logger.Info("task finished", "task_id", snap.ID, "status", status, "rows", len(snap.Rows))
	}
}

// Get returns a snapshot of a task.
func (m *TaskManager) Get(id string) (models.Task, error) {
	t := m.lookup(id)
	if t == nil {
		return models.Task{}, ErrTaskNotFound
	}
	return t.snapshot(), nil
}

// List returns all tasks, most recent first.
func (m *TaskManager) List() []models.Task {
	m.mu.RLock()
	tasks := make([]models.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t.snapshot())
	}
	m.mu.RUnlock()

	slices.SortFunc(tasks, func(a, b models.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return tasks
}

// Subscribe streams updates for a task. The first update is the current
// state; the channel closes after the terminal update or when ctx ends.
func (m *TaskManager) Subscribe(ctx context.Context, id string) (<-chan models.TaskUpdate, error) {
	t := m.lookup(id)
	if t == nil {
		return nil, ErrTaskNotFound
	}
	return t.updates.subscribe(ctx, t.update(nil)), nil
}

// Cancel requests cancellation. A running task finishes the requirement in
// flight and stops before its next one; one that has not started yet never
// starts. The run's context is left alone so model calls are not cut off.
func (m *TaskManager) Cancel(id string) error {
	t := m.lookup(id)
	if t == nil {
		return ErrTaskNotFound
	}

	t.mu.Lock()
	if t.state.Status.Terminal() {
		t.mu.Unlock()
		return ErrAlreadyFinished
	}
	t.token.Cancel()
	t.state.Message = "Cancellation requested"
	t.state.UpdatedAt = time.Now()
	t.mu.Unlock()

	t.updates.publish(t.update(nil))
	m.logger.Info("task cancellation requested", "task_id", id)
	return nil
}

// Prune removes finished tasks that completed more than the retention
// period before now and returns how many were removed.
func (m *TaskManager) Prune(now time.Time) int {
	if m.opts.Retention <= 0 {
		return 0
	}
	cutoff := now.Add(-m.opts.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, t := range m.tasks {
		t.mu.RLock()
		expired := t.state.CompletedAt != nil && t.state.CompletedAt.Before(cutoff)
		t.mu.RUnlock()
		if expired {
			delete(m.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("pruned finished tasks", "count", removed)
	}
	return removed
}

func (m *TaskManager) janitor(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			m.Prune(now)
		}
	}
}

// Close stops the janitor, cancels running tasks and waits for their
// goroutines to exit.
func (m *TaskManager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.stop()
	m.wg.Wait()
}

func (m *TaskManager) lookup(id string) *task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[id]
}

func (t *task) id() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.ID
}

func (t *task) snapshot() models.Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *task) snapshotLocked() models.Task {
	s := t.state
	s.Rows = slices.Clone(t.state.Rows)
	s.ChecklistIDs = slices.Clone(t.state.ChecklistIDs)
	return s
}

// update builds a stream item from the current state.
func (t *task) update(latest *models.EvaluationRow) models.TaskUpdate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return models.TaskUpdate{
		TaskID:    t.state.ID,
		Status:    t.state.Status,
		Phase:     t.state.Phase,
		Progress:  t.state.Progress,
		Message:   t.state.Message,
		LatestRow: latest,
		Summary:   t.state.Summary,
		Error:     t.state.Error,
		Terminal:  t.state.Status.Terminal(),
	}
}

// taskObserver applies engine events to a task and publishes them.
type taskObserver struct {
	t *task
}

func (o *taskObserver) PhaseChanged(phase models.Phase, message string) {
	o.t.mu.Lock()
	o.t.state.Phase = phase
	o.t.state.Message = message
	o.t.state.UpdatedAt = time.Now()
	o.t.mu.Unlock()
	o.t.updates.publish(o.t.update(nil))
}

func (o *taskObserver) RowEvaluated(ev ProgressEvent) {
	o.t.mu.Lock()
	o.t.state.Rows = append(o.t.state.Rows, ev.Row)
	o.t.state.Summary = ev.Summary
	o.t.state.Progress = ev.Progress
	o.t.state.Message = ev.Message
	o.t.state.UpdatedAt = time.Now()
	o.t.mu.Unlock()

	row := ev.Row
	o.t.updates.publish(o.t.update(&row))
}
