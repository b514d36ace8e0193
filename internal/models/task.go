package models

import "time"

// TaskStatus is the externally visible state of a compliance-check task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Phase is the checklist engine's position within a run.
type Phase string

const (
	PhaseNotStarted  Phase = "not_started"
	PhaseIndexing    Phase = "indexing"
	PhaseEvaluating  Phase = "evaluating"
	PhaseAggregating Phase = "aggregating"
	PhaseDone        Phase = "done"
)

// Task is a point-in-time snapshot of one compliance-check run.
type Task struct {
	ID           string          `json:"task_id"`
	Status       TaskStatus      `json:"status"`
	Phase        Phase           `json:"phase"`
	Progress     int             `json:"progress"`
	Message      string          `json:"message"`
	DocumentName string          `json:"document_name"`
	ChecklistIDs []string        `json:"checklist_ids,omitempty"`
	Rows         []EvaluationRow `json:"rows"`
	Summary      RunSummary      `json:"summary"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// TaskUpdate is one item on a task's subscription stream. It carries only
// the row produced since the previous update, not the full row list.
type TaskUpdate struct {
	TaskID    string         `json:"task_id"`
	Status    TaskStatus     `json:"status"`
	Phase     Phase          `json:"phase"`
	Progress  int            `json:"progress"`
	Message   string         `json:"message"`
	LatestRow *EvaluationRow `json:"latest_row,omitempty"`
	Summary   RunSummary     `json:"summary"`
	Error     string         `json:"error,omitempty"`
	Terminal  bool           `json:"terminal"`
}
