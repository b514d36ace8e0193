package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned for an unknown task ID.
	ErrTaskNotFound = errors.New("task not found")

	// ErrAlreadyFinished is returned when cancelling a task that is already
	// completed, failed or cancelled.
	ErrAlreadyFinished = errors.New("task already finished")

	// ErrReasoningUnavailable fails a run after too many consecutive
	// requirements could not be evaluated.
	ErrReasoningUnavailable = errors.New("reasoning service unavailable")

	// ErrEmptyChecklist is returned when the checklist has no requirements.
	ErrEmptyChecklist = errors.New("checklist has no requirements")

	// ErrManagerClosed is returned by Submit after Close.
	ErrManagerClosed = errors.New("task manager closed")
)

// EvaluationError reports a requirement whose row was downgraded to Error
// because retrieval or reasoning failed.
type EvaluationError struct {
	RequirementID string
	Err           error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.RequirementID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
