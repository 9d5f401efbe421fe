// Package todo implements the secondary-loop TODO Registry: a
// post-session backlog of improvement suggestions, event-sourced the
// same way the primary session is (spec §4.9's secondary loop).
//
// Grounded on
// _examples/original_source/tests/unit/secondary/test_todo_registry.py
// and the teacher's read-model-over-event-stream pattern already used
// in session/session.go.
package todo

import (
	"time"

	"github.com/forgewell/acengine/core"
)

// Priority orders the secondary-loop backlog.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SortOrder gives Priority its queue ordering: HIGH first.
func (p Priority) SortOrder() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Status is a TODO's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusSkipped
}

// Todo is an immutable improvement suggestion raised by the secondary
// loop. Transitions produce a new Todo via WithStatus rather than
// mutating in place.
type Todo struct {
	ID           string
	Description  string
	Context      string
	Priority     Priority
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
}

// New creates a pending Todo with the given priority, defaulting to
// PriorityMedium when priority is empty.
func New(description, context string, priority Priority) Todo {
	if priority == "" {
		priority = PriorityMedium
	}
	return Todo{
		ID:          core.NewID(),
		Description: description,
		Context:     context,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithStatus returns a copy of t transitioned to status, optionally
// carrying an error message (meaningful only for StatusFailed).
func (t Todo) WithStatus(status Status, errorMessage string) Todo {
	next := t
	next.Status = status
	next.ErrorMessage = errorMessage
	return next
}
