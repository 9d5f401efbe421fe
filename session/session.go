// Package session implements the Session Repository (C3): a thin reader
// over the Event Log that reconstructs session state by replaying
// events filtered to aggregate_type=session (spec §4.3). A session is
// never stored as a mutable record — a Tracker is always derived.
//
// Grounded on the teacher's read-model-over-event-stream pattern in
// orchestration/hitl_checkpoint_store.go (state reconstructed from a
// command/event history rather than kept as a live struct).
package session

import (
	"context"
	"fmt"

	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/eventlog"
)

// Status is a Session's lifecycle state (spec §3).
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusAborted    Status = "aborted"
	StatusResumed    Status = "resumed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAborted
}

// Tracker is the reconstructed view of a session: derived counters
// folded from the event stream, never persisted directly.
type Tracker struct {
	SessionID     string
	ExecutionID   string
	SeedID        string
	Status        Status
	Mode          string
	EventCount    int
	FailureReason string
}

const aggregateType = "session"

// Repository is the Session Repository's operation contract (spec §4.3).
type Repository struct {
	log    eventlog.Store
	logger core.Logger
}

func New(log eventlog.Store, logger core.Logger) *Repository {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/session")
	}
	return &Repository{log: log, logger: logger}
}

// CreateSession emits a session.created event and returns the initial tracker.
func (r *Repository) CreateSession(ctx context.Context, sessionID, executionID, seedID, mode string) (Tracker, error) {
	if sessionID == "" {
		return Tracker{}, core.Newf("session.CreateSession", core.KindValidation, "session_id is required")
	}
	_, err := r.log.Append(ctx, eventlog.Event{
		Type:          "session.created",
		AggregateType: aggregateType,
		AggregateID:   sessionID,
		Data: map[string]interface{}{
			"execution_id": executionID,
			"seed_id":      seedID,
			"mode":         mode,
		},
	})
	if err != nil {
		return Tracker{}, err
	}
	r.logger.InfoWithContext(ctx, "session created", map[string]interface{}{"session_id": sessionID, "seed_id": seedID})
	return Tracker{SessionID: sessionID, ExecutionID: executionID, SeedID: seedID, Mode: mode, Status: StatusInProgress, EventCount: 1}, nil
}

// MarkCompleted emits a transition event, idempotently succeeding if
// the session is already completed (spec §4.3), but failing if it is
// terminal in some other state.
func (r *Repository) MarkCompleted(ctx context.Context, sessionID string) error {
	return r.markTerminal(ctx, sessionID, StatusCompleted, "session.completed", nil)
}

// MarkFailed emits a transition event with a reason, same idempotency rule.
func (r *Repository) MarkFailed(ctx context.Context, sessionID, reason string) error {
	return r.markTerminal(ctx, sessionID, StatusFailed, "session.failed", map[string]interface{}{"reason": reason})
}

func (r *Repository) markTerminal(ctx context.Context, sessionID string, target Status, eventType string, data map[string]interface{}) error {
	tracker, err := r.ReconstructSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if tracker.Status.IsTerminal() {
		if tracker.Status == target {
			return nil // idempotent re-mark of the same terminal state
		}
		return core.New("session."+string(eventType), core.KindValidation, core.ErrAlreadyTerminal).WithID(sessionID)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	_, err = r.log.Append(ctx, eventlog.Event{
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   sessionID,
		Data:          data,
	})
	return err
}

// ReconstructSession replays and folds a session's event stream into a Tracker.
func (r *Repository) ReconstructSession(ctx context.Context, sessionID string) (Tracker, error) {
	events, err := r.log.Replay(ctx, aggregateType, sessionID)
	if err != nil {
		return Tracker{}, err
	}
	if len(events) == 0 {
		return Tracker{}, core.New("session.ReconstructSession", core.KindPersistence, core.ErrNotFound).WithID(sessionID)
	}

	tracker := Tracker{SessionID: sessionID, Status: StatusInProgress}
	for _, e := range events {
		tracker.EventCount++
		switch e.Type {
		case "session.created":
			if v, ok := e.Data["execution_id"].(string); ok {
				tracker.ExecutionID = v
			}
			if v, ok := e.Data["seed_id"].(string); ok {
				tracker.SeedID = v
			}
			if v, ok := e.Data["mode"].(string); ok {
				tracker.Mode = v
			}
		case "session.completed":
			tracker.Status = StatusCompleted
		case "session.failed":
			tracker.Status = StatusFailed
			if v, ok := e.Data["reason"].(string); ok {
				tracker.FailureReason = v
			}
		case "session.aborted":
			tracker.Status = StatusAborted
		case "session.resumed":
			tracker.Status = StatusResumed
		}
	}
	return tracker, nil
}

// String implements fmt.Stringer for log-friendly display.
func (t Tracker) String() string {
	return fmt.Sprintf("session[%s] status=%s events=%d", t.SessionID, t.Status, t.EventCount)
}
