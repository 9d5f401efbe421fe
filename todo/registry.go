package todo

import (
	"context"
	"sort"
	"sync"

	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/eventlog"
)

const (
	aggregateType = "todo"

	EventTodoCreated       = "todo.created"
	EventTodoStatusChanged = "todo.status_changed"
)

func newTodoEvent(t Todo) eventlog.Event {
	return eventlog.Event{
		Type:          EventTodoCreated,
		AggregateType: aggregateType,
		AggregateID:   t.ID,
		Data: map[string]interface{}{
			"description": t.Description,
			"context":     t.Context,
			"priority":    string(t.Priority),
			"status":      string(t.Status),
		},
	}
}

func newStatusChangeEvent(t Todo, oldStatus, newStatus Status, errorMessage string) eventlog.Event {
	data := map[string]interface{}{
		"old_status": string(oldStatus),
		"new_status": string(newStatus),
	}
	if errorMessage != "" {
		data["error_message"] = errorMessage
	}
	return eventlog.Event{
		Type:          EventTodoStatusChanged,
		AggregateType: aggregateType,
		AggregateID:   t.ID,
		Data:          data,
	}
}

// reconstruct folds a TODO's event stream back into a Todo, returning
// false if events contains no creation event (including the empty case).
func reconstruct(events []eventlog.Event) (Todo, bool) {
	var t Todo
	found := false
	for _, e := range events {
		switch e.Type {
		case EventTodoCreated:
			t = Todo{
				ID:          e.AggregateID,
				Description: stringField(e.Data, "description"),
				Context:     stringField(e.Data, "context"),
				Priority:    Priority(stringField(e.Data, "priority")),
				Status:      Status(stringField(e.Data, "status")),
				CreatedAt:   e.Timestamp,
			}
			found = true
		case EventTodoStatusChanged:
			if !found {
				continue
			}
			t.Status = Status(stringField(e.Data, "new_status"))
			t.ErrorMessage = stringField(e.Data, "error_message")
		}
	}
	if !found {
		return Todo{}, false
	}
	return t, true
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// Registry is the TODO Registry's operation contract: register new
// suggestions, advance their status, and query the pending backlog in
// priority order. State is never held directly — every read replays
// the event log, matching session.Repository's approach.
type Registry struct {
	log    eventlog.Store
	logger core.Logger

	mu      sync.Mutex
	todoIDs map[string]struct{}
}

func New(log eventlog.Store, logger core.Logger) *Registry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/todo")
	}
	return &Registry{log: log, logger: logger, todoIDs: make(map[string]struct{})}
}

// Register records a new TODO and returns it.
func (r *Registry) Register(ctx context.Context, description, todoContext string, priority Priority) (Todo, error) {
	t := New(description, todoContext, priority)
	if _, err := r.log.Append(ctx, newTodoEvent(t)); err != nil {
		return Todo{}, err
	}
	r.mu.Lock()
	r.todoIDs[t.ID] = struct{}{}
	r.mu.Unlock()
	r.logger.InfoWithContext(ctx, "todo registered", map[string]interface{}{"todo_id": t.ID, "priority": string(t.Priority)})
	return t, nil
}

// GetByID reconstructs a TODO from its event stream, returning
// (Todo{}, false, nil) if it doesn't exist.
func (r *Registry) GetByID(ctx context.Context, id string) (Todo, bool, error) {
	events, err := r.log.Replay(ctx, aggregateType, id)
	if err != nil {
		return Todo{}, false, err
	}
	t, ok := reconstruct(events)
	return t, ok, nil
}

// UpdateStatus transitions a TODO to a new status, recording the
// optional error message (meaningful for StatusFailed).
func (r *Registry) UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) (Todo, error) {
	t, ok, err := r.GetByID(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	if !ok {
		return Todo{}, core.New("todo.UpdateStatus", core.KindTool, core.ErrNotFound).WithID(id)
	}

	oldStatus := t.Status
	if _, err := r.log.Append(ctx, newStatusChangeEvent(t, oldStatus, status, errorMessage)); err != nil {
		return Todo{}, err
	}
	return t.WithStatus(status, errorMessage), nil
}

// GetPending returns tracked TODOs still in StatusPending, sorted
// HIGH-before-MEDIUM-before-LOW, truncated to limit when limit > 0.
func (r *Registry) GetPending(ctx context.Context, limit int) ([]Todo, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.todoIDs))
	for id := range r.todoIDs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	pending := make([]Todo, 0, len(ids))
	for _, id := range ids {
		t, ok, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && t.Status == StatusPending {
			pending = append(pending, t)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority.SortOrder() < pending[j].Priority.SortOrder()
	})

	if limit > 0 && limit < len(pending) {
		pending = pending[:limit]
	}
	return pending, nil
}

// GetStats returns a count of tracked TODOs per status.
func (r *Registry) GetStats(ctx context.Context) (map[Status]int, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.todoIDs))
	for id := range r.todoIDs {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	stats := make(map[Status]int)
	for _, id := range ids {
		t, ok, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			stats[t.Status]++
		}
	}
	return stats, nil
}

// CountPending returns the number of TODOs this registry is tracking
// (regardless of their current status).
func (r *Registry) CountPending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.todoIDs)
}
