package eventlog

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_AppendAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	event, err := s.Append(ctx, Event{Type: "session.created", AggregateType: "session", AggregateID: "sess-1"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if event.ID == "" {
		t.Errorf("expected an assigned event id")
	}
	if event.Timestamp.IsZero() {
		t.Errorf("expected an assigned timestamp")
	}
}

func TestMemoryStore_AppendRejectsMissingAggregate(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Append(context.Background(), Event{Type: "x"}); err == nil {
		t.Fatalf("expected an error for a missing aggregate_type/aggregate_id")
	}
}

func TestMemoryStore_AppendEnforcesNonDecreasingTimestamps(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)

	if _, err := s.Append(ctx, Event{Type: "a", AggregateType: "session", AggregateID: "sess-1", Timestamp: later}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, err := s.Append(ctx, Event{Type: "b", AggregateType: "session", AggregateID: "sess-1", Timestamp: earlier})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.Timestamp.Before(later) {
		t.Errorf("expected the out-of-order event to be clamped forward to %v, got %v", later, second.Timestamp)
	}
}

func TestMemoryStore_ReplayReturnsOnlyMatchingAggregate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Append(ctx, Event{Type: "a", AggregateType: "session", AggregateID: "sess-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append(ctx, Event{Type: "b", AggregateType: "session", AggregateID: "sess-2"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := s.Replay(ctx, "session", "sess-1")
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(events) != 1 || events[0].Type != "a" {
		t.Errorf("expected only sess-1's event, got %+v", events)
	}
}

func TestMemoryStore_QueryFiltersByEventTypeAndSessionID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Append(ctx, Event{Type: "todo.created", AggregateType: "todo", AggregateID: "todo-1", Data: map[string]interface{}{"session_id": "sess-1"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append(ctx, Event{Type: "todo.created", AggregateType: "todo", AggregateID: "todo-2", Data: map[string]interface{}{"session_id": "sess-2"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append(ctx, Event{Type: "session.created", AggregateType: "session", AggregateID: "sess-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := s.Query(ctx, Filter{EventType: "todo.created", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].AggregateID != "todo-1" {
		t.Errorf("expected only todo-1's event, got %+v", events)
	}
}

func TestMemoryStore_QueryRespectsLimitAndOffset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Append(ctx, Event{Type: "x", AggregateType: "session", AggregateID: "sess-1"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	events, err := s.Query(ctx, Filter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events after offset/limit, got %d", len(events))
	}
}

func TestMemoryStore_QueryOffsetPastEndReturnsEmpty(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Append(ctx, Event{Type: "x", AggregateType: "session", AggregateID: "sess-1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	events, err := s.Query(ctx, Filter{Offset: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events past the end, got %d", len(events))
	}
}
