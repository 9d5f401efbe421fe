package session

import (
	"context"
	"testing"

	"github.com/forgewell/acengine/eventlog"
)

func TestRepository_CreateSessionReturnsInProgressTracker(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	tracker, err := r.CreateSession(ctx, "sess-1", "exec-1", "seed-1", "autonomous")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if tracker.Status != StatusInProgress {
		t.Errorf("expected new session to be in progress, got %v", tracker.Status)
	}
	if tracker.ExecutionID != "exec-1" || tracker.SeedID != "seed-1" {
		t.Errorf("unexpected tracker fields: %+v", tracker)
	}
}

func TestRepository_CreateSessionRejectsEmptyID(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	if _, err := r.CreateSession(context.Background(), "", "exec-1", "seed-1", "autonomous"); err == nil {
		t.Fatalf("expected an error for an empty session id")
	}
}

func TestRepository_ReconstructSessionFoldsEvents(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	if _, err := r.CreateSession(ctx, "sess-1", "exec-1", "seed-1", "autonomous"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := r.MarkCompleted(ctx, "sess-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	tracker, err := r.ReconstructSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReconstructSession: %v", err)
	}
	if tracker.Status != StatusCompleted {
		t.Errorf("expected reconstructed status to be completed, got %v", tracker.Status)
	}
	if tracker.EventCount != 2 {
		t.Errorf("expected 2 folded events, got %d", tracker.EventCount)
	}
}

func TestRepository_ReconstructSessionUnknownIDReturnsNotFound(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	if _, err := r.ReconstructSession(context.Background(), "never-created"); err == nil {
		t.Fatalf("expected an error for an unknown session id")
	}
}

func TestRepository_MarkCompletedIsIdempotent(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	if _, err := r.CreateSession(ctx, "sess-1", "exec-1", "seed-1", "autonomous"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := r.MarkCompleted(ctx, "sess-1"); err != nil {
		t.Fatalf("first MarkCompleted: %v", err)
	}
	if err := r.MarkCompleted(ctx, "sess-1"); err != nil {
		t.Errorf("re-marking an already completed session should succeed idempotently, got %v", err)
	}
}

func TestRepository_MarkFailedAfterCompletedIsRejected(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	if _, err := r.CreateSession(ctx, "sess-1", "exec-1", "seed-1", "autonomous"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := r.MarkCompleted(ctx, "sess-1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := r.MarkFailed(ctx, "sess-1", "too late"); err == nil {
		t.Fatalf("expected marking a completed session as failed to be rejected")
	}
}

func TestRepository_MarkFailedRecordsReason(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	if _, err := r.CreateSession(ctx, "sess-1", "exec-1", "seed-1", "autonomous"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := r.MarkFailed(ctx, "sess-1", "tool unavailable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	tracker, err := r.ReconstructSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReconstructSession: %v", err)
	}
	if tracker.Status != StatusFailed || tracker.FailureReason != "tool unavailable" {
		t.Errorf("unexpected tracker after failure: %+v", tracker)
	}
}
