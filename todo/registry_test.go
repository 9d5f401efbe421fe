package todo

import (
	"context"
	"testing"

	"github.com/forgewell/acengine/eventlog"
)

func TestRegistry_RegisterAndGetByID(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	created, err := r.Register(ctx, "retry the failed subtask", "goal context", PriorityHigh)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, ok, err := r.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !ok {
		t.Fatalf("expected todo %s to be found", created.ID)
	}
	if got.Status != StatusPending {
		t.Errorf("expected newly registered todo to be pending, got %v", got.Status)
	}
}

func TestRegistry_UpdateStatusPersistsAcrossReplay(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	created, err := r.Register(ctx, "write the missing docs", "", PriorityLow)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := r.UpdateStatus(ctx, created.ID, StatusFailed, "tool unavailable"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, ok, err := r.GetByID(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("GetByID after update: ok=%v err=%v", ok, err)
	}
	if got.Status != StatusFailed {
		t.Errorf("expected status to persist as failed, got %v", got.Status)
	}
	if got.ErrorMessage != "tool unavailable" {
		t.Errorf("expected error message to persist, got %q", got.ErrorMessage)
	}
}

func TestRegistry_GetPendingSortsByPriority(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	low, _ := r.Register(ctx, "low priority cleanup", "", PriorityLow)
	high, _ := r.Register(ctx, "high priority fix", "", PriorityHigh)
	medium, _ := r.Register(ctx, "medium priority refactor", "", PriorityMedium)

	pending, err := r.GetPending(ctx, 0)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending todos, got %d", len(pending))
	}
	if pending[0].ID != high.ID || pending[1].ID != medium.ID || pending[2].ID != low.ID {
		t.Errorf("expected high, medium, low order, got %v, %v, %v", pending[0].ID, pending[1].ID, pending[2].ID)
	}
}

func TestRegistry_GetPendingExcludesCompletedTodos(t *testing.T) {
	r := New(eventlog.NewMemoryStore(), nil)
	ctx := context.Background()

	done, _ := r.Register(ctx, "already finished", "", PriorityHigh)
	if _, err := r.UpdateStatus(ctx, done.ID, StatusDone, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := r.Register(ctx, "still pending", "", PriorityLow); err != nil {
		t.Fatalf("Register: %v", err)
	}

	pending, err := r.GetPending(ctx, 0)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 1 || pending[0].Description != "still pending" {
		t.Errorf("expected only the still-pending todo, got %+v", pending)
	}
}
