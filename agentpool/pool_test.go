package agentpool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinInstances = 1
	cfg.MaxInstances = 3
	cfg.DequeueTimeout = 50 * time.Millisecond
	cfg.HealthCheckInterval = 30 * time.Millisecond
	cfg.IdleTimeout = 100 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	cfg.DefaultTaskTimeout = time.Second
	return cfg
}

func TestPool_SubmitAndGetResult(t *testing.T) {
	p := New(testConfig(), nil)
	if err := p.RegisterHandler("echo", func(ctx context.Context, task *Task, r ProgressReporter) (*TaskResult, error) {
		return &TaskResult{Text: task.Prompt}, nil
	}); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(ctx)

	id, err := p.SubmitTask("echo", "hello", PriorityNormal)
	if err != nil {
		t.Fatalf("SubmitTask: %v", err)
	}

	result, err := p.GetTaskResult(ctx, id, time.Second)
	if err != nil {
		t.Fatalf("GetTaskResult: %v", err)
	}
	if result.Text != "hello" {
		t.Errorf("result.Text = %q, want %q", result.Text, "hello")
	}
}

func TestPool_HandlerError(t *testing.T) {
	p := New(testConfig(), nil)
	wantErr := errors.New("boom")
	_ = p.RegisterHandler("fail", func(ctx context.Context, task *Task, r ProgressReporter) (*TaskResult, error) {
		return nil, wantErr
	})

	ctx := context.Background()
	_ = p.Start(ctx)
	defer p.Stop(ctx)

	id, _ := p.SubmitTask("fail", "x", PriorityNormal)
	_, err := p.GetTaskResult(ctx, id, time.Second)
	if err == nil {
		t.Fatal("expected error from failed task")
	}
	var taskErr *TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected *TaskError, got %T", err)
	}
	if taskErr.Code != ErrCodeHandlerError {
		t.Errorf("code = %s, want %s", taskErr.Code, ErrCodeHandlerError)
	}
}

func TestPool_NoHandlerRegistered(t *testing.T) {
	p := New(testConfig(), nil)
	ctx := context.Background()
	_ = p.Start(ctx)
	defer p.Stop(ctx)

	id, _ := p.SubmitTask("missing", "x", PriorityNormal)
	_, err := p.GetTaskResult(ctx, id, time.Second)
	if err == nil {
		t.Fatal("expected error for unregistered agent type")
	}
}

func TestPool_PriorityOrdering(t *testing.T) {
	q := NewQueue()
	low := &Task{ID: "low", Priority: PriorityLow}
	high := &Task{ID: "high", Priority: PriorityHigh}
	normal := &Task{ID: "normal", Priority: PriorityNormal}

	_ = q.Enqueue(low)
	_ = q.Enqueue(high)
	_ = q.Enqueue(normal)

	ctx := context.Background()
	first, _ := q.Dequeue(ctx, time.Second)
	second, _ := q.Dequeue(ctx, time.Second)
	third, _ := q.Dequeue(ctx, time.Second)

	if first.ID != "high" || second.ID != "normal" || third.ID != "low" {
		t.Errorf("dequeue order = %s,%s,%s, want high,normal,low", first.ID, second.ID, third.ID)
	}
}

func TestPool_ScalesUpUnderLoad(t *testing.T) {
	cfg := testConfig()
	cfg.MinInstances = 1
	cfg.MaxInstances = 4
	cfg.ScaleFactor = 1
	block := make(chan struct{})

	p := New(cfg, nil)
	_ = p.RegisterHandler("slow", func(ctx context.Context, task *Task, r ProgressReporter) (*TaskResult, error) {
		<-block
		return &TaskResult{}, nil
	})

	ctx := context.Background()
	_ = p.Start(ctx)
	defer func() {
		close(block)
		p.Stop(ctx)
	}()

	for i := 0; i < 4; i++ {
		if _, err := p.SubmitTask("slow", "x", PriorityNormal); err != nil {
			t.Fatalf("SubmitTask: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.ActiveWorkers() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.ActiveWorkers() < 2 {
		t.Errorf("ActiveWorkers() = %d, want pool to scale above min_instances under load", p.ActiveWorkers())
	}
}

func TestQueue_DequeueTimeout(t *testing.T) {
	q := NewQueue()
	ctx := context.Background()
	task, err := q.Dequeue(ctx, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if task != nil {
		t.Errorf("expected nil task on timeout, got %+v", task)
	}
}
