// Package agentpool implements the Agent Pool & External-Tool Fan-Out layer
// (C9): a pool of worker agents draining a priority task queue, each worker
// pulling a routing tier, invoking an LLM with tools, and feeding results
// back into the event log.
//
// Grounded on the teacher's async task system (core/async_task.go:
// Task/TaskStatus/TaskQueue/TaskStore/TaskHandler/ProgressReporter) and its
// worker pool (orchestration/task_worker.go), generalized from an HTTP-202
// polling model to the pool's submit_task/get_task_result contract.
package agentpool

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTaskNotFound is returned when a task cannot be found.
	ErrTaskNotFound = errors.New("agentpool: task not found")

	// ErrQueueEmpty names an empty queue. Queue.Dequeue and
	// RedisQueue.Dequeue do not return it: they report a timeout with no
	// task available as a nil task and a nil error.
	ErrQueueEmpty = errors.New("agentpool: queue empty")

	// ErrPoolStopped is returned when submitting to a stopped pool.
	ErrPoolStopped = errors.New("agentpool: pool stopped")

	// ErrResultTimeout is returned when GetTaskResult's wait exceeds its timeout.
	ErrResultTimeout = errors.New("agentpool: result wait timed out")
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority orders tasks within the queue; higher runs first.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
)

// Task is one atomic unit of work submitted to the pool: a prompt built
// from an AC node's content plus its filtered context, routed to an
// agent type (the teacher's Task.Type).
type Task struct {
	ID        string
	AgentType string
	Prompt    string
	Priority  Priority
	Status    Status

	Result *TaskResult
	Err    *TaskError

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// NodeID ties this task back to the AC Tree node it executes, so
	// completion/failure can be reported to C11's scheduler.
	NodeID string
}

// TaskResult carries a worker's completion payload back to the caller.
type TaskResult struct {
	Text        string
	ToolCalls   []ToolInvocation
	TokensUsed  int
	CostUSD     float64
	TierUsed    string
	DurationMS  int64
}

// ToolInvocation records one tool call a worker made while executing a task.
type ToolInvocation struct {
	Tool     string
	Args     map[string]interface{}
	Result   string
	Err      string
	Duration time.Duration
}

// TaskError mirrors the teacher's TaskError: a machine-readable code plus
// a human message, attached to a task on failure.
type TaskError struct {
	Code    string
	Message string
}

func (e *TaskError) Error() string { return e.Code + ": " + e.Message }

const (
	ErrCodeTimeout      = "TASK_TIMEOUT"
	ErrCodeHandlerError = "HANDLER_ERROR"
	ErrCodePanic        = "HANDLER_PANIC"
	ErrCodeNoHandler    = "NO_HANDLER"
)

// Handler executes one task. Implementations live in the orchestrator
// package, wiring in the routing controller (C6), model catalog (C4),
// tool registry (C7), and security layer (C8); agentpool itself stays
// agnostic of what a task actually does.
type Handler func(ctx context.Context, task *Task, reporter ProgressReporter) (*TaskResult, error)

// ProgressReporter lets a handler publish incremental progress, mirrored
// into the event log by the caller that wires it up.
type ProgressReporter interface {
	Report(step, totalSteps int, message string)
}
