package agentpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/forgewell/acengine/core"
)

// Config configures the pool's lifecycle and auto-scaling, per spec.md
// §4.9. Grounded on the teacher's TaskWorkerConfig (orchestration/
// task_worker.go), extended with MinInstances/MaxInstances/IdleTimeout/
// HealthCheckInterval/ScaleFactor for the pool's own scaling decision,
// which the teacher's fixed-size pool did not need.
type Config struct {
	MinInstances        int
	MaxInstances        int
	IdleTimeout         time.Duration
	HealthCheckInterval time.Duration
	ScaleFactor         int // k in "pending >= k * active" scale-up trigger

	DequeueTimeout     time.Duration
	ShutdownTimeout    time.Duration
	DefaultTaskTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinInstances:        1,
		MaxInstances:        10,
		IdleTimeout:         2 * time.Minute,
		HealthCheckInterval: 10 * time.Second,
		ScaleFactor:         2,
		DequeueTimeout:      5 * time.Second,
		ShutdownTimeout:     30 * time.Second,
		DefaultTaskTimeout:  30 * time.Minute,
	}
}

// Pool is a pool of worker agents draining a shared priority Queue.
// Grounded on orchestration.TaskWorkerPool's goroutine-per-worker
// lifecycle, generalized with the auto-scaling rule from spec.md §4.9:
// spawn a worker when pending >= ScaleFactor*active and active < Max;
// retire idle workers above Min after IdleTimeout.
type Pool struct {
	cfg    Config
	queue  *Queue
	store  *Store
	logger core.Logger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	active  atomic.Int32
	running atomic.Bool
	retire  chan struct{}
}

// New creates a pool. logger may be nil (a no-op logger is substituted).
func New(cfg Config, logger core.Logger) *Pool {
	if cfg.MinInstances < 1 {
		cfg.MinInstances = 1
	}
	if cfg.MaxInstances < cfg.MinInstances {
		cfg.MaxInstances = cfg.MinInstances
	}
	if cfg.ScaleFactor < 1 {
		cfg.ScaleFactor = 1
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/agentpool")
	}
	return &Pool{
		cfg:      cfg,
		queue:    NewQueue(),
		store:    NewStore(),
		logger:   logger,
		handlers: make(map[string]Handler),
		retire:   make(chan struct{}, 1),
	}
}

// RegisterHandler binds a handler to an agent type. Must be called before Start.
func (p *Pool) RegisterHandler(agentType string, h Handler) error {
	if agentType == "" {
		return core.Newf("agentpool.RegisterHandler", core.KindValidation, "agent_type cannot be empty")
	}
	if h == nil {
		return core.Newf("agentpool.RegisterHandler", core.KindValidation, "handler cannot be nil")
	}
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	p.handlers[agentType] = h
	return nil
}

// Start launches MinInstances workers plus the scaling loop. It returns
// immediately; call Stop to drain and shut down.
func (p *Pool) Start(ctx context.Context) error {
	if p.running.Swap(true) {
		return core.Newf("agentpool.Start", core.KindValidation, "pool already running")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.cfg.MinInstances; i++ {
		p.spawnWorker()
	}

	p.wg.Add(1)
	go p.scaleLoop()

	p.logger.Info("agent pool started", map[string]interface{}{
		"min_instances": p.cfg.MinInstances,
		"max_instances": p.cfg.MaxInstances,
	})
	return nil
}

// Stop cancels worker context and waits for in-flight tasks up to
// ShutdownTimeout, then returns. Pending queued tasks are left queued
// (not cancelled) so a restarted pool can resume draining them.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.running.Swap(false) {
		return nil
	}
	p.cancel()
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(p.cfg.ShutdownTimeout):
		return core.Newf("agentpool.Stop", core.KindTimeout, "shutdown timeout: workers still running")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitTask enqueues a task and returns its id without blocking.
func (p *Pool) SubmitTask(agentType, prompt string, priority Priority) (string, error) {
	return p.SubmitNodeTask(agentType, prompt, priority, "")
}

// SubmitNodeTask is SubmitTask plus nodeID, the AC Tree node (C11) this
// task executes on behalf of, so a Handler can report the node's
// outcome back to the scheduler without a side-channel lookup.
func (p *Pool) SubmitNodeTask(agentType, prompt string, priority Priority, nodeID string) (string, error) {
	if !p.running.Load() {
		return "", ErrPoolStopped
	}
	task := &Task{
		ID:        uuid.NewString(),
		AgentType: agentType,
		Prompt:    prompt,
		Priority:  priority,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		NodeID:    nodeID,
	}
	p.store.Create(task)
	if err := p.queue.Enqueue(task); err != nil {
		return "", err
	}
	return task.ID, nil
}

// GetTaskResult awaits a task's terminal state, up to timeout (<=0 waits
// for the caller's ctx only).
func (p *Pool) GetTaskResult(ctx context.Context, taskID string, timeout time.Duration) (*TaskResult, error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	task, err := p.store.GetResult(waitCtx, taskID)
	if err != nil {
		if err == context.DeadlineExceeded {
			return nil, ErrResultTimeout
		}
		return nil, err
	}
	if task.Status == StatusFailed {
		return nil, task.Err
	}
	return task.Result, nil
}

func (p *Pool) spawnWorker() {
	p.active.Add(1)
	p.wg.Add(1)
	go p.runWorker()
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	defer p.active.Add(-1)

	idleSince := time.Now()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.retire:
			if p.active.Load() > int32(p.cfg.MinInstances) {
				return
			}
		default:
		}

		task, err := p.queue.Dequeue(p.ctx, p.cfg.DequeueTimeout)
		if err != nil {
			return // context cancelled
		}
		if task == nil {
			if time.Since(idleSince) >= p.cfg.IdleTimeout && p.active.Load() > int32(p.cfg.MinInstances) {
				return
			}
			continue
		}
		idleSince = time.Now()
		p.processTask(task)
	}
}

func (p *Pool) processTask(task *Task) {
	start := time.Now()
	task.StartedAt = &start
	task.Status = StatusRunning
	p.store.Update(task)

	p.handlersMu.RLock()
	handler, ok := p.handlers[task.AgentType]
	p.handlersMu.RUnlock()

	if !ok {
		p.failTask(task, start, &TaskError{Code: ErrCodeNoHandler, Message: fmt.Sprintf("no handler for agent type %q", task.AgentType)})
		return
	}

	timeout := p.cfg.DefaultTaskTimeout
	taskCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	result, err := p.executeHandler(taskCtx, handler, task, noopReporter{})

	if err != nil {
		if taskCtx.Err() == context.DeadlineExceeded {
			p.failTask(task, start, &TaskError{Code: ErrCodeTimeout, Message: fmt.Sprintf("task exceeded timeout of %v", timeout)})
		} else {
			p.failTask(task, start, &TaskError{Code: ErrCodeHandlerError, Message: err.Error()})
		}
		return
	}

	completed := time.Now()
	task.Status = StatusCompleted
	task.CompletedAt = &completed
	if result != nil {
		result.DurationMS = time.Since(start).Milliseconds()
	}
	task.Result = result
	p.store.Update(task)

	p.logger.Info("task completed", map[string]interface{}{
		"task_id":     task.ID,
		"agent_type":  task.AgentType,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (p *Pool) executeHandler(ctx context.Context, handler Handler, task *Task, reporter ProgressReporter) (result *TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			err = fmt.Errorf("handler panic: %v", r)
			p.logger.Error("handler panicked", map[string]interface{}{
				"task_id": task.ID,
				"panic":   r,
				"stack":   stack,
			})
		}
	}()
	return handler(ctx, task, reporter)
}

func (p *Pool) failTask(task *Task, start time.Time, taskErr *TaskError) {
	now := time.Now()
	task.Status = StatusFailed
	task.CompletedAt = &now
	task.Err = taskErr
	p.store.Update(task)

	p.logger.Error("task failed", map[string]interface{}{
		"task_id":     task.ID,
		"agent_type":  task.AgentType,
		"duration_ms": time.Since(start).Milliseconds(),
		"error":       taskErr.Error(),
	})
}

// scaleLoop implements the scale-up half of the §4.9 scaling rule: spawn
// one worker when pending >= ScaleFactor*active and active < Max. It
// sends no retirement signal; each worker above Min retires itself in
// runWorker once it has been idle for IdleTimeout.
func (p *Pool) scaleLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			pending := p.queue.Len()
			active := int(p.active.Load())
			if pending >= p.cfg.ScaleFactor*active && active < p.cfg.MaxInstances {
				p.spawnWorker()
				p.logger.Info("agent pool scaled up", map[string]interface{}{
					"pending": pending,
					"active":  active + 1,
				})
			}
		}
	}
}

// ActiveWorkers reports the current worker count, for health checks.
func (p *Pool) ActiveWorkers() int { return int(p.active.Load()) }

// PendingTasks reports the current queue depth, for health checks.
func (p *Pool) PendingTasks() int { return p.queue.Len() }

type noopReporter struct{}

func (noopReporter) Report(step, totalSteps int, message string) {}
