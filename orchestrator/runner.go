package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/forgewell/acengine/actree"
	"github.com/forgewell/acengine/agentpool"
	"github.com/forgewell/acengine/atomicity"
	"github.com/forgewell/acengine/checkpoint"
	"github.com/forgewell/acengine/core"
	"github.com/forgewell/acengine/eventlog"
	"github.com/forgewell/acengine/llm"
	"github.com/forgewell/acengine/routing"
	"github.com/forgewell/acengine/seed"
	"github.com/forgewell/acengine/session"
	"github.com/forgewell/acengine/todo"
	"github.com/forgewell/acengine/tools"
)

const agentTypeExecute = "execute"

// pollInterval is how often Run checks for newly-ready AC Tree nodes
// while leaf tasks are in flight on the agent pool.
const pollInterval = 200 * time.Millisecond

// Config wires together every component the Runner drives. Pool must
// already have Handler registered under agentTypeExecute (NewRunner
// does this via RegisterHandler) and Started by the caller.
type Config struct {
	Sessions      *session.Repository
	Checkpoints   checkpoint.Store
	Log           eventlog.Store
	Todos         *todo.Registry
	Pool          *agentpool.Pool
	Controller    *routing.Controller
	Catalog       *routing.Catalog
	Resolve       ProviderResolver
	Tools         *tools.GuardedRegistry
	DecomposerLLM llm.Provider
	AtomicityLLM  llm.Provider
	Criteria      atomicity.Criteria
	Synthesizer   *Synthesizer
	Telemetry     core.Telemetry // optional; nil leaves Handle/Route untraced
	Logger        core.Logger
}

// Runner is the Orchestrator Runner (C12, spec §4.12): the end-to-end
// driver from a Seed to a synthesized final response, decomposing and
// executing the AC Tree one ready leaf at a time through the Agent
// Pool, checkpointing after every state-changing step.
type Runner struct {
	cfg    Config
	logger core.Logger

	mu        sync.Mutex
	nodes     map[string]*seedNode // nodeID -> AC content/depth bookkeeping
	responses map[string]string    // nodeID -> leaf execution text, for synthesis
}

type seedNode struct {
	content string
	depth   int
}

// Result is what Run returns: the synthesized response plus the final
// tree statistics and any improvement suggestions raised along the way.
type Result struct {
	SessionID string
	Response  string
	Stats     actree.Statistics
	Todos     []todo.Todo
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	logger := cfg.Logger
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/orchestrator")
	}
	r := &Runner{
		cfg:       cfg,
		logger:    logger,
		nodes:     make(map[string]*seedNode),
		responses: make(map[string]string),
	}

	handler := NewHandler(cfg.Controller, cfg.Catalog, cfg.Resolve, cfg.Tools, r.contextFor, logger)
	if cfg.Telemetry != nil {
		handler.SetTelemetry(cfg.Telemetry)
		cfg.Controller.SetTelemetry(cfg.Telemetry)
	}
	if err := cfg.Pool.RegisterHandler(agentTypeExecute, handler.Handle); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runner) contextFor(nodeID string) routing.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return routing.Context{}
	}
	return routing.Context{TokenCount: len(n.content) / 4, ACDepth: n.depth}
}

// Run drives one Seed to completion (spec §4.12): creates a session,
// seeds the AC Tree with the seed's goal, repeatedly decomposes
// non-atomic leaves and submits atomic leaves to the agent pool,
// checkpoints after every node transition, and synthesizes the final
// response once the tree is complete.
func (r *Runner) Run(ctx context.Context, s *seed.Seed, executionID string) (Result, error) {
	sessionID := core.NewID()
	if _, err := r.cfg.Sessions.CreateSession(ctx, sessionID, executionID, s.SeedID(), "autonomous"); err != nil {
		return Result{}, err
	}

	tree := actree.NewTree(r.logger)
	rootID := tree.SetRoot(s.Goal())
	r.registerNode(rootID, s.Goal(), 0)

	if err := r.checkpoint(s.SeedID(), "tree_seeded", tree); err != nil {
		r.logger.Warn("checkpoint failed", map[string]interface{}{"error": err.Error()})
	}

	pending := map[string]string{} // taskID -> nodeID
	for !tree.IsComplete() {
		for _, nodeID := range tree.GetReadyNodes() {
			if _, inFlight := pendingHasNode(pending, nodeID); inFlight {
				continue
			}
			if err := r.processReadyNode(ctx, tree, nodeID, s.SeedID(), pending); err != nil {
				r.logger.Error("failed to process ready node", map[string]interface{}{"node_id": nodeID, "error": err.Error()})
				tree.MarkFailed(nodeID)
			}
		}

		if len(pending) == 0 && !tree.IsComplete() {
			// Nothing ready and nothing in flight: every remaining node
			// is blocked on a dependency that will never resolve, or a
			// stray inconsistency. Stop polling rather than spin and
			// synthesize from the leaves that did complete.
			break
		}

		r.drainCompletedTasks(ctx, tree, pending, s.SeedID())

		select {
		case <-ctx.Done():
			_ = r.cfg.Sessions.MarkFailed(ctx, sessionID, "context canceled")
			return Result{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	stats := tree.GetStatistics()
	results := r.collectLeafResults(tree)

	response, err := r.cfg.Synthesizer.Synthesize(ctx, s.Goal(), results)
	if err != nil {
		_ = r.cfg.Sessions.MarkFailed(ctx, sessionID, err.Error())
		return Result{}, err
	}

	if stats.FailedNodes > 0 {
		if _, err := r.cfg.Todos.Register(ctx, fmt.Sprintf("retry %d failed sub-task(s) for %s", stats.FailedNodes, s.SeedID()), s.Goal(), todo.PriorityHigh); err != nil {
			r.logger.Warn("failed to register retry todo", map[string]interface{}{"error": err.Error()})
		}
	}
	pendingTodos, err := r.cfg.Todos.GetPending(ctx, 0)
	if err != nil {
		pendingTodos = nil
	}

	if err := r.cfg.Sessions.MarkCompleted(ctx, sessionID); err != nil {
		return Result{}, err
	}
	return Result{SessionID: sessionID, Response: response, Stats: stats, Todos: pendingTodos}, nil
}

func pendingHasNode(pending map[string]string, nodeID string) (string, bool) {
	for taskID, n := range pending {
		if n == nodeID {
			return taskID, true
		}
	}
	return "", false
}

// processReadyNode runs the atomicity gate on a ready leaf: decompose
// further if it isn't atomic, otherwise submit it to the agent pool.
func (r *Runner) processReadyNode(ctx context.Context, tree *actree.Tree, nodeID, seedID string, pending map[string]string) error {
	node, ok := tree.GetNode(nodeID)
	if !ok {
		return core.New("orchestrator.processReadyNode", core.KindTool, core.ErrNotFound).WithID(nodeID)
	}

	if err := atomicity.CheckDepth(node.Depth); err != nil {
		tree.MarkFailed(nodeID)
		return err
	}

	verdict, err := atomicity.Check(ctx, node.Content, r.cfg.AtomicityLLM, r.cfg.Criteria, r.cfg.AtomicityLLM != nil, r.logger)
	if err != nil {
		return err
	}

	if !verdict.IsAtomic {
		decomp, err := atomicity.Generate(ctx, nodeID, node.Content, r.cfg.DecomposerLLM, r.logger)
		if err != nil {
			r.logger.Debug("decomposition_failed_treating_as_atomic", map[string]interface{}{"node_id": nodeID, "error": err.Error()})
		} else {
			childIDs, err := tree.Decompose(nodeID, decomp)
			if err != nil {
				return err
			}
			for i, id := range childIDs {
				r.registerNode(id, decomp.Children[i].Content, node.Depth+1)
			}
			return r.checkpoint(seedID, "decomposed_"+nodeID, tree)
		}
	}

	tree.MarkRunning(nodeID)
	taskID, err := r.cfg.Pool.SubmitNodeTask(agentTypeExecute, node.Content, agentpool.PriorityNormal, nodeID)
	if err != nil {
		return err
	}
	pending[taskID] = nodeID
	return r.checkpoint(seedID, "submitted_"+nodeID, tree)
}

// drainCompletedTasks polls every in-flight task once, non-blocking,
// folding completions and failures back into the tree.
func (r *Runner) drainCompletedTasks(ctx context.Context, tree *actree.Tree, pending map[string]string, seedID string) {
	for taskID, nodeID := range pending {
		result, err := r.cfg.Pool.GetTaskResult(ctx, taskID, 10*time.Millisecond)
		if err == agentpool.ErrResultTimeout {
			continue
		}
		delete(pending, taskID)
		if err != nil {
			r.recordNodeEvent(ctx, seedID, nodeID, "ac.failed", map[string]interface{}{"error": err.Error()})
			tree.MarkFailed(nodeID)
			continue
		}
		r.recordNodeEvent(ctx, seedID, nodeID, "ac.completed", map[string]interface{}{
			"text":        result.Text,
			"tokens_used": result.TokensUsed,
			"tier":        result.TierUsed,
		})
		r.storeLeafResponse(nodeID, result.Text)
		tree.MarkCompleted(nodeID)
		_ = r.checkpoint(seedID, "completed_"+nodeID, tree)
	}
}

func (r *Runner) recordNodeEvent(ctx context.Context, seedID, nodeID, eventType string, data map[string]interface{}) {
	if _, err := r.cfg.Log.Append(ctx, eventlog.Event{
		Type:          eventType,
		AggregateType: "ac",
		AggregateID:   nodeID,
		Data:          data,
	}); err != nil {
		r.logger.Warn("failed to append ac event", map[string]interface{}{"node_id": nodeID, "error": err.Error()})
	}
}

func (r *Runner) registerNode(nodeID, content string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[nodeID] = &seedNode{content: content, depth: depth}
}

func (r *Runner) storeLeafResponse(nodeID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[nodeID] = text
}

func (r *Runner) collectLeafResults(tree *actree.Tree) []LeafResult {
	r.mu.Lock()
	ids := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		ids = append(ids, id)
	}
	responses := make(map[string]string, len(r.responses))
	for k, v := range r.responses {
		responses[k] = v
	}
	r.mu.Unlock()

	var results []LeafResult
	for _, id := range ids {
		node, ok := tree.GetNode(id)
		if !ok || len(node.Children) > 0 {
			continue // only leaves were ever executed
		}
		switch node.Status {
		case actree.StatusCompleted:
			results = append(results, LeafResult{NodeID: id, Content: node.Content, Success: true, Response: responses[id]})
		case actree.StatusFailed:
			results = append(results, LeafResult{NodeID: id, Content: node.Content, Success: false, Error: "execution failed"})
		}
	}
	return results
}

func (r *Runner) checkpoint(seedID, phase string, tree *actree.Tree) error {
	if r.cfg.Checkpoints == nil {
		return nil
	}
	stats := tree.GetStatistics()
	cp, err := checkpoint.New(seedID, phase, map[string]interface{}{
		"total_nodes":     stats.TotalNodes,
		"completed_nodes": stats.CompletedNodes,
		"failed_nodes":    stats.FailedNodes,
		"pending_nodes":   stats.PendingNodes,
	})
	if err != nil {
		return err
	}
	return r.cfg.Checkpoints.Save(cp)
}
