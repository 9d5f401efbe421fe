package tools

import (
	"context"
	"testing"
)

type fakeTool struct {
	name   string
	result interface{}
	err    error
}

func (f fakeTool) Name() string        { return f.name }
func (f fakeTool) Description() string { return "fake tool for tests" }
func (f fakeTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return f.result, f.err
}

func TestRegistry_BuiltinWinsNameCollision(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterDiscovered("server-a", fakeTool{name: "search", result: "mcp"})
	r.RegisterBuiltin(fakeTool{name: "search", result: "builtin"})

	entry, ok := r.Get("search")
	if !ok {
		t.Fatalf("expected search to be registered")
	}
	if entry.Source != SourceBuiltin {
		t.Errorf("expected builtin to win the collision, got %v", entry.Source)
	}
	if len(r.Shadowed()) != 1 {
		t.Errorf("expected the discovered tool to be recorded as shadowed")
	}
}

func TestRegistry_DiscoveredAfterBuiltinIsShadowed(t *testing.T) {
	r := NewRegistry(nil)
	r.RegisterBuiltin(fakeTool{name: "search", result: "builtin"})
	r.RegisterDiscovered("server-a", fakeTool{name: "search", result: "mcp"})

	entry, _ := r.Get("search")
	if entry.Source != SourceBuiltin {
		t.Errorf("expected builtin to remain active, got %v", entry.Source)
	}
	if len(r.Shadowed()) != 1 {
		t.Errorf("expected the late-discovered tool to be shadowed")
	}
}

func TestRegistry_InvokeUnknownToolReturnsNotFound(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.Invoke(context.Background(), "missing", nil)
	if err == nil {
		t.Fatalf("expected an error for an unregistered tool")
	}
}

func TestGuardedRegistry_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	g := NewGuardedRegistry(nil)
	g.cbConfig.FailureThreshold = 2
	g.retry = RetryConfig{MaxAttempts: 1, InitialDelay: 0, MaxDelay: 0, BackoffFactor: 1}
	g.RegisterBuiltin(fakeTool{name: "flaky", err: errNonRetriable{}})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := g.InvokeGuarded(ctx, "flaky", nil); err == nil {
			t.Fatalf("expected invocation %d to fail", i)
		}
	}

	if _, err := g.InvokeGuarded(ctx, "flaky", nil); err == nil {
		t.Fatalf("expected the circuit breaker to fail fast once open")
	}
}

// errNonRetriable is a plain error, not a *core.Error, so
// core.IsRetriable treats it as non-retriable and Retry gives up after
// a single attempt, keeping this test's failure count deterministic.
type errNonRetriable struct{}

func (errNonRetriable) Error() string { return "non-retriable failure" }
