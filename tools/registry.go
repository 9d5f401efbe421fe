// Package tools implements the Tool Registry (C7) and Security Layer
// (C8) from spec §4.7-§4.8: a merged catalog of built-in and
// MCP-discovered tools with deterministic conflict resolution, guarded
// by authentication, authorization, rate limiting, and input
// validation before any tool executes.
//
// Grounded on _examples/original_source/src/ouroboros/mcp/server/security.py
// for the security layer and on the teacher's resilience/ package for
// the retry/circuit-breaker guard wrapping tool invocation.
package tools

import (
	"context"
	"sync"

	"github.com/forgewell/acengine/core"
)

// Source distinguishes where a registry entry came from, used to
// decide precedence when a built-in and a discovered tool share a
// name (spec §4.7: built-ins always win).
type Source string

const (
	SourceBuiltin   Source = "builtin"
	SourceMCP       Source = "mcp"
)

// Tool is anything the Agent Pool (C9) can invoke by name.
type Tool interface {
	Name() string
	Description() string
	// Execute runs the tool with the given arguments and returns a
	// JSON-serializable result or a *core.Error.
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Entry is one registry slot: the tool plus its provenance.
type Entry struct {
	Tool       Tool
	Source     Source
	ServerName string // non-empty for SourceMCP, naming the originating MCP server
	ShadowedBy string // non-empty if this entry lost a name conflict to a builtin
}

// Registry is the Tool Registry (C7): a name -> Entry catalog merging
// built-in tools (registered at startup) with tools discovered from
// MCP servers at runtime. A built-in registration always wins a name
// collision; the losing discovered entry is kept out of the active
// catalog but recorded in shadowed for observability (spec §4.7).
type Registry struct {
	mu       sync.RWMutex
	active   map[string]Entry
	shadowed map[string]Entry
	logger   core.Logger
}

func NewRegistry(logger core.Logger) *Registry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/tools")
	}
	return &Registry{
		active:   make(map[string]Entry),
		shadowed: make(map[string]Entry),
		logger:   logger,
	}
}

// RegisterBuiltin adds a built-in tool, always overwriting any prior
// entry for the same name regardless of source (builtins never lose).
func (r *Registry) RegisterBuiltin(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if existing, ok := r.active[name]; ok && existing.Source == SourceMCP {
		existing.ShadowedBy = name
		r.shadowed[name] = existing
	}
	r.active[name] = Entry{Tool: t, Source: SourceBuiltin}
}

// RegisterDiscovered adds an MCP-discovered tool. If a built-in
// already owns this name, the discovered tool is recorded as shadowed
// rather than installed (spec §4.7 conflict resolution).
func (r *Registry) RegisterDiscovered(serverName string, t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if existing, ok := r.active[name]; ok && existing.Source == SourceBuiltin {
		r.shadowed[name] = Entry{Tool: t, Source: SourceMCP, ServerName: serverName, ShadowedBy: name}
		r.logger.Debug("tool registration shadowed by builtin", map[string]interface{}{"tool": name, "server": serverName})
		return
	}
	r.active[name] = Entry{Tool: t, Source: SourceMCP, ServerName: serverName}
}

// Get looks up an active tool by name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.active[name]
	return e, ok
}

// List returns all active entries.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.active))
	for _, e := range r.active {
		out = append(out, e)
	}
	return out
}

// Shadowed returns all entries that lost a name conflict, for
// diagnostics.
func (r *Registry) Shadowed() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.shadowed))
	for _, e := range r.shadowed {
		out = append(out, e)
	}
	return out
}

// Unregister removes a name from the active catalog, used when an MCP
// server disconnects.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, name)
	delete(r.shadowed, name)
}

// Invoke looks up name and executes it, returning a tool-not-found
// error (non-retriable) if absent.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	entry, ok := r.Get(name)
	if !ok {
		return nil, core.New("tools.Invoke", core.KindTool, core.ErrNotFound).WithID(name)
	}
	return entry.Tool.Execute(ctx, args)
}
