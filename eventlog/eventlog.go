// Package eventlog implements the Event Log (C1): the append-only,
// never-edited record of facts that is the ground truth for session
// replay (spec §4.1). An in-memory Store backs tests and single-process
// runs; RedisStore (redis_store.go) gives durable, multi-process
// storage over core.RedisClient's RedisDBEventLog allocation.
//
// Grounded on the teacher's in-memory/Redis dual-backend split (e.g.
// core/memory_store.go next to core/redis_client.go) for the interface
// shape, and on spec.md §4.1/§6 for the event schema and ordering
// invariants.
package eventlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgewell/acengine/core"
)

// Event is an immutable fact. Aggregate types include session, ac,
// routing, todo, execution (spec §3).
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	AggregateType string                 `json:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id"`
	Timestamp     time.Time              `json:"timestamp"`
	Data          map[string]interface{} `json:"data"`
}

// Filter bounds a Query call.
type Filter struct {
	SessionID string
	EventType string
	Limit     int
	Offset    int
}

// Store is the Event Log's operation contract (spec §4.1).
type Store interface {
	// Append durably records event, assigning an id and timestamp if
	// unset. Returns persistence errors only.
	Append(ctx context.Context, event Event) (Event, error)
	// Replay returns every event for (aggregateType, aggregateID) in
	// monotonic timestamp order, ties broken by insertion order.
	Replay(ctx context.Context, aggregateType, aggregateID string) ([]Event, error)
	// Query returns a bounded, filtered sequence across all aggregates.
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

type aggregateKey struct {
	aggregateType string
	aggregateID   string
}

// MemoryStore is an in-process, mutex-guarded Event Log.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event // global insertion order
	byAgg  map[aggregateKey][]int
	logger core.Logger
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byAgg: make(map[aggregateKey][]int), logger: &core.NoOpLogger{}}
}

func (s *MemoryStore) SetLogger(l core.Logger) {
	if l == nil {
		return
	}
	if cal, ok := l.(core.ComponentAwareLogger); ok {
		l = cal.WithComponent("engine/eventlog")
	}
	s.logger = l
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Append(ctx context.Context, event Event) (Event, error) {
	if event.AggregateType == "" || event.AggregateID == "" {
		return Event{}, core.Newf("eventlog.Append", core.KindValidation, "aggregate_type and aggregate_id are required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := aggregateKey{event.AggregateType, event.AggregateID}
	if prev := s.byAgg[key]; len(prev) > 0 {
		last := s.events[prev[len(prev)-1]].Timestamp
		if event.Timestamp.Before(last) {
			event.Timestamp = last // enforce non-decreasing timestamps within an aggregate
		}
	}

	idx := len(s.events)
	s.events = append(s.events, event)
	s.byAgg[key] = append(s.byAgg[key], idx)

	s.logger.DebugWithContext(ctx, "event appended", map[string]interface{}{
		"event_id": event.ID, "type": event.Type, "aggregate_type": event.AggregateType, "aggregate_id": event.AggregateID,
	})
	return event, nil
}

func (s *MemoryStore) Replay(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxs := s.byAgg[aggregateKey{aggregateType, aggregateID}]
	out := make([]Event, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Event, 0)
	for _, e := range s.events {
		if filter.EventType != "" && e.Type != filter.EventType {
			continue
		}
		if filter.SessionID != "" {
			sid, _ := e.Data["session_id"].(string)
			if e.AggregateType == "session" {
				sid = e.AggregateID
			}
			if sid != filter.SessionID {
				continue
			}
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.Before(matched[j].Timestamp) })

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}
