package eventlog

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/forgewell/acengine/core"
)

func nowUTC() time.Time { return time.Now().UTC() }

// RedisStore is a durable, multi-process Event Log backed by
// core.RedisClient's RedisDBEventLog allocation: each aggregate's
// events live in a Redis list under a namespaced key, appended with
// RPUSH so list order is append order.
//
// Grounded on the teacher's core/redis_client.go wrapper (reused here
// rather than talking to go-redis directly) and on orchestration's
// Redis-backed stores for the per-aggregate key convention.
type RedisStore struct {
	client *core.RedisClient
	logger core.Logger
}

func NewRedisStore(client *core.RedisClient, logger core.Logger) *RedisStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		logger = cal.WithComponent("engine/eventlog")
	}
	return &RedisStore{client: client, logger: logger}
}

var _ Store = (*RedisStore)(nil)

func aggKey(aggregateType, aggregateID string) string {
	return "agg:" + aggregateType + ":" + aggregateID
}

func (s *RedisStore) Append(ctx context.Context, event Event) (Event, error) {
	if event.AggregateType == "" || event.AggregateID == "" {
		return Event{}, core.Newf("eventlog.RedisStore.Append", core.KindValidation, "aggregate_type and aggregate_id are required")
	}
	if event.ID == "" {
		event.ID = core.NewID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = nowUTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return Event{}, core.New("eventlog.RedisStore.Append", core.KindPersistence, err)
	}

	key := aggKey(event.AggregateType, event.AggregateID)
	if err := s.client.RPush(ctx, key, data); err != nil {
		return Event{}, core.New("eventlog.RedisStore.Append", core.KindPersistence, err)
	}
	if err := s.client.RPush(ctx, "all_events", data); err != nil {
		return Event{}, core.New("eventlog.RedisStore.Append", core.KindPersistence, err)
	}

	s.logger.DebugWithContext(ctx, "event appended", map[string]interface{}{"event_id": event.ID, "aggregate_type": event.AggregateType})
	return event, nil
}

func (s *RedisStore) Replay(ctx context.Context, aggregateType, aggregateID string) ([]Event, error) {
	raw, err := s.client.LRange(ctx, aggKey(aggregateType, aggregateID), 0, -1)
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, core.New("eventlog.RedisStore.Replay", core.KindPersistence, err)
	}
	out := make([]Event, 0, len(raw))
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, core.New("eventlog.RedisStore.Replay", core.KindPersistence, err)
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *RedisStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	raw, err := s.client.LRange(ctx, "all_events", 0, -1)
	if err != nil && err != redis.Nil {
		return nil, core.New("eventlog.RedisStore.Query", core.KindPersistence, err)
	}
	matched := make([]Event, 0)
	for _, r := range raw {
		var e Event
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, core.New("eventlog.RedisStore.Query", core.KindPersistence, err)
		}
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
