package anomaly

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisChannel = "aegis:anomaly"

// Hub fans out detected anomalies to in-process subscribers and to a Redis
// pub/sub channel for other replicas, via a channel-based Go hub plus
// Redis PUBLISH, so notification sinks (Slack, webhooks) can subscribe
// without polling the anomalies table.
type Hub struct {
	rdb    *redis.Client
	logger *slog.Logger

	mu   sync.RWMutex
	subs []chan Anomaly
}

// NewHub builds a Hub. rdb may be nil, disabling cross-process fan-out.
func NewHub(rdb *redis.Client, logger *slog.Logger) *Hub {
	return &Hub{rdb: rdb, logger: logger}
}

// Subscribe registers a buffered channel that receives every anomaly
// published after this call. The returned func unsubscribes.
func (h *Hub) Subscribe(buffer int) (<-chan Anomaly, func()) {
	ch := make(chan Anomaly, buffer)
	h.mu.Lock()
	h.subs = append(h.subs, ch)
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, c := range h.subs {
			if c == ch {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish fans the anomaly out to every in-process subscriber (non-blocking,
// drops for a subscriber whose buffer is full) and to the Redis channel for
// other replicas.
func (h *Hub) Publish(ctx context.Context, a Anomaly) {
	h.mu.RLock()
	subs := make([]chan Anomaly, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- a:
		default:
			h.logger.Warn("anomaly subscriber buffer full, dropping", "anomaly_id", a.ID)
		}
	}

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(a)
	if err != nil {
		h.logger.Error("marshal anomaly for publish", "error", err)
		return
	}
	if err := h.rdb.Publish(ctx, redisChannel, payload).Err(); err != nil {
		h.logger.Error("publish anomaly to redis", "error", err)
	}
}
