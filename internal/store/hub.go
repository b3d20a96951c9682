package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Hub fans document updates out to in-process subscribers. The SQLite store
// uses it as its change feed.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[chan json.RawMessage]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: map[string]map[chan json.RawMessage]struct{}{}}
}

// Publish hands raw to every subscriber of coupleID without blocking.
func (h *Hub) Publish(coupleID string, raw json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[coupleID] {
		select {
		case ch <- raw:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- raw:
			default:
			}
		}
	}
}

// Subscribe registers for coupleID updates until the subscription closes.
func (h *Hub) Subscribe(ctx context.Context, coupleID string) *Subscription {
	updates := make(chan json.RawMessage, 1)
	h.mu.Lock()
	if h.subscribers[coupleID] == nil {
		h.subscribers[coupleID] = map[chan json.RawMessage]struct{}{}
	}
	h.subscribers[coupleID][updates] = struct{}{}
	h.mu.Unlock()

	return newSubscription(ctx, func(ctx context.Context, sub *Subscription) {
		defer h.remove(coupleID, updates)
		for {
			select {
			case <-ctx.Done():
				return
			case raw := <-updates:
				sub.deliver(ctx, raw)
			}
		}
	})
}

func (h *Hub) remove(coupleID string, updates chan json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers[coupleID], updates)
	if len(h.subscribers[coupleID]) == 0 {
		delete(h.subscribers, coupleID)
	}
}

func (h *Hub) subscriberCount(coupleID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[coupleID])
}
