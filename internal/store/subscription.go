package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Subscription delivers full-document snapshots of one couple until Close.
// Only the newest pending snapshot is kept when the reader falls behind.
type Subscription struct {
	snapshots chan json.RawMessage
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscription(parent context.Context, run func(ctx context.Context, sub *Subscription)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		snapshots: make(chan json.RawMessage, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(sub.snapshots)
		run(ctx, sub)
	}()
	return sub
}

// Snapshots is closed once the subscription stops.
func (s *Subscription) Snapshots() <-chan json.RawMessage {
	return s.snapshots
}

// Close cancels the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

// deliver replaces any unread snapshot with raw. Only the run goroutine calls it.
func (s *Subscription) deliver(ctx context.Context, raw json.RawMessage) {
	for {
		select {
		case s.snapshots <- raw:
			return
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-s.snapshots:
		default:
		}
	}
}
