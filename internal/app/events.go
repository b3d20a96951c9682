package app

import "sync"

// Event types streamed to /api/events clients.
const (
	EventSnapshot     = "snapshot"
	EventNotification = "notification"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// broadcaster fans events out to SSE clients. A slow client misses events
// instead of blocking the publisher.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: map[chan Event]struct{}{}}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
