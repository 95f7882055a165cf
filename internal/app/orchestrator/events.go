package orchestrator

import (
	"sync"
	"time"
)

// ProgressEvent is published once per transcribed segment. Delivery is
// fire-and-forget: slow subscribers miss events rather than stall the
// inference slot.
type ProgressEvent struct {
	JobID        string    `json:"job_id"`
	SegmentIndex int       `json:"segment_index"`
	Start        float64   `json:"start"`
	End          float64   `json:"end"`
	Text         string    `json:"text"`
	Timestamp    time.Time `json:"timestamp"`
}

const subscriberBuffer = 64

type eventBus struct {
	mu          sync.Mutex
	nextID      int
	subscribers map[int]chan ProgressEvent
}

func newEventBus() *eventBus {
	return &eventBus{subscribers: make(map[int]chan ProgressEvent)}
}

func (b *eventBus) subscribe() (int, <-chan ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan ProgressEvent, subscriberBuffer)
	b.subscribers[id] = ch
	return id, ch
}

func (b *eventBus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(ch)
	}
}

// publish never blocks. A full subscriber channel drops the event.
func (b *eventBus) publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *eventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
