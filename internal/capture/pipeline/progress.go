// Package pipeline distributes capture job progress to interested
// consumers.
package pipeline

import (
	"sync"

	"github.com/babelcloud/vidcap/internal/util"
)

// ProgressEvent is one progress update from a capture job.
type ProgressEvent struct {
	Job   string `json:"job"`
	Phase string `json:"phase"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// ProgressBroadcaster fans progress events out to multiple subscribers.
// Publishing never blocks: a subscriber that stops draining its channel is
// dropped. New subscribers immediately receive the most recent event so a
// consumer attaching mid-job does not start blind.
type ProgressBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan<- ProgressEvent
	last        ProgressEvent
	hasLast     bool
	closed      bool
}

// NewProgressBroadcaster creates an empty broadcaster.
func NewProgressBroadcaster() *ProgressBroadcaster {
	return &ProgressBroadcaster{
		subscribers: make(map[string]chan<- ProgressEvent),
	}
}

// Subscribe adds a subscriber and returns its event channel. If an event
// was already published the latest one is delivered immediately.
func (b *ProgressBroadcaster) Subscribe(id string, bufferSize int) <-chan ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan ProgressEvent)
		close(ch)
		return ch
	}

	ch := make(chan ProgressEvent, bufferSize)
	b.subscribers[id] = ch

	if b.hasLast {
		select {
		case ch <- b.last:
		default:
			util.GetLogger().Warn("Failed to replay last event to new subscriber", "id", id)
		}
	}

	util.GetLogger().Debug("Progress subscriber added", "id", id, "total", len(b.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *ProgressBroadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.subscribers[id]; exists {
		close(ch)
		delete(b.subscribers, id)
		util.GetLogger().Debug("Progress subscriber removed", "id", id, "remaining", len(b.subscribers))
	}
}

// Publish sends an event to all current subscribers. A subscriber whose
// channel is full is dropped.
func (b *ProgressBroadcaster) Publish(ev ProgressEvent) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.last = ev
	b.hasLast = true
	subscribers := make(map[string]chan<- ProgressEvent, len(b.subscribers))
	for id, ch := range b.subscribers {
		subscribers[id] = ch
	}
	b.mu.Unlock()

	var dropped []string
	for id, ch := range subscribers {
		select {
		case ch <- ev:
		default:
			dropped = append(dropped, id)
			util.GetLogger().Warn("Dropping progress subscriber with full channel", "id", id)
		}
	}

	if len(dropped) > 0 {
		b.mu.Lock()
		for _, id := range dropped {
			if ch, exists := b.subscribers[id]; exists {
				close(ch)
				delete(b.subscribers, id)
			}
		}
		b.mu.Unlock()
	}
}

// Close shuts the broadcaster down and closes all subscriber channels.
// Safe to call more than once.
func (b *ProgressBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[string]chan<- ProgressEvent)
	util.GetLogger().Debug("Progress broadcaster closed")
}

// SubscriberCount returns the current number of subscribers.
func (b *ProgressBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
