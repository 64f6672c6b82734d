// Package events provides the fire-and-forget job event bus feeding
// the websocket push channel and the optional Redis mirror.
package events

import (
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

const (
	// TypeJobUpdate is the event type for job state changes.
	TypeJobUpdate = "job_update"

	// DefaultQueueSize bounds each subscriber's pending events.
	DefaultQueueSize = 64

	// DefaultDropThreshold is the consecutive-drop count after which a
	// subscriber is considered dead and closed.
	DefaultDropThreshold = 32
)

// Event is one push-channel message.
type Event struct {
	Type      string         `json:"type"`
	JobID     string         `json:"job_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// JobUpdate builds a job_update event.
func JobUpdate(jobID, status string, data map[string]any) Event {
	return Event{
		Type:      TypeJobUpdate,
		JobID:     jobID,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Mirror receives every published event, used for the Redis relay.
type Mirror interface {
	Publish(event Event)
}

// Subscription is one subscriber's bounded event queue.
type Subscription struct {
	ch     chan Event
	drops  int
	closed bool
}

// C returns the subscriber's event channel. It is closed when the bus
// shuts down or the subscriber falls too far behind.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Bus broadcasts events to subscribers without back-pressure: a full
// subscriber queue drops its oldest event, and subscribers that keep
// dropping are closed.
type Bus struct {
	mu            sync.Mutex
	subs          map[*Subscription]struct{}
	queueSize     int
	dropThreshold int
	mirror        Mirror
	logger        logger.Interface
}

// NewBus creates an event bus. mirror may be nil.
func NewBus(mirror Mirror, log logger.Interface) *Bus {
	return &Bus{
		subs:          make(map[*Subscription]struct{}),
		queueSize:     DefaultQueueSize,
		dropThreshold: DefaultDropThreshold,
		mirror:        mirror,
		logger:        log.WithComponent("events"),
	}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{ch: make(chan Event, b.queueSize)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(sub)
}

// Publish broadcasts an event to all subscribers. Never blocks on a
// slow subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		b.deliver(sub, event)
	}

	if b.mirror != nil {
		b.mirror.Publish(event)
	}
}

// deliver enqueues the event, dropping the subscriber's oldest pending
// event when the queue is full.
func (b *Bus) deliver(sub *Subscription, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.closed {
		return
	}

	select {
	case sub.ch <- event:
		sub.drops = 0
		return
	default:
	}

	// Queue full: evict the oldest event to make room.
	select {
	case <-sub.ch:
	default:
	}
	sub.drops++

	if sub.drops >= b.dropThreshold {
		b.logger.Warn("closing slow event subscriber", "drops", sub.drops)
		b.remove(sub)
		return
	}

	select {
	case sub.ch <- event:
	default:
	}
}

// Close shuts down all subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		b.remove(sub)
	}
}

// remove must be called with b.mu held.
func (b *Bus) remove(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(b.subs, sub)
	close(sub.ch)
}
