package services

import (
	"sync"

	"github.com/radnorm/radnorm/internal/core/domain"
	"github.com/radnorm/radnorm/internal/logger"
)

// subscriberBuffer is the per-observer event buffer. An observer that
// falls this far behind is treated as disconnected.
const subscriberBuffer = 16

// ProgressChannel fans batch-progress events out to any number of live
// observers. It is safe for concurrent use by the orchestrator and
// observer goroutines.
//
// Late subscribers receive the most recent event at subscribe time plus
// all subsequent events; they are not guaranteed the full history. A
// subscriber whose buffer overflows is dropped (its channel closed and
// subscription removed) without affecting other observers or the
// publisher.
type ProgressChannel struct {
	mu     sync.Mutex
	subs   map[int]chan domain.ProgressEvent
	nextID int
	last   *domain.ProgressEvent
	closed bool
}

// NewProgressChannel creates an empty progress channel.
func NewProgressChannel() *ProgressChannel {
	return &ProgressChannel{subs: make(map[int]chan domain.ProgressEvent)}
}

// Subscribe registers an observer. The returned cancel func detaches it;
// calling cancel more than once is safe.
func (p *ProgressChannel) Subscribe() (<-chan domain.ProgressEvent, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan domain.ProgressEvent, subscriberBuffer)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++
	p.subs[id] = ch

	// Replay the cached snapshot so late subscribers see current state.
	if p.last != nil {
		ch <- *p.last
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if sub, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to all current observers and caches it for
// late subscribers. Delivery never blocks: a full observer is dropped.
func (p *ProgressChannel) Publish(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.last = &event

	for id, ch := range p.subs {
		select {
		case ch <- event:
		default:
			logger.Warn("Dropping stalled progress observer %d", id)
			delete(p.subs, id)
			close(ch)
		}
	}
}

// SubscriberCount returns the current number of observers.
func (p *ProgressChannel) SubscriberCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close detaches all observers. Subsequent publishes are discarded and
// subsequent subscribes receive a closed channel.
func (p *ProgressChannel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}
