package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radnorm/radnorm/internal/core/domain"
)

func event(jobID string, current, total int) domain.ProgressEvent {
	return domain.ProgressEvent{
		JobID:   jobID,
		Current: current,
		Total:   total,
		Status:  domain.JobProcessing,
	}
}

func TestProgressFanOut(t *testing.T) {
	p := NewProgressChannel()
	defer p.Close()

	a, cancelA := p.Subscribe()
	b, cancelB := p.Subscribe()
	defer cancelA()
	defer cancelB()

	p.Publish(event("job-1", 1, 3))

	for _, ch := range []<-chan domain.ProgressEvent{a, b} {
		select {
		case got := <-ch:
			assert.Equal(t, 1, got.Current)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestProgressLateSubscriberGetsLastEvent(t *testing.T) {
	p := NewProgressChannel()
	defer p.Close()

	p.Publish(event("job-1", 2, 3))

	ch, cancel := p.Subscribe()
	defer cancel()

	select {
	case got := <-ch:
		assert.Equal(t, 2, got.Current)
		assert.Equal(t, "job-1", got.JobID)
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not receive the cached event")
	}
}

func TestProgressCancelDetaches(t *testing.T) {
	p := NewProgressChannel()
	defer p.Close()

	ch, cancel := p.Subscribe()
	require.Equal(t, 1, p.SubscriberCount())

	cancel()
	cancel() // second cancel is a no-op

	assert.Equal(t, 0, p.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}

func TestProgressDropsStalledSubscriber(t *testing.T) {
	p := NewProgressChannel()
	defer p.Close()

	stalled, cancelStalled := p.Subscribe()
	defer cancelStalled()

	// Overflow the subscriber's buffer without draining it.
	for i := 0; i <= subscriberBuffer; i++ {
		p.Publish(event("job-1", i, subscriberBuffer+1))
	}

	assert.Equal(t, 0, p.SubscriberCount())

	// The stalled channel was closed after its buffered events.
	drained := 0
	for range stalled {
		drained++
	}
	assert.Equal(t, subscriberBuffer, drained)

	// The publisher keeps working for new observers.
	fresh, cancelFresh := p.Subscribe()
	defer cancelFresh()
	p.Publish(event("job-1", subscriberBuffer+1, subscriberBuffer+1))

	select {
	case got := <-fresh:
		// The cached last event arrives first.
		assert.Equal(t, subscriberBuffer, got.Current)
	case <-time.After(time.Second):
		t.Fatal("fresh subscriber did not receive events")
	}
}

func TestProgressCloseIsTerminal(t *testing.T) {
	p := NewProgressChannel()

	ch, _ := p.Subscribe()
	p.Close()
	p.Close() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after close is discarded.
	p.Publish(event("job-1", 1, 1))

	// Subscribing after close yields a closed channel.
	late, cancel := p.Subscribe()
	defer cancel()
	_, open = <-late
	assert.False(t, open)
}
