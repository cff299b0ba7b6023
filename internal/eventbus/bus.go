// Package eventbus is a small in-process fanout for action lifecycle
// signals. Publish never blocks; slow subscribers lose events rather than
// stalling the scheduler or the dispatcher.
package eventbus

import (
	"sync"
	"time"
)

// Well-known event types published on the bus.
const (
	TypeActionScheduled = "action.scheduled"
	TypeActionSent      = "action.sent"
	TypeActionCompleted = "action.completed"
	TypeActionFailed    = "action.failed"
	TypeCycleCompleted  = "cycle.completed"
)

// Event payloads should stay small; Data is typically an action ID or a
// cycle summary.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	Counts() map[string]uint64
}

// New returns an in-memory bus. It owns no goroutines; delivery happens on
// the publisher's stack.
func New() Bus {
	return &memBus{counts: map[string]uint64{}}
}

type subscriber struct {
	ch     chan Event
	closed bool
}

type memBus struct {
	mu     sync.Mutex
	subs   []*subscriber
	counts map[string]uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	b.counts[e.Type]++
	for _, s := range b.subs {
		if s.closed {
			continue
		}
		select {
		case s.ch <- e:
		default:
			// Buffer full: drop for this subscriber.
		}
	}
	b.mu.Unlock()
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		for i, cur := range b.subs {
			if cur == s {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		// Safe to close under the lock: Publish only sends while holding it.
		close(s.ch)
	}
	return s.ch, unsub
}

// Counts returns a copy of per-type publish counters since process start.
func (b *memBus) Counts() map[string]uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]uint64, len(b.counts))
	for k, v := range b.counts {
		out[k] = v
	}
	return out
}
