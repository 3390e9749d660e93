// Package eventbus implements spec.md §4.F: a bounded broadcast channel
// that fans agent and PTY events out to every authenticated client.
//
// Grounded in the nugget-thane-ai-agent events.Bus non-blocking broadcast
// pattern (subscriber channels, RLock-guarded fan-out), extended with a
// sequence-numbered ring buffer so a slow subscriber observes an explicit
// Lagged(n) rather than silently losing events with no count at all.
package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/xcawolfe-amzn/agentd/internal/model"
)

// DefaultCapacity is the ring buffer size mandated by spec.md §4.F.
const DefaultCapacity = 2048

// ErrClosed is returned by Recv once the bus has been closed and the
// subscriber has drained every buffered event.
var ErrClosed = errors.New("eventbus: closed")

// Bus is a bounded broadcast channel. Every Publish is serialized once
// and held in a ring buffer of capacity entries; subscribers each track
// their own read cursor so a slow consumer never stalls the publisher.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buf      []model.Event
	// base is the sequence number of buf[0]; seq-base gives the buffer
	// index for sequence number seq while it is still retained.
	base   uint64
	next   uint64 // sequence number that will be assigned to the next Publish
	closed bool
}

// New creates a bus with the given ring buffer capacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &Bus{capacity: capacity, buf: make([]model.Event, 0, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends an event to the ring buffer and wakes every blocked
// subscriber. Never blocks: the oldest retained event is evicted once the
// buffer is at capacity.
func (b *Bus) Publish(e model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if len(b.buf) == b.capacity {
		b.buf = b.buf[1:]
		b.base++
	}
	b.buf = append(b.buf, e)
	b.next++
	b.cond.Broadcast()
}

// Close marks the bus closed; blocked and future Recv calls return
// ErrClosed once the ring buffer has been fully drained.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Subscriber is a per-client read cursor into the bus.
type Subscriber struct {
	bus    *Bus
	cursor uint64 // next sequence number this subscriber wants
}

// Subscribe returns a cursor positioned at the bus's current write
// position: the subscriber receives only events published from this
// point on, matching spec.md §4.H's "spawned on auth success" semantics.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscriber{bus: b, cursor: b.next}
}

// Recv blocks until the next event is available, the bus closes, or ctx
// is done. lagged > 0 reports how many events were skipped because they
// fell out of the ring buffer before this subscriber could consume them
// — the spec.md §4.F "Lagged(n) — skip and continue" policy.
func (s *Subscriber) Recv(ctx context.Context) (event model.Event, lagged int, err error) {
	b := s.bus

	// Translate ctx cancellation into a cond wakeup by running a
	// single watcher goroutine per call; cheap relative to event
	// delivery and keeps Bus free of a context dependency per publish.
	done := make(chan struct{})
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.cond.Broadcast()
			b.mu.Unlock()
		case <-stopWatch:
		}
		close(done)
	}()
	defer func() {
		close(stopWatch)
		<-done
	}()

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return model.Event{}, 0, ctx.Err()
		}
		if s.cursor < b.base {
			lagged = int(b.base - s.cursor)
			s.cursor = b.base
		}
		if s.cursor < b.next {
			idx := s.cursor - b.base
			event = b.buf[idx]
			s.cursor++
			return event, lagged, nil
		}
		if b.closed {
			return model.Event{}, lagged, ErrClosed
		}
		b.cond.Wait()
	}
}
