package docstore

import (
	"context"
	"sync"
	"time"
)

type event struct {
	snap Snapshot
	err  error
}

// Listener hands snapshots to one subscriber on a dedicated goroutine, in the
// order they were pushed, without ever blocking the producer. An error is
// terminal: it is delivered after any queued snapshots and ends the listener.
type Listener struct {
	onNext  func(Snapshot)
	onError func(error)

	mu     sync.Mutex
	queue  []event
	failed bool

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewListener(onNext func(Snapshot), onError func(error)) *Listener {
	if onNext == nil {
		onNext = func(Snapshot) {}
	}
	if onError == nil {
		onError = func(error) {}
	}
	l := &Listener{
		onNext:  onNext,
		onError: onError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Listener) Push(s Snapshot) {
	l.enqueue(event{snap: s})
}

func (l *Listener) Fail(err error) {
	l.enqueue(event{err: err})
}

func (l *Listener) enqueue(ev event) {
	l.mu.Lock()
	if l.failed || l.stopped() {
		l.mu.Unlock()
		return
	}
	if ev.err != nil {
		l.failed = true
	}
	l.queue = append(l.queue, ev)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop discards queued events. A callback already running completes.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// Done is closed once the listener stopped or delivered its error.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, ev := range batch {
			if l.stopped() {
				return
			}
			if ev.err != nil {
				l.onError(ev.err)
				l.Stop()
				return
			}
			l.onNext(ev.snap)
		}
	}
}

// Runner executes a query against a store's current state.
type Runner func(ctx context.Context, q *Query) ([]Document, error)

type hubSub struct {
	ctx context.Context
	q   *Query
	l   *Listener
}

// Hub tracks the live subscriptions of a store and re-runs their queries
// after writes. Runs and pushes are serialized, so every subscriber sees
// snapshots in commit order.
type Hub struct {
	rules Rules
	clock func() time.Time

	mu     sync.Mutex
	subs   map[uint64]*hubSub
	next   uint64
	closed bool
}

func NewHub(rules Rules, clock func() time.Time) *Hub {
	if clock == nil {
		clock = time.Now
	}
	return &Hub{
		rules: rules,
		clock: clock,
		subs:  make(map[uint64]*hubSub),
	}
}

// Subscribe registers a subscription and pushes its initial snapshot.
func (h *Hub) Subscribe(ctx context.Context, q *Query, onNext func(Snapshot), onError func(error), run Runner) Unsubscribe {
	l := NewListener(onNext, onError)
	if err := q.Validate(); err != nil {
		l.Fail(err)
		return l.Stop
	}
	if err := Authorize(ctx, h.rules, OpList, q.Collection); err != nil {
		l.Fail(err)
		return l.Stop
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		l.Fail(ErrClosed)
		return l.Stop
	}
	h.next++
	id := h.next
	sub := &hubSub{ctx: ctx, q: q, l: l}
	h.subs[id] = sub
	h.deliver(id, sub, run)
	h.mu.Unlock()

	unsubscribe := func() {
		l.Stop()
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-l.Done():
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		}
	}()
	return unsubscribe
}

// Publish re-runs every subscription over one of collections.
func (h *Hub) Publish(collections []Path, run Runner) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		for _, c := range collections {
			if sub.q.Collection == c {
				h.deliver(id, sub, run)
				break
			}
		}
	}
}

func (h *Hub) deliver(id uint64, sub *hubSub, run Runner) {
	docs, err := run(sub.ctx, sub.q)
	if err != nil {
		sub.l.Fail(err)
		delete(h.subs, id)
		return
	}
	sub.l.Push(Snapshot{Query: sub.q.String(), Docs: docs, ReadTime: h.clock()})
}

// Len is the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		sub.l.Fail(ErrClosed)
		delete(h.subs, id)
	}
}
