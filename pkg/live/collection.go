// Package live keeps a typed, in-memory view of a store query current as
// the store delivers snapshots.
package live

import (
	"context"
	"sync"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/errbus"
	"github.com/fintrack/fintrack/pkg/logger"
	"github.com/fintrack/fintrack/pkg/mutate"
)

// State is what a Collection currently shows.
//
// With no handle all fields are zero. While the first snapshot is pending
// Loading is set. After a snapshot Data holds its documents in store order
// (an empty, non-nil slice for an empty result). After a failure Data is nil
// and Err is an *errbus.PermissionError, or a *DecodeError when a document
// did not decode.
//
// Data is shared with the Collection and must not be modified.
type State[T any] struct {
	Data    []WithID[T]
	Loading bool
	Err     error
}

type Option func(*options)

type options struct {
	logger  logger.Logger
	debug   bool
	ctx     context.Context
	mutator *mutate.Mutator
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithDebug enables development checks such as the warning for handles
// that were not obtained from a Memo.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithContext sets the context subscriptions and deletes run with. Its
// values, such as the principal, are passed to the store.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		o.ctx = ctx
	}
}

// WithMutator sets the mutator optimistic deletes are issued through.
func WithMutator(m *mutate.Mutator) Option {
	return func(o *options) {
		o.mutator = m
	}
}

// Collection subscribes to the query of its current handle and exposes the
// latest snapshot, decoded into T, as State.
type Collection[T any] struct {
	store   docstore.Store
	bus     *errbus.Bus
	decode  Decoder[T]
	logger  logger.Logger
	debug   bool
	mutator *mutate.Mutator

	mu          sync.Mutex
	ctx         context.Context
	handle      *Handle
	gen         uint64
	unsubscribe docstore.Unsubscribe
	state       State[T]
	// version counts changes to state.Data.
	version uint64
	closed  bool

	changes chan struct{}
}

func NewCollection[T any](store docstore.Store, bus *errbus.Bus, opts ...Option) *Collection[T] {
	o := options{logger: logger.Nop(), ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mutator == nil {
		o.mutator = mutate.New(store, bus, mutate.WithLogger(o.logger))
	}
	return &Collection[T]{
		store:   store,
		bus:     bus,
		decode:  Decode[T],
		logger:  o.logger,
		debug:   o.debug,
		mutator: o.mutator,
		ctx:     o.ctx,
		changes: make(chan struct{}, 1),
	}
}

// SetDecoder replaces Decode[T]. It affects snapshots delivered afterwards.
func (c *Collection[T]) SetDecoder(d Decoder[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decode = d
}

// SetHandle switches the collection to h. Passing the handle already in
// use does nothing. Passing nil tears the subscription down and clears the
// state. Any other handle tears down the old subscription, resets the state
// to loading and subscribes to h's query.
func (c *Collection[T]) SetHandle(h *Handle) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	c.setHandle(ctx, h)
}

func (c *Collection[T]) setHandle(ctx context.Context, h *Handle) {
	c.mu.Lock()
	if c.closed || h == c.handle {
		c.mu.Unlock()
		return
	}
	old := c.unsubscribe
	c.unsubscribe = nil
	c.gen++
	gen := c.gen
	c.handle = h
	c.ctx = ctx
	if h == nil {
		c.state = State[T]{}
	} else {
		c.state = State[T]{Loading: true}
	}
	c.version++
	c.mu.Unlock()

	if old != nil {
		old()
	}
	c.notify()
	if h == nil {
		return
	}
	if c.debug && !h.Memoized() {
		c.logger.Warn("query handle was not memoized, it will resubscribe on every change", "query", h.String())
	}

	unsubscribe := c.store.Subscribe(ctx, h.Query(),
		func(s docstore.Snapshot) { c.apply(gen, s) },
		func(err error) { c.fail(gen, h, err) },
	)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		unsubscribe()
		return
	}
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

func (c *Collection[T]) apply(gen uint64, s docstore.Snapshot) {
	c.mu.Lock()
	decode := c.decode
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	data, err := decodeAll(decode, s.Docs)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.state = State[T]{Err: err}
	} else {
		c.state = State[T]{Data: data}
	}
	c.version++
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("snapshot did not decode", "query", s.Query, "error", err)
	}
	c.notify()
}

func (c *Collection[T]) fail(gen uint64, h *Handle, err error) {
	perr := errbus.NewPermissionError(docstore.OpList, h.Path(), err)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = State[T]{Err: perr}
	c.version++
	c.unsubscribe = nil
	c.mu.Unlock()

	c.logger.Debug("subscription failed", "query", h.String(), "error", err)
	c.notify()
	if c.bus != nil {
		c.bus.Emit(perr)
	}
}

// State returns the current state.
func (c *Collection[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Handle returns the handle in use, or nil.
func (c *Collection[T]) Handle() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Changes receives a value after the state changed. Changes that happen
// while nobody reads are coalesced.
func (c *Collection[T]) Changes() <-chan struct{} {
	return c.changes
}

func (c *Collection[T]) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// OptimisticDelete removes the item id from Data right away and then
// deletes collection/id in the store. If the delete fails, Data goes back
// to exactly what it was, unless a snapshot or another local change came in
// meanwhile; that newer state is kept. The failure itself is emitted on the
// error bus by the mutator.
func (c *Collection[T]) OptimisticDelete(id string, collection docstore.Path) *mutate.Task {
	c.mu.Lock()
	prev := c.state.Data
	if prev != nil {
		next := make([]WithID[T], 0, len(prev))
		for _, item := range prev {
			if item.ID != id {
				next = append(next, item)
			}
		}
		c.state.Data = next
	}
	c.version++
	version := c.version
	ctx := c.ctx
	c.mu.Unlock()
	c.notify()

	task := c.mutator.DeleteDocumentNonBlocking(ctx, collection.Child(id))
	go func() {
		<-task.Done()
		if task.Err() == nil {
			return
		}
		c.mu.Lock()
		if c.closed || c.version != version {
			c.mu.Unlock()
			c.logger.Debug("optimistic delete failed after newer state, not rolling back", "id", id)
			return
		}
		c.state.Data = prev
		c.version++
		c.mu.Unlock()
		c.notify()
	}()
	return task
}

// Close tears the subscription down. The collection keeps its last state.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
