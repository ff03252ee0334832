// Package mutate issues store writes without making the caller wait for
// them. Failures never reach the caller's control flow: each one is wrapped
// in an errbus.PermissionError and emitted on the bus.
package mutate

import (
	"context"
	"sync"
	"time"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/errbus"
	"github.com/fintrack/fintrack/pkg/logger"
)

type Option func(*Mutator)

func WithLogger(l logger.Logger) Option {
	return func(m *Mutator) {
		m.logger = l
	}
}

// WithTimeout bounds every write. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(m *Mutator) {
		m.timeout = d
	}
}

type Mutator struct {
	store   docstore.Store
	bus     *errbus.Bus
	logger  logger.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func New(store docstore.Store, bus *errbus.Bus, opts ...Option) *Mutator {
	m := &Mutator{
		store:  store,
		bus:    bus,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddDocumentNonBlocking creates a document with a generated id in collection.
func (m *Mutator) AddDocumentNonBlocking(ctx context.Context, collection docstore.Path, data map[string]any) *Task {
	return m.Go(ctx, docstore.OpCreate, collection, func(ctx context.Context) (docstore.Path, error) {
		return m.store.Add(ctx, collection, data)
	})
}

func (m *Mutator) SetDocumentNonBlocking(ctx context.Context, doc docstore.Path, data map[string]any, opts ...docstore.SetOption) *Task {
	return m.Go(ctx, docstore.OpWrite, doc, func(ctx context.Context) (docstore.Path, error) {
		return doc, m.store.Set(ctx, doc, data, opts...)
	})
}

func (m *Mutator) UpdateDocumentNonBlocking(ctx context.Context, doc docstore.Path, data map[string]any) *Task {
	return m.Go(ctx, docstore.OpUpdate, doc, func(ctx context.Context) (docstore.Path, error) {
		return doc, m.store.Update(ctx, doc, data)
	})
}

func (m *Mutator) DeleteDocumentNonBlocking(ctx context.Context, doc docstore.Path) *Task {
	return m.Go(ctx, docstore.OpDelete, doc, func(ctx context.Context) (docstore.Path, error) {
		return doc, m.store.Delete(ctx, doc)
	})
}

// CommitNonBlocking applies b atomically. A failure is reported as a write
// on the first document of the batch.
func (m *Mutator) CommitNonBlocking(ctx context.Context, b *docstore.Batch) *Task {
	var path docstore.Path
	if writes := b.Writes(); len(writes) > 0 {
		path = writes[0].Path
	}
	return m.Go(ctx, docstore.OpWrite, path, func(ctx context.Context) (docstore.Path, error) {
		return path, m.store.Commit(ctx, b)
	})
}

// Go runs write on its own goroutine. The write keeps the values of ctx,
// such as the principal, but not its cancellation: once issued it runs to
// completion even if the caller is gone.
func (m *Mutator) Go(ctx context.Context, op docstore.Operation, path docstore.Path, write func(context.Context) (docstore.Path, error)) *Task {
	t := newTask(op, path)
	wctx := context.WithoutCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		var cancel context.CancelFunc = func() {}
		if m.timeout > 0 {
			wctx, cancel = context.WithTimeout(wctx, m.timeout)
		}
		defer cancel()

		result, err := write(wctx)
		if err != nil {
			m.logger.Debug("write failed", "operation", string(op), "path", path.String(), "error", err)
			if m.bus != nil {
				m.bus.Emit(errbus.NewPermissionError(op, path, err))
			}
		} else {
			m.logger.Debug("write settled", "operation", string(op), "path", result.String())
		}
		t.finish(result, err)
	}()
	return t
}

// Wait blocks until every write issued so far has settled.
func (m *Mutator) Wait() {
	m.wg.Wait()
}
