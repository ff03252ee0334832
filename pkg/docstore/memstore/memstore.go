// Package memstore is an in-process docstore.Store. It backs tests, the
// development server and offline use of the client.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/logger"
)

// Interceptor runs before every operation reaches the data. A non-nil error
// fails the operation. Tests use it to inject failures and delays.
type Interceptor func(ctx context.Context, op docstore.Operation, path docstore.Path) error

type Option func(*Store)

func WithRules(r docstore.Rules) Option {
	return func(s *Store) {
		s.rules = r
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func WithInterceptor(fn Interceptor) Option {
	return func(s *Store) {
		s.intercept = fn
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

type Store struct {
	rules     docstore.Rules
	clock     func() time.Time
	logger    logger.Logger
	intercept Interceptor
	newID     func() string

	mu          sync.RWMutex
	collections map[docstore.Path]map[string]docstore.Document
	closed      bool

	hub *docstore.Hub
}

func New(opts ...Option) *Store {
	s := &Store{
		rules:       docstore.AllowAll,
		clock:       time.Now,
		logger:      logger.Nop(),
		newID:       docstore.NewID,
		collections: make(map[docstore.Path]map[string]docstore.Document),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = docstore.NewHub(s.rules, s.clock)
	return s
}

// SetInterceptor replaces the interceptor at runtime.
func (s *Store) SetInterceptor(fn Interceptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intercept = fn
}

func (s *Store) check(ctx context.Context, op docstore.Operation, path docstore.Path) error {
	s.mu.RLock()
	closed, intercept := s.closed, s.intercept
	s.mu.RUnlock()
	if closed {
		return docstore.ErrClosed
	}
	if err := docstore.Authorize(ctx, s.rules, op, path); err != nil {
		return err
	}
	if intercept != nil {
		return intercept(ctx, op, path)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection docstore.Path, data map[string]any) (docstore.Path, error) {
	if err := collection.ValidateCollection(); err != nil {
		return "", err
	}
	doc := collection.Child(s.newID())
	if err := s.Commit(ctx, docstore.NewBatch().Create(doc, data)); err != nil {
		return "", err
	}
	return doc, nil
}

func (s *Store) Set(ctx context.Context, doc docstore.Path, data map[string]any, opts ...docstore.SetOption) error {
	return s.Commit(ctx, docstore.NewBatch().Set(doc, data, opts...))
}

func (s *Store) Update(ctx context.Context, doc docstore.Path, data map[string]any) error {
	return s.Commit(ctx, docstore.NewBatch().Update(doc, data))
}

func (s *Store) Delete(ctx context.Context, doc docstore.Path) error {
	return s.Commit(ctx, docstore.NewBatch().Delete(doc))
}

func (s *Store) Get(ctx context.Context, doc docstore.Path) (*docstore.Document, error) {
	if err := doc.ValidateDocument(); err != nil {
		return nil, err
	}
	if err := s.check(ctx, docstore.OpGet, doc); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.collections[doc.Parent()][doc.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, doc)
	}
	c := d.Clone()
	return &c, nil
}

func (s *Store) List(ctx context.Context, q *docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := s.check(ctx, docstore.OpList, q.Collection); err != nil {
		return nil, err
	}
	return s.run(ctx, q)
}

func (s *Store) run(_ context.Context, q *docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.collections[q.Collection]
	docs := make([]docstore.Document, 0, len(col))
	for _, d := range col {
		docs = append(docs, d)
	}
	out := q.Run(docs)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, q *docstore.Query, onNext func(docstore.Snapshot), onError func(error)) docstore.Unsubscribe {
	if err := s.check(ctx, docstore.OpList, q.Collection); err != nil {
		l := docstore.NewListener(onNext, onError)
		l.Fail(err)
		return l.Stop
	}
	return s.hub.Subscribe(ctx, q, onNext, onError, s.run)
}

// Commit validates and authorizes every write, then applies them all under
// one lock. Subscribers of the touched collections are notified afterwards.
func (s *Store) Commit(ctx context.Context, b *docstore.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}
	writes := b.Writes()
	for _, w := range writes {
		if err := s.check(ctx, w.Operation(), w.Path); err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return docstore.ErrClosed
	}
	now := s.clock()
	staged := make(map[docstore.Path]*docstore.Document, len(writes))
	lookup := func(p docstore.Path) (*docstore.Document, bool) {
		if d, ok := staged[p]; ok {
			return d, d != nil
		}
		d, ok := s.collections[p.Parent()][p.ID()]
		if !ok {
			return nil, false
		}
		return &d, true
	}
	for _, w := range writes {
		cur, exists := lookup(w.Path)
		var curData map[string]any
		if exists {
			curData = cur.Data
		}
		next, keep, err := docstore.Apply(curData, exists, w, now)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if !keep {
			staged[w.Path] = nil
			continue
		}
		d := docstore.Document{ID: w.Path.ID(), Path: w.Path, Data: next, CreateTime: now, UpdateTime: now}
		if exists {
			d.CreateTime = cur.CreateTime
		}
		staged[w.Path] = &d
	}
	for p, d := range staged {
		col := s.collections[p.Parent()]
		if d == nil {
			delete(col, p.ID())
			continue
		}
		if col == nil {
			col = make(map[string]docstore.Document)
			s.collections[p.Parent()] = col
		}
		col[p.ID()] = *d
	}
	s.mu.Unlock()

	s.logger.Debug("memstore commit", "writes", len(writes))
	s.hub.Publish(b.Collections(), s.run)
	return nil
}

// Len is the number of documents stored in collection.
func (s *Store) Len(collection docstore.Path) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Subscriptions is the number of live subscriptions.
func (s *Store) Subscriptions() int {
	return s.hub.Len()
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

var _ docstore.Store = (*Store)(nil)
