// Package sqlstore is a docstore.Store on PostgreSQL through gorm. All
// documents live in one documents table keyed by (collection, id) with the
// data in a jsonb column.
//
// Filters and orders run in process over the collection, with the same
// semantics as memstore. Subscriptions see the writes made through the same
// Store value.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/logger"
)

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

type Store struct {
	db     *gorm.DB
	rules  docstore.Rules
	clock  func() time.Time
	logger logger.Logger
	newID  func() string
	hub    *docstore.Hub

	mu     sync.RWMutex
	closed bool
}

// Open connects to the database at dsn and migrates the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		rules:  docstore.AllowAll,
		clock:  time.Now,
		logger: logger.Nop(),
		newID:  docstore.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = docstore.NewHub(s.rules, s.clock)
	return s
}

// Migrate creates or updates the documents table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&row{})
}

func (s *Store) check(ctx context.Context, op docstore.Operation, path docstore.Path) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return docstore.ErrClosed
	}
	return docstore.Authorize(ctx, s.rules, op, path)
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
	r, err := s.load(s.db.WithContext(ctx), doc, false)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, doc)
	}
	d := r.document()
	return &d, nil
}

func (s *Store) load(tx *gorm.DB, doc docstore.Path, lock bool) (*row, error) {
	if lock {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var r row
	err := tx.Where("collection = ? AND id = ?", doc.Parent().String(), doc.ID()).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
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

func (s *Store) run(ctx context.Context, q *docstore.Query) ([]docstore.Document, error) {
	var rows []row
	if err := s.db.WithContext(ctx).Where("collection = ?", q.Collection.String()).Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return q.Run(docs), nil
}

func (s *Store) Subscribe(ctx context.Context, q *docstore.Query, onNext func(docstore.Snapshot), onError func(error)) docstore.Unsubscribe {
	if err := s.check(ctx, docstore.OpList, q.Collection); err != nil {
		l := docstore.NewListener(onNext, onError)
		l.Fail(err)
		return l.Stop
	}
	return s.hub.Subscribe(ctx, q, onNext, onError, s.run)
}

// Commit applies b in one transaction, locking the rows it reads.
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

	now := s.clock().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		staged := make(map[docstore.Path]*row, len(writes))
		for _, w := range writes {
			cur, seen := staged[w.Path]
			if !seen {
				var err error
				if cur, err = s.load(tx, w.Path, true); err != nil {
					return err
				}
			}
			exists := cur != nil
			var curData map[string]any
			if exists {
				curData = cur.Data
			}
			next, keep, err := docstore.Apply(curData, exists, w, now)
			if err != nil {
				return err
			}
			if !keep {
				staged[w.Path] = nil
				if err := tx.Where("collection = ? AND id = ?", w.Path.Parent().String(), w.Path.ID()).Delete(&row{}).Error; err != nil {
					return err
				}
				continue
			}
			d := docstore.Document{ID: w.Path.ID(), Path: w.Path, Data: next, CreateTime: now, UpdateTime: now}
			if exists {
				d.CreateTime = cur.CreatedAt
			}
			r := rowOf(d)
			staged[w.Path] = &r
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&r).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("sqlstore commit", "writes", len(writes))
	s.hub.Publish(b.Collections(), s.run)
	return nil
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
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ docstore.Store = (*Store)(nil)
