package memstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/docstore/memstore"
)

type MemstoreTestSuite struct {
	suite.Suite
	store *memstore.Store
	ctx   context.Context
	col   docstore.Path
}

func TestMemstoreTestSuite(t *testing.T) {
	suite.Run(t, new(MemstoreTestSuite))
}

func (s *MemstoreTestSuite) SetupTest() {
	s.store = memstore.New(memstore.WithRules(docstore.OwnerRules))
	s.ctx = docstore.WithPrincipal(context.Background(), docstore.Principal{UID: "u1"})
	s.col = docstore.UserCollection("u1", "expenses")
}

func (s *MemstoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *MemstoreTestSuite) TestCRUD() {
	p, err := s.store.Add(s.ctx, s.col, map[string]any{"amount": 12.5, "category": "food"})
	s.Require().NoError(err)
	s.Equal(s.col, p.Parent())

	got, err := s.store.Get(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(p.ID(), got.ID)
	s.Equal("food", got.Data["category"])

	s.Require().NoError(s.store.Update(s.ctx, p, map[string]any{"category": "groceries"}))
	got, err = s.store.Get(s.ctx, p)
	s.Require().NoError(err)
	s.Equal("groceries", got.Data["category"])
	s.Equal(12.5, got.Data["amount"])

	s.Require().NoError(s.store.Set(s.ctx, p, map[string]any{"amount": 1.0}))
	got, err = s.store.Get(s.ctx, p)
	s.Require().NoError(err)
	s.NotContains(got.Data, "category")

	s.Require().NoError(s.store.Delete(s.ctx, p))
	_, err = s.store.Get(s.ctx, p)
	s.ErrorIs(err, docstore.ErrNotFound)
	s.Require().NoError(s.store.Delete(s.ctx, p))
}

func (s *MemstoreTestSuite) TestReturnedDataIsACopy() {
	p := s.col.Child("e1")
	s.Require().NoError(s.store.Set(s.ctx, p, map[string]any{"tags": []any{"a"}}))
	got, err := s.store.Get(s.ctx, p)
	s.Require().NoError(err)
	got.Data["tags"].([]any)[0] = "mutated"

	again, err := s.store.Get(s.ctx, p)
	s.Require().NoError(err)
	s.Equal("a", again.Data["tags"].([]any)[0])
}

func (s *MemstoreTestSuite) TestPermissionDenied() {
	other := docstore.UserCollection("u2", "expenses")
	_, err := s.store.Add(s.ctx, other, map[string]any{"amount": 1})
	s.ErrorIs(err, docstore.ErrPermissionDenied)
	_, err = s.store.List(s.ctx, docstore.Collection(other))
	s.ErrorIs(err, docstore.ErrPermissionDenied)
	s.ErrorIs(s.store.Delete(s.ctx, other.Child("x")), docstore.ErrPermissionDenied)
}

func (s *MemstoreTestSuite) TestCommitIsAtomic() {
	goal := docstore.UserCollection("u1", "savingsGoals").Child("g1")
	s.Require().NoError(s.store.Set(s.ctx, goal, map[string]any{"saved": 10.0}))

	err := s.store.Commit(s.ctx, docstore.NewBatch().
		Update(goal, map[string]any{"saved": docstore.Increment(5)}).
		Update(s.col.Child("missing"), map[string]any{"a": 1}))
	s.ErrorIs(err, docstore.ErrNotFound)

	got, err := s.store.Get(s.ctx, goal)
	s.Require().NoError(err)
	s.Equal(10.0, got.Data["saved"])

	s.Require().NoError(s.store.Commit(s.ctx, docstore.NewBatch().
		Update(goal, map[string]any{"saved": docstore.Increment(5)}).
		Create(s.col.Child("e1"), map[string]any{"amount": 5.0})))
	got, err = s.store.Get(s.ctx, goal)
	s.Require().NoError(err)
	s.Equal(15.0, got.Data["saved"])
	s.Equal(1, s.store.Len(s.col))
}

func (s *MemstoreTestSuite) TestCommitCreateThenUpdateInOneBatch() {
	p := s.col.Child("e1")
	s.Require().NoError(s.store.Commit(s.ctx, docstore.NewBatch().
		Create(p, map[string]any{"amount": 1.0}).
		Update(p, map[string]any{"amount": docstore.Increment(1)})))
	got, err := s.store.Get(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(2.0, got.Data["amount"])
}

func (s *MemstoreTestSuite) TestSubscribeDeliversFullSnapshots() {
	var mu sync.Mutex
	var snaps []docstore.Snapshot
	got := make(chan struct{}, 10)
	unsub := s.store.Subscribe(s.ctx, docstore.Collection(s.col).OrderBy("amount", docstore.Asc), func(snap docstore.Snapshot) {
		mu.Lock()
		snaps = append(snaps, snap)
		mu.Unlock()
		got <- struct{}{}
	}, func(err error) {
		s.Fail("unexpected error", err)
	})
	defer unsub()

	waitN(s.T(), got, 1)
	_, err := s.store.Add(s.ctx, s.col, map[string]any{"amount": 2.0})
	s.Require().NoError(err)
	_, err = s.store.Add(s.ctx, s.col, map[string]any{"amount": 1.0})
	s.Require().NoError(err)
	waitN(s.T(), got, 2)

	mu.Lock()
	defer mu.Unlock()
	s.Len(snaps[0].Docs, 0)
	s.Len(snaps[1].Docs, 1)
	s.Require().Len(snaps[2].Docs, 2)
	s.Equal(1.0, snaps[2].Docs[0].Data["amount"])
	s.Equal(1, s.store.Subscriptions())
}

func (s *MemstoreTestSuite) TestSubscribeDenied() {
	errs := make(chan error, 1)
	s.store.Subscribe(s.ctx, docstore.Collection(docstore.UserCollection("u2", "expenses")), func(docstore.Snapshot) {
		s.Fail("no snapshot expected")
	}, func(err error) {
		errs <- err
	})
	select {
	case err := <-errs:
		s.ErrorIs(err, docstore.ErrPermissionDenied)
	case <-time.After(time.Second):
		s.Fail("timeout")
	}
}

func (s *MemstoreTestSuite) TestInterceptor() {
	boom := errors.New("boom")
	s.store.SetInterceptor(func(_ context.Context, op docstore.Operation, _ docstore.Path) error {
		if op == docstore.OpDelete {
			return boom
		}
		return nil
	})
	p := s.col.Child("e1")
	s.Require().NoError(s.store.Set(s.ctx, p, map[string]any{"a": 1}))
	s.ErrorIs(s.store.Delete(s.ctx, p), boom)
	s.Equal(1, s.store.Len(s.col))
}

func TestClosedStore(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Add(context.Background(), "expenses", map[string]any{})
	assert.ErrorIs(t, err, docstore.ErrClosed)
}

func TestDeterministicIDs(t *testing.T) {
	n := 0
	store := memstore.New(memstore.WithIDGenerator(func() string {
		n++
		return "id" + string(rune('0'+n))
	}))
	p, err := store.Add(context.Background(), "expenses", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, docstore.Path("expenses/id1"), p)
}

func waitN(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %d of %d", i+1, n)
		}
	}
}
