package live

import (
	"context"
	"sync"

	"github.com/fintrack/fintrack/pkg/auth"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/errbus"
)

// QueryFunc refines the base query over a user's collection, e.g. to add
// an order.
type QueryFunc func(*docstore.Query) *docstore.Query

// UserCollection is a Collection over users/{uid}/{name} for whoever is
// signed in. It resubscribes when the identity changes and clears when
// nobody is signed in.
type UserCollection[T any] struct {
	*Collection[T]

	name   string
	memo   *Memo
	refine QueryFunc
	base   context.Context

	mu   sync.Mutex
	uid  string
	stop func()
}

func NewUserCollection[T any](store docstore.Store, bus *errbus.Bus, provider auth.Provider, memo *Memo, name string, refine QueryFunc, opts ...Option) *UserCollection[T] {
	c := NewCollection[T](store, bus, opts...)
	if memo == nil {
		memo = NewMemo()
	}
	u := &UserCollection[T]{
		Collection: c,
		name:       name,
		memo:       memo,
		refine:     refine,
		base:       c.ctx,
	}
	u.stop = provider.OnChange(u.identityChanged)
	return u
}

func (u *UserCollection[T]) identityChanged(user *auth.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	prev := u.uid
	if user == nil {
		u.uid = ""
		u.setHandle(u.base, nil)
	} else {
		u.uid = user.UID
		u.setHandle(auth.Context(u.base, user), u.memo.Handle(u.query(user.UID)))
	}
	// Handles of a previous user are never asked for again.
	if prev != "" && prev != u.uid {
		u.memo.Forget(docstore.UserCollection(prev, u.name))
	}
}

func (u *UserCollection[T]) query(uid string) *docstore.Query {
	q := docstore.Collection(docstore.UserCollection(uid, u.name))
	if u.refine != nil {
		q = u.refine(q)
	}
	return q
}

// Path is the collection of the signed-in user, or "" when signed out.
func (u *UserCollection[T]) Path() docstore.Path {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.uid == "" {
		return ""
	}
	return docstore.UserCollection(u.uid, u.name)
}

// Delete optimistically deletes id from the signed-in user's collection.
func (u *UserCollection[T]) Delete(id string) error {
	p := u.Path()
	if p == "" {
		return constants.ErrNotSignedIn
	}
	u.OptimisticDelete(id, p)
	return nil
}

func (u *UserCollection[T]) Close() {
	u.stop()
	u.Collection.Close()
}
