package live

import (
	"sync"

	"github.com/fintrack/fintrack/pkg/docstore"
)

// Handle identifies the query a Collection subscribes to. Collections
// resubscribe only when they get a different *Handle, so a handle must be
// reused for as long as its query is meant to stay the same. Memo hands out
// such stable handles.
type Handle struct {
	query    *docstore.Query
	key      string
	memoized bool
}

// NewHandle wraps q in a fresh handle that is not memoized.
func NewHandle(q *docstore.Query) *Handle {
	return &Handle{query: q, key: q.String()}
}

func (h *Handle) Query() *docstore.Query {
	return h.query
}

// Path is the collection the query runs over.
func (h *Handle) Path() docstore.Path {
	return h.query.Collection
}

func (h *Handle) String() string {
	return h.key
}

func (h *Handle) Memoized() bool {
	return h.memoized
}

// Memo returns one handle per distinct query.
type Memo struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

func NewMemo() *Memo {
	return &Memo{handles: make(map[string]*Handle)}
}

// Handle returns the handle for q, creating it on first use. Queries with
// the same canonical form share a handle.
func (m *Memo) Handle(q *docstore.Query) *Handle {
	key := q.String()
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[key]; ok {
		return h
	}
	h := &Handle{query: q, key: key, memoized: true}
	m.handles[key] = h
	return h
}

// Forget drops every handle over collection, e.g. after sign-out.
func (m *Memo) Forget(collection docstore.Path) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, h := range m.handles {
		if h.query.Collection == collection {
			delete(m.handles, key)
		}
	}
}

func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
