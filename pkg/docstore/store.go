package docstore

import "context"

// Unsubscribe stops a subscription. It is safe to call more than once and
// from inside a snapshot callback.
type Unsubscribe func()

type setOptions struct {
	merge bool
}

type SetOption func(*setOptions)

// Merge makes Set merge the given fields into an existing document instead
// of replacing it.
func Merge() SetOption {
	return func(o *setOptions) {
		o.merge = true
	}
}

// ApplySetOptions folds opts into the merge flag carried by a Write.
func ApplySetOptions(opts []SetOption) (merge bool) {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.merge
}

// Store is a path-addressed document database with real-time subscriptions.
//
// The principal attached to ctx with WithPrincipal is checked against the
// store's Rules; denials wrap ErrPermissionDenied.
type Store interface {
	// Add creates a document with a generated id in collection and returns its path.
	Add(ctx context.Context, collection Path, data map[string]any) (Path, error)
	// Set creates or overwrites the document at doc.
	Set(ctx context.Context, doc Path, data map[string]any, opts ...SetOption) error
	// Update merges fields into an existing document. Keys may be dotted field paths.
	Update(ctx context.Context, doc Path, data map[string]any) error
	// Delete removes doc. Deleting a missing document is not an error.
	Delete(ctx context.Context, doc Path) error
	// Get returns the document at doc, or ErrNotFound.
	Get(ctx context.Context, doc Path) (*Document, error)
	// List runs q once.
	List(ctx context.Context, q *Query) ([]Document, error)
	// Subscribe delivers the current result of q and then a fresh full
	// result after every change to q's collection. Callbacks for one
	// subscription run sequentially in delivery order. Failures, including
	// a permission denial, are reported once through onError and end the
	// subscription. The subscription also ends when ctx is done.
	Subscribe(ctx context.Context, q *Query, onNext func(Snapshot), onError func(error)) Unsubscribe
	// Commit applies every write of b atomically.
	Commit(ctx context.Context, b *Batch) error
	Close() error
}
