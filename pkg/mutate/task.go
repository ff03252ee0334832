package mutate

import (
	"context"

	"github.com/fintrack/fintrack/pkg/docstore"
)

// Task is a write that runs detached from its caller. Its outcome is also
// reported on the error bus, so callers may drop it.
type Task struct {
	op   docstore.Operation
	path docstore.Path

	done   chan struct{}
	err    error
	result docstore.Path
}

func newTask(op docstore.Operation, path docstore.Path) *Task {
	return &Task{op: op, path: path, result: path, done: make(chan struct{})}
}

// Done is closed when the write settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the write settled or ctx is done. It returns the
// write's error, or ctx's error if ctx ended first; the write keeps running
// in that case.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is the write's error once settled, nil before.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task) Settled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) Operation() docstore.Operation {
	return t.op
}

// Path is the written document. For an add it is the collection until the
// write succeeds and the generated document path afterwards.
func (t *Task) Path() docstore.Path {
	select {
	case <-t.done:
		return t.result
	default:
		return t.path
	}
}

func (t *Task) finish(result docstore.Path, err error) {
	if result != "" {
		t.result = result
	}
	t.err = err
	close(t.done)
}
