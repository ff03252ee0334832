package errbus

import (
	"sync"

	"github.com/fintrack/fintrack/pkg/logger"
)

// Listener receives every emitted error. It runs on the emitter's goroutine
// and must not block.
type Listener func(*PermissionError)

// Bus carries permission errors from wherever they happen to whoever shows
// them to the user. Create one per process, share it by injection, and Close
// it on shutdown; Emit after Close is a no-op.
type Bus struct {
	logger logger.Logger

	mu        sync.RWMutex
	listeners map[uint64]Listener
	next      uint64
	closed    bool
}

func New(l logger.Logger) *Bus {
	if l == nil {
		l = logger.Nop()
	}
	return &Bus{
		logger:    l,
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe adds fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return func() {}
	}
	b.next++
	id := b.next
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Emit hands err to every listener. A panicking listener is logged and does
// not prevent delivery to the others.
func (b *Bus) Emit(err *PermissionError) {
	if err == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	listeners := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	if len(listeners) == 0 {
		b.logger.Warn("permission error without listener", "operation", string(err.Operation), "path", err.Path, "error", err.Cause)
		return
	}
	for _, fn := range listeners {
		b.call(fn, err)
	}
}

func (b *Bus) call(fn Listener, err *PermissionError) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("error bus listener panicked", "panic", r)
		}
	}()
	fn(err)
}

// Listeners is the number of subscribed listeners.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = map[uint64]Listener{}
}
