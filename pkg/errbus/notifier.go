package errbus

import (
	"fmt"

	"github.com/fintrack/fintrack/pkg/logger"
)

// Toast is a user-facing failure notice.
type Toast struct {
	Title       string
	Description string
	Destructive bool
}

// Sink renders toasts.
type Sink func(Toast)

// Notifier is the single application-level listener that turns permission
// errors into toasts.
type Notifier struct {
	sink        Sink
	unsubscribe func()
}

// LogSink writes toasts to l at warn level.
func LogSink(l logger.Logger) Sink {
	return func(t Toast) {
		l.Warn(t.Title, "description", t.Description)
	}
}

// NewNotifier subscribes to bus. A nil sink logs through l.
func NewNotifier(bus *Bus, l logger.Logger, sink Sink) *Notifier {
	if l == nil {
		l = logger.Nop()
	}
	if sink == nil {
		sink = LogSink(l)
	}
	n := &Notifier{sink: sink}
	n.unsubscribe = bus.Subscribe(n.handle)
	return n
}

func (n *Notifier) handle(err *PermissionError) {
	n.sink(ToastFor(err))
}

// ToastFor builds the uniform message for err.
func ToastFor(err *PermissionError) Toast {
	title := "Something went wrong"
	if err.Denied() {
		title = "Permission denied"
	}
	return Toast{
		Title:       title,
		Description: fmt.Sprintf("Could not %s %s.", err.Operation, err.Path),
		Destructive: true,
	}
}

func (n *Notifier) Close() {
	n.unsubscribe()
}
