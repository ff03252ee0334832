package errbus

import (
	"errors"
	"fmt"

	"github.com/fintrack/fintrack/pkg/docstore"
)

// PermissionError is the one failure shape reported to users: which
// operation failed and on which path. Cause keeps the store's own error.
type PermissionError struct {
	Operation docstore.Operation
	Path      string
	Cause     error
}

func NewPermissionError(op docstore.Operation, path docstore.Path, cause error) *PermissionError {
	return &PermissionError{Operation: op, Path: path.String(), Cause: cause}
}

func (e *PermissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("missing or insufficient permissions: %s at %s: %v", e.Operation, e.Path, e.Cause)
	}
	return fmt.Sprintf("missing or insufficient permissions: %s at %s", e.Operation, e.Path)
}

func (e *PermissionError) Unwrap() error {
	return e.Cause
}

// Denied reports whether the store actually refused the operation, as
// opposed to failing for another reason such as a lost connection.
func (e *PermissionError) Denied() bool {
	return errors.Is(e.Cause, docstore.ErrPermissionDenied)
}
