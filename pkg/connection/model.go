package connection

import (
	"errors"

	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
)

// Error codes carried by RPCError. They follow HTTP status codes.
const (
	CodeInvalidArgument  = 400
	CodeUnauthenticated  = 401
	CodePermissionDenied = 403
	CodeNotFound         = 404
	CodeUnknownMethod    = 405
	CodeAlreadyExists    = 409
	CodeClosed           = 410
	CodeInternal         = 500
)

// RPCError is an error returned by the server for one request.
type RPCError struct {
	Code        int    `json:"code"`
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r RPCError) Error() string {
	if r.Description != "" {
		return r.Description
	}
	return r.Message
}

func (r *RPCError) Is(target error) bool {
	if target == nil {
		return r == nil
	}

	_, ok := target.(*RPCError)
	return ok
}

// Unwrap maps the code back onto the store error it was produced from, so
// callers can test remote failures with errors.Is like local ones.
func (r *RPCError) Unwrap() error {
	switch r.Code {
	case CodeInvalidArgument:
		return docstore.ErrInvalidArgument
	case CodeUnauthenticated, CodePermissionDenied:
		return docstore.ErrPermissionDenied
	case CodeNotFound:
		return docstore.ErrNotFound
	case CodeUnknownMethod:
		return constants.ErrMethodNotAvailable
	case CodeAlreadyExists:
		return docstore.ErrAlreadyExists
	case CodeClosed:
		return docstore.ErrClosed
	}
	return nil
}

// ErrorFor converts a store error into the RPCError sent for it.
func ErrorFor(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	code := CodeInternal
	switch {
	case errors.Is(err, docstore.ErrPermissionDenied):
		code = CodePermissionDenied
	case errors.Is(err, docstore.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, docstore.ErrAlreadyExists):
		code = CodeAlreadyExists
	case errors.Is(err, docstore.ErrInvalidArgument), errors.Is(err, docstore.ErrInvalidPath):
		code = CodeInvalidArgument
	case errors.Is(err, docstore.ErrClosed):
		code = CodeClosed
	case errors.Is(err, constants.ErrMethodNotAvailable):
		code = CodeUnknownMethod
	}
	return &RPCError{Code: code, Message: err.Error()}
}

// RPCRequest is a request sent by the client.
type RPCRequest struct {
	ID     any    `json:"id"`
	Method string `json:"method,omitempty"`
	Params []any  `json:"params,omitempty"`
}

// RPCResponse answers the request with the same ID. Responses without an
// ID carry a Notification as their Result.
type RPCResponse[T any] struct {
	ID     any       `json:"id"`
	Error  *RPCError `json:"error,omitempty"`
	Result *T        `json:"result,omitempty"`
}

// Notification is pushed for a subscription: either its next snapshot or
// the error that ended it.
type Notification struct {
	ID       string             `json:"id"`
	Snapshot *docstore.Snapshot `json:"snapshot,omitempty"`
	Error    *RPCError          `json:"error,omitempty"`
}

type RPCFunction string

var (
	Authenticate RPCFunction = "authenticate"
	Invalidate   RPCFunction = "invalidate"
	Add          RPCFunction = "add"
	Set          RPCFunction = "set"
	Update       RPCFunction = "update"
	Delete       RPCFunction = "delete"
	Get          RPCFunction = "get"
	List         RPCFunction = "list"
	Commit       RPCFunction = "commit"
	Subscribe    RPCFunction = "subscribe"
	Unsubscribe  RPCFunction = "unsubscribe"
)

func (f RPCFunction) String() string {
	return string(f)
}
