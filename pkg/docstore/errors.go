package docstore

import "errors"

var (
	ErrPermissionDenied = errors.New("missing or insufficient permissions")
	ErrNotFound         = errors.New("document not found")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrInvalidPath      = errors.New("invalid path")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrClosed           = errors.New("store closed")
)
