package constants

import "errors"

var (
	ErrIDInUse            = errors.New("id already in use")
	ErrTimeout            = errors.New("timeout")
	ErrNoStoreURL         = errors.New("store url not set")
	ErrUnsupportedScheme  = errors.New("unsupported store url scheme")
	ErrNoMarshaler        = errors.New("marshaler is not set")
	ErrNoUnmarshaler      = errors.New("unmarshaler is not set")
	ErrConnectionClosed   = errors.New("connection closed")
	ErrMethodNotAvailable = errors.New("method not available on this connection")
	ErrNotSignedIn        = errors.New("no signed-in user")
)
