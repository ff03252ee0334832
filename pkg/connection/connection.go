// Package connection is the client side of the store protocol: CBOR
// encoded RPC over a websocket, exposed as a docstore.Store.
package connection

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/fintrack/fintrack/internal/codec"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/logger"
)

type NewConnectionParams struct {
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	// BaseURL is the server address such as "ws://localhost:8080". The
	// client connects to its /rpc endpoint.
	BaseURL string
	// Token authenticates the session right after connecting when set.
	Token  string
	Logger logger.Logger
}

type BaseConnection struct {
	baseURL     string
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
	logger      logger.Logger

	responseChannels     map[string]chan RPCResponse[cbor.RawMessage]
	responseChannelsLock sync.RWMutex

	subscriptions     map[string]*docstore.Listener
	subscriptionsLock sync.RWMutex
}

func newBaseConnection(p NewConnectionParams) BaseConnection {
	if p.Marshaler == nil && p.Unmarshaler == nil {
		c := codec.New()
		p.Marshaler, p.Unmarshaler = c, c
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	return BaseConnection{
		baseURL:          p.BaseURL,
		marshaler:        p.Marshaler,
		unmarshaler:      p.Unmarshaler,
		logger:           p.Logger,
		responseChannels: make(map[string]chan RPCResponse[cbor.RawMessage]),
		subscriptions:    make(map[string]*docstore.Listener),
	}
}

func (bc *BaseConnection) createResponseChannel(id string) (chan RPCResponse[cbor.RawMessage], error) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()

	if _, ok := bc.responseChannels[id]; ok {
		return nil, fmt.Errorf("%w: %v", constants.ErrIDInUse, id)
	}

	// buffered so the read loop never waits for a caller that gave up
	ch := make(chan RPCResponse[cbor.RawMessage], 1)
	bc.responseChannels[id] = ch

	return ch, nil
}

func (bc *BaseConnection) removeResponseChannel(id string) {
	bc.responseChannelsLock.Lock()
	defer bc.responseChannelsLock.Unlock()
	delete(bc.responseChannels, id)
}

func (bc *BaseConnection) getResponseChannel(id string) (chan RPCResponse[cbor.RawMessage], bool) {
	bc.responseChannelsLock.RLock()
	defer bc.responseChannelsLock.RUnlock()
	ch, ok := bc.responseChannels[id]
	return ch, ok
}

func (bc *BaseConnection) addSubscription(id string, l *docstore.Listener) error {
	bc.subscriptionsLock.Lock()
	defer bc.subscriptionsLock.Unlock()

	if _, ok := bc.subscriptions[id]; ok {
		return fmt.Errorf("%w: %v", constants.ErrIDInUse, id)
	}
	bc.subscriptions[id] = l
	return nil
}

func (bc *BaseConnection) getSubscription(id string) (*docstore.Listener, bool) {
	bc.subscriptionsLock.RLock()
	defer bc.subscriptionsLock.RUnlock()
	l, ok := bc.subscriptions[id]
	return l, ok
}

// removeSubscription reports whether id was still registered.
func (bc *BaseConnection) removeSubscription(id string) bool {
	bc.subscriptionsLock.Lock()
	defer bc.subscriptionsLock.Unlock()
	_, ok := bc.subscriptions[id]
	delete(bc.subscriptions, id)
	return ok
}

// failSubscriptions ends every subscription with err.
func (bc *BaseConnection) failSubscriptions(err error) {
	bc.subscriptionsLock.Lock()
	defer bc.subscriptionsLock.Unlock()
	for id, l := range bc.subscriptions {
		l.Fail(err)
		delete(bc.subscriptions, id)
	}
}

func (bc *BaseConnection) preConnectionChecks() error {
	if bc.baseURL == "" {
		return constants.ErrNoStoreURL
	}

	if bc.marshaler == nil {
		return constants.ErrNoMarshaler
	}

	if bc.unmarshaler == nil {
		return constants.ErrNoUnmarshaler
	}

	return nil
}
