package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid"
	gorilla "github.com/gorilla/websocket"

	"github.com/fintrack/fintrack/pkg/constants"
)

// DefaultDialer is the gorilla default dialer with compression enabled and
// the cbor subprotocol requested.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
	Subprotocols:      []string{"cbor"},
}

// WebSocket is a docstore.Store backed by a store server.
//
// Requests run as the principal the session was authenticated with; a
// principal attached to the context is not sent.
type WebSocket struct {
	BaseConnection

	Conn     *gorilla.Conn
	connLock sync.Mutex
	// Timeout bounds the wait for each response. Zero disables it and
	// leaves deadlines to the caller's context.
	Timeout time.Duration
	token   string

	stateLock sync.Mutex
	state     State

	closeChan  chan struct{}
	closeOnce  sync.Once
	closeError error
}

func NewWebSocket(p NewConnectionParams) *WebSocket {
	return &WebSocket{
		BaseConnection: newBaseConnection(p),
		Timeout:        constants.DefaultWSTimeout,
		token:          p.Token,
		closeChan:      make(chan struct{}),
	}
}

// Dial connects to baseURL and authenticates with token when it is set.
func Dial(ctx context.Context, p NewConnectionParams) (*WebSocket, error) {
	ws := NewWebSocket(p)
	if err := ws.Connect(ctx); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *WebSocket) SetTimeOut(timeout time.Duration) *WebSocket {
	ws.Timeout = timeout
	return ws
}

func (ws *WebSocket) State() State {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()
	return ws.state
}

func (ws *WebSocket) transition(next State) error {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()
	s, err := ws.state.TransitionTo(next)
	ws.state = s
	return err
}

func (ws *WebSocket) Connect(ctx context.Context) error {
	if err := ws.preConnectionChecks(); err != nil {
		return err
	}
	if err := ws.transition(StateConnecting); err != nil {
		return err
	}

	conn, res, err := DefaultDialer.DialContext(ctx, fmt.Sprintf("%s/rpc", ws.baseURL), nil)
	if err != nil {
		_ = ws.transition(StateDisconnected)
		return err
	}
	defer res.Body.Close()

	ws.Conn = conn
	if err := ws.transition(StateConnected); err != nil {
		return err
	}
	go ws.readLoop()

	if ws.token != "" {
		if err := ws.Authenticate(ctx, ws.token); err != nil {
			_ = ws.Close()
			return err
		}
	}
	return nil
}

// Authenticate binds the session to the principal named by token.
func (ws *WebSocket) Authenticate(ctx context.Context, token string) error {
	if _, err := ws.Send(ctx, Authenticate, token); err != nil {
		return err
	}
	ws.token = token
	return nil
}

// Invalidate drops the session's principal.
func (ws *WebSocket) Invalidate(ctx context.Context) error {
	_, err := ws.Send(ctx, Invalidate)
	return err
}

// Send calls method and waits for its response. An RPCError returned by the
// server is returned as the error.
func (ws *WebSocket) Send(ctx context.Context, method RPCFunction, params ...any) (*RPCResponse[cbor.RawMessage], error) {
	if ws.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.Timeout)
		defer cancel()
	}

	select {
	case <-ws.closeChan:
		return nil, ws.closeError
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	id := uuid.Must(uuid.NewV4()).String()
	request := &RPCRequest{
		ID:     id,
		Method: method.String(),
		Params: params,
	}

	responseChan, err := ws.createResponseChannel(id)
	if err != nil {
		return nil, err
	}
	defer ws.removeResponseChannel(id)

	if err := ws.write(request); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", constants.ErrTimeout, method)
		}
		return nil, ctx.Err()
	case <-ws.closeChan:
		return nil, ws.closeError
	case res := <-responseChan:
		if res.Error != nil {
			return &res, res.Error
		}
		return &res, nil
	}
}

func (ws *WebSocket) write(v any) error {
	data, err := ws.marshaler.Marshal(v)
	if err != nil {
		return err
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()
	return ws.Conn.WriteMessage(gorilla.BinaryMessage, data)
}

// readLoop handles messages one at a time so notifications reach each
// subscription in the order the server sent them.
func (ws *WebSocket) readLoop() {
	for {
		_, data, err := ws.Conn.ReadMessage()
		if err != nil {
			ws.shutdown(err)
			return
		}
		ws.handleMessage(data)
	}
}

func (ws *WebSocket) handleMessage(data []byte) {
	var res RPCResponse[cbor.RawMessage]
	if err := ws.unmarshaler.Unmarshal(data, &res); err != nil {
		ws.logger.Error("undecodable message", "error", err)
		return
	}

	if res.ID != nil && res.ID != "" {
		id := fmt.Sprintf("%v", res.ID)
		responseChan, ok := ws.getResponseChannel(id)
		if !ok {
			ws.logger.Debug("response without waiting request", "id", id)
			return
		}
		responseChan <- res
		return
	}

	if res.Result == nil {
		ws.logger.Error("message is neither a response nor a notification")
		return
	}
	var n Notification
	if err := ws.unmarshaler.Unmarshal(*res.Result, &n); err != nil {
		ws.logger.Error("error unmarshaling as notification", "error", err)
		return
	}
	l, ok := ws.getSubscription(n.ID)
	if !ok {
		ws.logger.Debug("notification for unknown subscription", "id", n.ID)
		return
	}
	if n.Error != nil {
		ws.removeSubscription(n.ID)
		l.Fail(n.Error)
		return
	}
	if n.Snapshot != nil {
		l.Push(*n.Snapshot)
	}
}

// shutdown fails every waiting request and subscription. It runs once, on
// the first read error or Close.
func (ws *WebSocket) shutdown(cause error) {
	ws.closeOnce.Do(func() {
		if cause != nil && !errors.Is(cause, net.ErrClosed) && !gorilla.IsCloseError(cause, gorilla.CloseNormalClosure) {
			ws.logger.Warn("connection lost", "error", cause)
		}
		ws.closeError = constants.ErrConnectionClosed
		close(ws.closeChan)
		ws.failSubscriptions(constants.ErrConnectionClosed)
		_ = ws.transition(StateDisconnected)
	})
}

// Done is closed once the connection is gone.
func (ws *WebSocket) Done() <-chan struct{} {
	return ws.closeChan
}

// Close says goodbye to the server and closes the connection.
func (ws *WebSocket) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return ws.CloseContext(ctx)
}

// CloseContext is Close with a bound on the wait for the close message to be
// written. The connection is closed either way.
func (ws *WebSocket) CloseContext(ctx context.Context) error {
	if ws.Conn == nil {
		return nil
	}
	select {
	case <-ws.closeChan:
		return nil
	default:
	}
	_ = ws.transition(StateDisconnecting)

	writeErr := make(chan error, 1)
	go func() {
		ws.connLock.Lock()
		defer ws.connLock.Unlock()
		writeErr <- ws.Conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			ws.logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	err := ws.Conn.Close()
	ws.shutdown(nil)
	return err
}
