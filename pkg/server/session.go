package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	gorilla "github.com/gorilla/websocket"

	"github.com/fintrack/fintrack/pkg/connection"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
)

// request is an RPCRequest whose params are decoded per method.
type request struct {
	ID     any               `json:"id"`
	Method string            `json:"method"`
	Params []cbor.RawMessage `json:"params,omitempty"`
}

type session struct {
	srv  *Server
	conn *gorilla.Conn

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu        sync.Mutex
	principal docstore.Principal
	subs      map[string]docstore.Unsubscribe

	wg sync.WaitGroup
}

func newSession(srv *Server, conn *gorilla.Conn) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		srv:    srv,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]docstore.Unsubscribe),
	}
}

func (ss *session) serve() {
	defer ss.teardown()
	for {
		_, data, err := ss.conn.ReadMessage()
		if err != nil {
			if !gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				ss.srv.logger.Debug("session read failed", "error", err)
			}
			return
		}

		var req request
		if err := ss.srv.unmarshaler.Unmarshal(data, &req); err != nil {
			ss.sendError(nil, &connection.RPCError{Code: connection.CodeInvalidArgument, Message: "parse error"})
			continue
		}

		switch connection.RPCFunction(req.Method) {
		case connection.Authenticate, connection.Invalidate, connection.Subscribe, connection.Unsubscribe:
			// session state changes apply in request order
			ss.handle(&req)
		default:
			ss.wg.Add(1)
			go func() {
				defer ss.wg.Done()
				ss.handle(&req)
			}()
		}
	}
}

func (ss *session) teardown() {
	ss.cancel()
	ss.mu.Lock()
	subs := ss.subs
	ss.subs = map[string]docstore.Unsubscribe{}
	ss.mu.Unlock()
	for _, unsubscribe := range subs {
		unsubscribe()
	}
	ss.wg.Wait()
	_ = ss.conn.Close()
}

func (ss *session) close() {
	ss.writeMu.Lock()
	_ = ss.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(constants.CloseMessageCode, "server closing"))
	ss.writeMu.Unlock()
	_ = ss.conn.Close()
}

// requestContext carries the session's principal to the store.
func (ss *session) requestContext() context.Context {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return docstore.WithPrincipal(ss.ctx, ss.principal)
}

func (ss *session) params(req *request, dst ...any) error {
	if len(req.Params) < len(dst) {
		return fmt.Errorf("%w: %s wants %d params, got %d", docstore.ErrInvalidArgument, req.Method, len(dst), len(req.Params))
	}
	for i, d := range dst {
		if err := ss.srv.unmarshaler.Unmarshal(req.Params[i], d); err != nil {
			return fmt.Errorf("%w: param %d of %s: %v", docstore.ErrInvalidArgument, i, req.Method, err)
		}
	}
	return nil
}

func (ss *session) handle(req *request) {
	result, err := ss.dispatch(req)
	if err != nil {
		ss.sendError(req.ID, connection.ErrorFor(err))
		return
	}
	ss.sendResponse(req.ID, result)
}

func (ss *session) dispatch(req *request) (any, error) {
	switch connection.RPCFunction(req.Method) {
	case connection.Authenticate:
		return nil, ss.authenticate(req)
	case connection.Invalidate:
		ss.mu.Lock()
		ss.principal = docstore.Principal{}
		ss.mu.Unlock()
		return nil, nil
	case connection.Subscribe:
		return nil, ss.subscribe(req)
	case connection.Unsubscribe:
		var id string
		if err := ss.params(req, &id); err != nil {
			return nil, err
		}
		ss.mu.Lock()
		unsubscribe, ok := ss.subs[id]
		delete(ss.subs, id)
		ss.mu.Unlock()
		if ok {
			unsubscribe()
		}
		return nil, nil
	}

	ctx := ss.requestContext()
	store := ss.srv.store
	switch connection.RPCFunction(req.Method) {
	case connection.Add:
		var col docstore.Path
		var data map[string]any
		if err := ss.params(req, &col, &data); err != nil {
			return nil, err
		}
		return store.Add(ctx, col, data)
	case connection.Set:
		var doc docstore.Path
		var data map[string]any
		var merge bool
		if err := ss.params(req, &doc, &data, &merge); err != nil {
			return nil, err
		}
		var opts []docstore.SetOption
		if merge {
			opts = append(opts, docstore.Merge())
		}
		return nil, store.Set(ctx, doc, data, opts...)
	case connection.Update:
		var doc docstore.Path
		var data map[string]any
		if err := ss.params(req, &doc, &data); err != nil {
			return nil, err
		}
		return nil, store.Update(ctx, doc, data)
	case connection.Delete:
		var doc docstore.Path
		if err := ss.params(req, &doc); err != nil {
			return nil, err
		}
		return nil, store.Delete(ctx, doc)
	case connection.Get:
		var doc docstore.Path
		if err := ss.params(req, &doc); err != nil {
			return nil, err
		}
		return store.Get(ctx, doc)
	case connection.List:
		var q docstore.Query
		if err := ss.params(req, &q); err != nil {
			return nil, err
		}
		return store.List(ctx, &q)
	case connection.Commit:
		var writes []docstore.Write
		if err := ss.params(req, &writes); err != nil {
			return nil, err
		}
		return nil, store.Commit(ctx, docstore.BatchOf(writes))
	}
	return nil, fmt.Errorf("%w: %s", constants.ErrMethodNotAvailable, req.Method)
}

func (ss *session) authenticate(req *request) error {
	var token string
	if err := ss.params(req, &token); err != nil {
		return err
	}
	if ss.srv.verifier == nil {
		return &connection.RPCError{Code: connection.CodeUnauthenticated, Message: "authentication is not enabled"}
	}
	p, err := ss.srv.verifier.Verify(token)
	if err != nil {
		return &connection.RPCError{Code: connection.CodeUnauthenticated, Message: err.Error()}
	}
	ss.mu.Lock()
	ss.principal = p
	ss.mu.Unlock()
	ss.srv.logger.Debug("session authenticated", "uid", p.UID)
	return nil
}

func (ss *session) subscribe(req *request) error {
	var id string
	var q docstore.Query
	if err := ss.params(req, &id, &q); err != nil {
		return err
	}

	ss.mu.Lock()
	if _, ok := ss.subs[id]; ok {
		ss.mu.Unlock()
		return fmt.Errorf("%w: %w: %s", docstore.ErrInvalidArgument, constants.ErrIDInUse, id)
	}
	// placeholder so an early error notification can clean up
	ss.subs[id] = func() {}
	ss.mu.Unlock()

	unsubscribe := ss.srv.store.Subscribe(ss.requestContext(), &q,
		func(snap docstore.Snapshot) {
			ss.notify(connection.Notification{ID: id, Snapshot: &snap})
		},
		func(err error) {
			ss.mu.Lock()
			delete(ss.subs, id)
			ss.mu.Unlock()
			ss.notify(connection.Notification{ID: id, Error: connection.ErrorFor(err)})
		},
	)

	ss.mu.Lock()
	if _, ok := ss.subs[id]; ok {
		ss.subs[id] = unsubscribe
	}
	ss.mu.Unlock()
	return nil
}

func (ss *session) notify(n connection.Notification) {
	var resp connection.RPCResponse[connection.Notification]
	resp.Result = &n
	ss.write(resp)
}

func (ss *session) sendResponse(id, result any) {
	var resp connection.RPCResponse[any]
	resp.ID = id
	if result != nil {
		resp.Result = &result
	}
	ss.write(resp)
}

func (ss *session) sendError(id any, rpcErr *connection.RPCError) {
	var resp connection.RPCResponse[any]
	resp.ID = id
	resp.Error = rpcErr
	ss.write(resp)
}

func (ss *session) write(v any) {
	data, err := ss.srv.marshaler.Marshal(v)
	if err != nil {
		ss.srv.logger.Error("failed to marshal message", "error", err)
		return
	}

	ss.writeMu.Lock()
	defer ss.writeMu.Unlock()
	if err := ss.conn.WriteMessage(gorilla.BinaryMessage, data); err != nil {
		ss.srv.logger.Debug("failed to write message", "error", err)
	}
}
