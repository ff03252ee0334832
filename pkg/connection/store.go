package connection

import (
	"context"

	"github.com/gofrs/uuid"

	"github.com/fintrack/fintrack/pkg/docstore"
)

func (ws *WebSocket) Add(ctx context.Context, collection docstore.Path, data map[string]any) (docstore.Path, error) {
	var res RPCResponse[docstore.Path]
	if err := Send(ws, ctx, &res, Add, collection, data); err != nil {
		return "", err
	}
	if res.Result == nil {
		return "", docstore.ErrInvalidArgument
	}
	return *res.Result, nil
}

func (ws *WebSocket) Set(ctx context.Context, doc docstore.Path, data map[string]any, opts ...docstore.SetOption) error {
	_, err := ws.Send(ctx, Set, doc, data, docstore.ApplySetOptions(opts))
	return err
}

func (ws *WebSocket) Update(ctx context.Context, doc docstore.Path, data map[string]any) error {
	_, err := ws.Send(ctx, Update, doc, data)
	return err
}

func (ws *WebSocket) Delete(ctx context.Context, doc docstore.Path) error {
	_, err := ws.Send(ctx, Delete, doc)
	return err
}

func (ws *WebSocket) Get(ctx context.Context, doc docstore.Path) (*docstore.Document, error) {
	var res RPCResponse[docstore.Document]
	if err := Send(ws, ctx, &res, Get, doc); err != nil {
		return nil, err
	}
	if res.Result == nil {
		return nil, docstore.ErrNotFound
	}
	return res.Result, nil
}

func (ws *WebSocket) List(ctx context.Context, q *docstore.Query) ([]docstore.Document, error) {
	var res RPCResponse[[]docstore.Document]
	if err := Send(ws, ctx, &res, List, q); err != nil {
		return nil, err
	}
	if res.Result == nil {
		return []docstore.Document{}, nil
	}
	return *res.Result, nil
}

func (ws *WebSocket) Commit(ctx context.Context, b *docstore.Batch) error {
	_, err := ws.Send(ctx, Commit, b.Writes())
	return err
}

// Subscribe registers the subscription locally under a fresh id before
// asking the server for it, so no notification can arrive unrouted. It
// returns right away; a failure to subscribe arrives through onError.
func (ws *WebSocket) Subscribe(ctx context.Context, q *docstore.Query, onNext func(docstore.Snapshot), onError func(error)) docstore.Unsubscribe {
	l := docstore.NewListener(onNext, onError)
	id := uuid.Must(uuid.NewV4()).String()
	if err := ws.addSubscription(id, l); err != nil {
		l.Fail(err)
		return l.Stop
	}

	unsubscribe := func() {
		registered := ws.removeSubscription(id)
		l.Stop()
		if !registered {
			return
		}
		go func() {
			if _, err := ws.Send(context.Background(), Unsubscribe, id); err != nil {
				ws.logger.Debug("unsubscribe failed", "id", id, "error", err)
			}
		}()
	}

	go func() {
		if _, err := ws.Send(context.WithoutCancel(ctx), Subscribe, id, q); err != nil {
			ws.removeSubscription(id)
			l.Fail(err)
			return
		}
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-l.Done():
			ws.removeSubscription(id)
		case <-ws.closeChan:
		}
	}()
	return unsubscribe
}

var _ docstore.Store = (*WebSocket)(nil)
