package fintrack

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fintrack/fintrack/pkg/auth"
	"github.com/fintrack/fintrack/pkg/connection"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/docstore/memstore"
	"github.com/fintrack/fintrack/pkg/docstore/sqlstore"
	"github.com/fintrack/fintrack/pkg/errbus"
	"github.com/fintrack/fintrack/pkg/finance"
	"github.com/fintrack/fintrack/pkg/live"
	"github.com/fintrack/fintrack/pkg/logger"
	"github.com/fintrack/fintrack/pkg/mutate"
)

type Option func(*Client)

// WithStore uses s instead of opening Config.StoreURL. The client closes
// it on Close.
func WithStore(s docstore.Store) Option {
	return func(c *Client) {
		c.Store = s
	}
}

// WithAuth replaces the default local auth provider.
func WithAuth(p auth.Provider) Option {
	return func(c *Client) {
		c.Auth = p
	}
}

// WithToastSink renders bus errors through sink instead of the log.
func WithToastSink(sink errbus.Sink) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

type Client struct {
	Store   docstore.Store
	Auth    auth.Provider
	Bus     *errbus.Bus
	Mutator *mutate.Mutator
	Memo    *live.Memo

	config   Config
	logger   logger.Logger
	logData  *logger.LogData
	sink     errbus.Sink
	notifier *errbus.Notifier
}

// New builds a client from cfg. A nil cfg means NewConfig().
func New(ctx context.Context, cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: *cfg, Memo: live.NewMemo()}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logData, err := logger.New().FromPath(cfg.LogPath).WithLevelName(cfg.LogLevel).Make()
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
		c.logData, c.logger = logData, logData
	}

	if c.Store == nil {
		s, err := openStore(ctx, cfg, c.logger)
		if err != nil {
			c.closeLog()
			return nil, err
		}
		c.Store = s
	}
	if c.Auth == nil {
		c.Auth = auth.NewLocal(auth.WithLogger(c.logger))
	}
	if c.sink == nil {
		c.sink = errbus.LogSink(c.logger)
	}

	c.Bus = errbus.New(c.logger)
	c.notifier = errbus.NewNotifier(c.Bus, c.logger, c.sink)
	c.Mutator = mutate.New(c.Store, c.Bus, mutate.WithLogger(c.logger), mutate.WithTimeout(cfg.Timeout))
	return c, nil
}

func openStore(ctx context.Context, cfg *Config, l logger.Logger) (docstore.Store, error) {
	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case constants.MemoryScheme:
		return memstore.New(memstore.WithRules(docstore.OwnerRules), memstore.WithLogger(l)), nil
	case constants.WebsocketScheme, constants.WebsocketSecureScheme:
		ws := connection.NewWebSocket(connection.NewConnectionParams{
			BaseURL: fmt.Sprintf("%s://%s", u.Scheme, u.Host),
			Token:   cfg.Token,
			Logger:  l,
		}).SetTimeOut(cfg.Timeout)
		if err := ws.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", u.Host, err)
		}
		return ws, nil
	case constants.PostgresScheme, constants.PostgresAltScheme:
		return sqlstore.Open(ctx, cfg.StoreURL, sqlstore.WithRules(docstore.OwnerRules), sqlstore.WithLogger(l))
	default:
		return nil, fmt.Errorf("%w: %q", constants.ErrUnsupportedScheme, u.Scheme)
	}
}

func (c *Client) Logger() logger.Logger {
	return c.logger
}

// Context attaches the signed-in user's principal to ctx.
func (c *Client) Context(ctx context.Context) context.Context {
	return auth.Context(ctx, c.Auth.CurrentUser())
}

// UserPath is users/{uid}/{name} for the signed-in user.
func (c *Client) UserPath(name string) (docstore.Path, error) {
	u := c.Auth.CurrentUser()
	if u == nil {
		return "", constants.ErrNotSignedIn
	}
	return docstore.UserCollection(u.UID, name), nil
}

func (c *Client) collectionOptions() []live.Option {
	return []live.Option{
		live.WithLogger(c.logger),
		live.WithDebug(c.config.Debug),
		live.WithMutator(c.Mutator),
	}
}

// Watch subscribes to q as the signed-in user. The handle comes from the
// client's memo, so watching an equal query twice shares one handle.
func Watch[T any](c *Client, q *docstore.Query) *live.Collection[T] {
	opts := append(c.collectionOptions(), live.WithContext(c.Context(context.Background())))
	col := live.NewCollection[T](c.Store, c.Bus, opts...)
	col.SetHandle(c.Memo.Handle(q))
	return col
}

// WatchUser follows collection name of whoever is signed in.
func WatchUser[T any](c *Client, name string, refine live.QueryFunc) *live.UserCollection[T] {
	return live.NewUserCollection[T](c.Store, c.Bus, c.Auth, c.Memo, name, refine, c.collectionOptions()...)
}

// Add creates doc in the signed-in user's collection name. It returns once
// the write is started; a failure is reported on the bus.
func (c *Client) Add(ctx context.Context, name string, doc any) (*mutate.Task, error) {
	col, err := c.UserPath(name)
	if err != nil {
		return nil, err
	}
	data, err := finance.Data(doc)
	if err != nil {
		return nil, err
	}
	return c.Mutator.AddDocumentNonBlocking(c.Context(ctx), col, data), nil
}

// Set replaces document id in the signed-in user's collection name.
func (c *Client) Set(ctx context.Context, name, id string, doc any, opts ...docstore.SetOption) (*mutate.Task, error) {
	col, err := c.UserPath(name)
	if err != nil {
		return nil, err
	}
	data, err := finance.Data(doc)
	if err != nil {
		return nil, err
	}
	return c.Mutator.SetDocumentNonBlocking(c.Context(ctx), col.Child(id), data, opts...), nil
}

// Update changes fields of document id. Keys may be dotted paths and values
// may be field transforms such as docstore.Increment.
func (c *Client) Update(ctx context.Context, name, id string, fields map[string]any) (*mutate.Task, error) {
	col, err := c.UserPath(name)
	if err != nil {
		return nil, err
	}
	return c.Mutator.UpdateDocumentNonBlocking(c.Context(ctx), col.Child(id), fields), nil
}

func (c *Client) Delete(ctx context.Context, name, id string) (*mutate.Task, error) {
	col, err := c.UserPath(name)
	if err != nil {
		return nil, err
	}
	return c.Mutator.DeleteDocumentNonBlocking(c.Context(ctx), col.Child(id)), nil
}

// Close waits for in-flight writes, then shuts down the bus and the store.
func (c *Client) Close() error {
	c.Mutator.Wait()
	c.notifier.Close()
	c.Bus.Close()
	err := c.Store.Close()
	c.closeLog()
	return err
}

func (c *Client) closeLog() {
	if c.logData != nil {
		_ = c.logData.Close()
	}
}
