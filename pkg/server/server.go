// Package server exposes a docstore.Store to remote clients over the
// websocket RPC protocol spoken by pkg/connection.
//
// Routes:
//
//	GET /rpc     - websocket endpoint, one session per connection
//	GET /health  - liveness probe
//
// A session starts unauthenticated. The authenticate method binds it to the
// principal named by a token; every later request runs as that principal.
package server

import (
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	gorilla "github.com/gorilla/websocket"

	"github.com/fintrack/fintrack/internal/codec"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/logger"
)

// TokenVerifier resolves a session token to a principal.
type TokenVerifier interface {
	Verify(token string) (docstore.Principal, error)
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithVerifier enables the authenticate method. Without a verifier every
// session stays unauthenticated.
func WithVerifier(v TokenVerifier) Option {
	return func(s *Server) {
		s.verifier = v
	}
}

type Server struct {
	store       docstore.Store
	verifier    TokenVerifier
	logger      logger.Logger
	marshaler   codec.Marshaler
	unmarshaler codec.Unmarshaler
	upgrader    gorilla.Upgrader
	router      *mux.Router

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

func New(store docstore.Store, opts ...Option) *Server {
	c := codec.New()
	s := &Server{
		store:       store,
		logger:      logger.Nop(),
		marshaler:   c,
		unmarshaler: c,
		upgrader: gorilla.Upgrader{
			Subprotocols:      []string{"cbor"},
			EnableCompression: true,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	s.mu.Lock()
	body := map[string]any{"status": "ok", "sessions": len(s.sessions)}
	s.mu.Unlock()
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	ss := newSession(s, conn)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[ss] = struct{}{}
	s.mu.Unlock()

	s.logger.Debug("session opened", "remote", r.RemoteAddr)
	ss.serve()

	s.mu.Lock()
	delete(s.sessions, ss)
	s.mu.Unlock()
	s.logger.Debug("session closed", "remote", r.RemoteAddr)
}

// Sessions is the number of open sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close drops every session. The store is left open.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	s.mu.Unlock()

	for _, ss := range sessions {
		ss.close()
	}
}
