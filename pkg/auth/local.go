package auth

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
	"github.com/fintrack/fintrack/pkg/logger"
)

type LocalOption func(*Local)

func WithIssuer(i *Issuer) LocalOption {
	return func(l *Local) {
		l.issuer = i
	}
}

func WithBcryptCost(cost int) LocalOption {
	return func(l *Local) {
		l.cost = cost
	}
}

func WithLogger(lg logger.Logger) LocalOption {
	return func(l *Local) {
		l.logger = lg
	}
}

type account struct {
	uid  string
	hash []byte
}

// Local is an in-process Provider with anonymous and email/password
// sign-in. Accounts live in memory.
type Local struct {
	issuer *Issuer
	cost   int
	logger logger.Logger

	mu        sync.Mutex
	accounts  map[string]account
	current   *User
	listeners map[uint64]func(*User)
	next      uint64

	// notifyMu keeps listener calls sequential and in change order.
	notifyMu sync.Mutex
}

func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		cost:      bcrypt.DefaultCost,
		logger:    logger.Nop(),
		accounts:  make(map[string]account),
		listeners: make(map[uint64]func(*User)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) CurrentUser() *User {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	u := *l.current
	return &u
}

func (l *Local) OnChange(fn func(*User)) (unsubscribe func()) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	l.next++
	id := l.next
	l.listeners[id] = fn
	l.mu.Unlock()

	fn(l.CurrentUser())
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *Local) SignInAnonymously(_ context.Context) (*User, error) {
	u := &User{UID: docstore.NewID(), Anonymous: true}
	l.setCurrent(u)
	return u, nil
}

func (l *Local) SignUp(_ context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if _, ok := l.accounts[email]; ok {
		l.mu.Unlock()
		return nil, ErrEmailInUse
	}
	acc := account{uid: docstore.NewID(), hash: hash}
	l.accounts[email] = acc
	l.mu.Unlock()

	u := &User{UID: acc.uid, Email: email}
	l.setCurrent(u)
	return u, nil
}

func (l *Local) SignIn(_ context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)
	l.mu.Lock()
	acc, ok := l.accounts[email]
	l.mu.Unlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := &User{UID: acc.uid, Email: email}
	l.setCurrent(u)
	return u, nil
}

func (l *Local) SignOut(_ context.Context) error {
	l.setCurrent(nil)
	return nil
}

// Token issues a store session token for the current user.
func (l *Local) Token() (string, error) {
	u := l.CurrentUser()
	if u == nil {
		return "", constants.ErrNotSignedIn
	}
	if l.issuer == nil {
		return "", constants.ErrMethodNotAvailable
	}
	return l.issuer.Issue(*u)
}

func (l *Local) setCurrent(u *User) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	prev := l.current
	l.current = u
	listeners := make([]func(*User), 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	if sameUser(prev, u) {
		return
	}
	if u != nil {
		l.logger.Info("signed in", "uid", u.UID, "anonymous", u.Anonymous)
	} else {
		l.logger.Info("signed out")
	}
	for _, fn := range listeners {
		c := copyUser(u)
		fn(c)
	}
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Provider = (*Local)(nil)
