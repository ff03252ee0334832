// Package auth supplies the identity the rest of the client runs as.
package auth

import (
	"context"
	"errors"

	"github.com/fintrack/fintrack/pkg/docstore"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrInvalidToken       = errors.New("invalid token")
)

// User is a signed-in identity. Anonymous users have a uid but no email.
type User struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

// Provider is the auth boundary consumed by the data layer.
type Provider interface {
	// CurrentUser returns the signed-in user or nil.
	CurrentUser() *User
	// OnChange calls fn with the current user right away and again after
	// every sign-in or sign-out. Calls are sequential.
	OnChange(fn func(*User)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// Principal is the store identity of u. A nil user is unauthenticated.
func Principal(u *User) docstore.Principal {
	if u == nil {
		return docstore.Principal{}
	}
	return docstore.Principal{UID: u.UID, Anonymous: u.Anonymous}
}

// Context attaches the principal of u to ctx.
func Context(ctx context.Context, u *User) context.Context {
	return docstore.WithPrincipal(ctx, Principal(u))
}
