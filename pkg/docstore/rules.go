package docstore

import (
	"context"
	"fmt"
)

// Operation is the kind of access a request performs.
type Operation string

const (
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpWrite  Operation = "write"
)

// Principal is the identity a request runs as. The zero value is unauthenticated.
type Principal struct {
	UID       string `json:"uid"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

func (p Principal) Authenticated() bool {
	return p.UID != ""
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

// Rules decides whether a principal may perform op on path.
type Rules interface {
	Allow(p Principal, op Operation, path Path) bool
}

type RulesFunc func(p Principal, op Operation, path Path) bool

func (f RulesFunc) Allow(p Principal, op Operation, path Path) bool {
	return f(p, op, path)
}

// AllowAll permits every request.
var AllowAll Rules = RulesFunc(func(Principal, Operation, Path) bool { return true })

// OwnerRules permits a signed-in principal everything under users/{uid}
// for its own uid and nothing else.
var OwnerRules Rules = RulesFunc(func(p Principal, _ Operation, path Path) bool {
	segs := path.Segments()
	return p.Authenticated() && len(segs) >= 2 && segs[0] == "users" && segs[1] == p.UID
})

// Authorize checks rules for the principal carried by ctx.
func Authorize(ctx context.Context, rules Rules, op Operation, path Path) error {
	if rules == nil {
		rules = AllowAll
	}
	if !rules.Allow(PrincipalFrom(ctx), op, path) {
		return fmt.Errorf("%w: %s at %s", ErrPermissionDenied, op, path)
	}
	return nil
}
