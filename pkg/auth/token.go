package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
)

const defaultIssuer = "fintrack"

// Claims are the token claims. The subject is the uid.
type Claims struct {
	Anonymous bool `json:"anon,omitempty"`
	jwt.RegisteredClaims
}

type IssuerOption func(*Issuer)

func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.ttl = ttl
	}
}

func WithIssuerClock(clock func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.clock = clock
	}
}

// Issuer signs and verifies HS256 session tokens for the store server.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	clock  func() time.Time
}

func NewIssuer(secret []byte, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		secret: secret,
		name:   defaultIssuer,
		ttl:    constants.DefaultTokenTTL,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) Issue(u User) (string, error) {
	if u.UID == "" {
		return "", constants.ErrNotSignedIn
	}
	now := i.clock()
	claims := Claims{
		Anonymous: u.Anonymous,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   u.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks the signature, issuer and expiry of token and returns the
// principal it names.
func (i *Issuer) Verify(token string) (docstore.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.name),
		jwt.WithTimeFunc(i.clock),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return docstore.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return docstore.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return docstore.Principal{UID: claims.Subject, Anonymous: claims.Anonymous}, nil
}
