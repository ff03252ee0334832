package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fintrack/fintrack/pkg/auth"
	"github.com/fintrack/fintrack/pkg/constants"
	"github.com/fintrack/fintrack/pkg/docstore"
)

func newLocal(opts ...auth.LocalOption) *auth.Local {
	return auth.NewLocal(append([]auth.LocalOption{auth.WithBcryptCost(bcrypt.MinCost)}, opts...)...)
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	l := newLocal()

	u, err := l.SignUp(ctx, " Ana@Example.com ", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEmpty(t, u.UID)
	assert.False(t, u.Anonymous)

	_, err = l.SignUp(ctx, "ana@example.com", "other")
	assert.ErrorIs(t, err, auth.ErrEmailInUse)

	require.NoError(t, l.SignOut(ctx))
	assert.Nil(t, l.CurrentUser())

	_, err = l.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = l.SignIn(ctx, "nobody@example.com", "hunter2")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	again, err := l.SignIn(ctx, "ANA@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.UID, again.UID)
	assert.Equal(t, u.UID, l.CurrentUser().UID)

	_, err = l.SignUp(ctx, "", "x")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	l := newLocal()

	var seen []*auth.User
	unsubscribe := l.OnChange(func(u *auth.User) {
		seen = append(seen, u)
	})
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	anon, err := l.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.True(t, anon.Anonymous)
	require.NoError(t, l.SignOut(ctx))
	// signing out twice is not a change
	require.NoError(t, l.SignOut(ctx))

	require.Len(t, seen, 3)
	assert.Equal(t, anon.UID, seen[1].UID)
	assert.Nil(t, seen[2])

	unsubscribe()
	_, err = l.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 3)
}

func TestPrincipal(t *testing.T) {
	assert.Equal(t, docstore.Principal{}, auth.Principal(nil))
	p := auth.Principal(&auth.User{UID: "u1", Anonymous: true})
	assert.Equal(t, docstore.Principal{UID: "u1", Anonymous: true}, p)

	ctx := auth.Context(context.Background(), &auth.User{UID: "u2"})
	assert.Equal(t, "u2", docstore.PrincipalFrom(ctx).UID)
}

func TestIssuer(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer := auth.NewIssuer([]byte("secret"), auth.WithTTL(time.Hour), auth.WithIssuerClock(clock))

	token, err := issuer.Issue(auth.User{UID: "u1", Anonymous: true})
	require.NoError(t, err)

	p, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, docstore.Principal{UID: "u1", Anonymous: true}, p)

	_, err = auth.NewIssuer([]byte("other"), auth.WithIssuerClock(clock)).Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	now = now.Add(2 * time.Hour)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = issuer.Issue(auth.User{})
	assert.ErrorIs(t, err, constants.ErrNotSignedIn)
}

func TestLocalToken(t *testing.T) {
	l := newLocal()
	_, err := l.Token()
	assert.ErrorIs(t, err, constants.ErrNotSignedIn)

	u, err := l.SignInAnonymously(context.Background())
	require.NoError(t, err)
	_, err = l.Token()
	assert.ErrorIs(t, err, constants.ErrMethodNotAvailable)

	issuer := auth.NewIssuer([]byte("secret"))
	l = newLocal(auth.WithIssuer(issuer))
	u, err = l.SignInAnonymously(context.Background())
	require.NoError(t, err)
	token, err := l.Token()
	require.NoError(t, err)
	p, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, u.UID, p.UID)
}
