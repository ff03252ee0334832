package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerRules(t *testing.T) {
	owner := Principal{UID: "u1"}
	assert.True(t, OwnerRules.Allow(owner, OpList, "users/u1/expenses"))
	assert.True(t, OwnerRules.Allow(owner, OpDelete, "users/u1/expenses/e1"))
	assert.False(t, OwnerRules.Allow(owner, OpList, "users/u2/expenses"))
	assert.False(t, OwnerRules.Allow(owner, OpGet, "config/app"))
	assert.False(t, OwnerRules.Allow(Principal{}, OpList, "users//expenses"))
}

func TestAuthorize(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{UID: "u1", Anonymous: true})
	assert.Equal(t, "u1", PrincipalFrom(ctx).UID)
	assert.NoError(t, Authorize(ctx, OwnerRules, OpCreate, "users/u1/goals/g1"))
	err := Authorize(ctx, OwnerRules, OpCreate, "users/u9/goals/g1")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "create at users/u9/goals/g1")
	assert.NoError(t, Authorize(context.Background(), nil, OpGet, "anything/x"))
}
