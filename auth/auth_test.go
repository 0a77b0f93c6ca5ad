package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	"github.com/ichaaulia/supercart/localstate"
	"github.com/ichaaulia/supercart/store"
)

func newTestService(t *testing.T) (*Service, *localstate.State) {
	t.Helper()

	mem := store.NewMemory()
	local, err := localstate.New(mem)
	require.NoError(t, err)

	svc, err := NewService(mem, local)
	require.NoError(t, err)
	return svc, local
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	assert.True(t, errspkg.IsValidation(svc.Register(ctx, "", "a@b.c", "secret1")))
	assert.True(t, errspkg.IsValidation(svc.Register(ctx, "ichaa", "", "secret1")))
	assert.True(t, errspkg.IsValidation(svc.Register(ctx, "ichaa", "a@b.c", "short")))
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ichaa", "a@b.c", "secret1"))
	err := svc.Register(ctx, "ichaa", "other@b.c", "secret2")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestLoginSuccessPersistsCurrentUser(t *testing.T) {
	svc, local := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ichaa", "a@b.c", "secret1"))

	user, err := svc.Login(ctx, "ichaa", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ichaa", user.Username)
	assert.Equal(t, RoleCashier, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	current, ok, err := local.CurrentUser(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, localstate.CurrentUser{Username: "ichaa", EmailPhone: "a@b.c"}, current)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ichaa", "a@b.c", "secret1"))

	_, wrongPassword := svc.Login(ctx, "ichaa", "wrong-password")
	_, unknownUser := svc.Login(ctx, "nobody", "secret1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestLogoutClearsCurrentUser(t *testing.T) {
	svc, local := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ichaa", "a@b.c", "secret1"))
	_, err := svc.Login(ctx, "ichaa", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx))

	_, ok, err := local.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Logging out while signed out is fine.
	require.NoError(t, svc.Logout(ctx))
}
