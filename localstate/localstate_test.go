package localstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	"github.com/ichaaulia/supercart/store"
)

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, errspkg.ErrStoreRequired)
}

func TestCurrentUserRoundTrip(t *testing.T) {
	state, err := New(store.NewMemory())
	require.NoError(t, err)
	ctx := context.Background()

	_, ok, err := state.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := CurrentUser{Username: "ichaa", EmailPhone: "ichaa@example.com"}
	require.NoError(t, state.SetCurrentUser(ctx, want))

	got, ok, err := state.CurrentUser(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestClearCurrentUser(t *testing.T) {
	state, err := New(store.NewMemory())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, state.SetCurrentUser(ctx, CurrentUser{Username: "ichaa"}))
	require.NoError(t, state.ClearCurrentUser(ctx))

	_, ok, err := state.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing again is a no-op.
	require.NoError(t, state.ClearCurrentUser(ctx))
}
