// Package localstate persists the small pieces of device-local state that
// must survive a restart, currently just the signed-in user.
package localstate

import (
	"context"
	"errors"

	errspkg "github.com/ichaaulia/supercart/internal/engine/errors"
	storepkg "github.com/ichaaulia/supercart/store"
)

const currentUserKey = "state/currentUser"

// CurrentUser is the persisted identity of the signed-in operator.
type CurrentUser struct {
	Username   string `json:"username"`
	EmailPhone string `json:"emailPhone"`
}

// State reads and writes device-local state in the document store.
type State struct {
	store storepkg.Store
}

// New wires a State to the given store.
func New(st storepkg.Store) (*State, error) {
	if st == nil {
		return nil, errspkg.ErrStoreRequired
	}
	return &State{store: st}, nil
}

// CurrentUser returns the persisted user. The second return is false when
// nobody is signed in.
func (s *State) CurrentUser(ctx context.Context) (CurrentUser, bool, error) {
	var user CurrentUser
	err := s.store.Get(ctx, currentUserKey, &user)
	if errors.Is(err, storepkg.ErrNotFound) {
		return CurrentUser{}, false, nil
	}
	if err != nil {
		return CurrentUser{}, false, err
	}
	return user, true, nil
}

// SetCurrentUser persists the signed-in user.
func (s *State) SetCurrentUser(ctx context.Context, user CurrentUser) error {
	return s.store.Set(ctx, currentUserKey, user)
}

// ClearCurrentUser removes the persisted user. Clearing an absent user is
// a no-op.
func (s *State) ClearCurrentUser(ctx context.Context) error {
	return s.store.Delete(ctx, currentUserKey)
}
