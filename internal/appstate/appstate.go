// Package appstate holds the client's authentication state and keeps it in
// line with the live session reported by the backend.
package appstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/rs/zerolog/log"
)

// Key is the local store key of the persisted snapshot.
const Key = "authState"

// SessionSource reports the user of the live remote session, or nil.
type SessionSource interface {
	GetCurrentUser(ctx context.Context) *types.User
}

// Store is the process wide auth state. The persisted snapshot is a cache:
// Reconcile corrects it from the remote session, never the other way round.
type Store struct {
	mu    sync.RWMutex
	kv    localstore.KV
	state types.AuthState
}

// New restores the snapshot persisted in kv. A missing or unreadable snapshot
// starts logged out.
func New(ctx context.Context, kv localstore.KV) *Store {
	s := &Store{kv: kv}
	raw, err := kv.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			log.Warn().Err(err).Msg("read auth state")
		}
		return s
	}
	var state types.AuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil || (state.Status && state.UserData == nil) {
		log.Warn().Msg("discarding corrupt auth state")
		_ = kv.Delete(ctx, Key)
		return s
	}
	if !state.Status {
		state.UserData = nil
	}
	s.state = state
	return s
}

// State returns a copy of the current state.
func (s *Store) State() types.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	if out.UserData != nil {
		user := *out.UserData
		out.UserData = &user
	}
	return out
}

func (s *Store) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// User returns the logged in user, or nil.
func (s *Store) User() *types.User {
	return s.State().UserData
}

// Login moves to LoggedIn with user and persists the snapshot.
func (s *Store) Login(ctx context.Context, user types.User) error {
	state := types.AuthState{Status: true, UserData: &user}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if err := s.kv.Set(ctx, Key, string(raw)); err != nil {
		return fmt.Errorf("persist auth state: %w", err)
	}
	return nil
}

// Logout moves to LoggedOut and clears the snapshot.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = types.AuthState{}
	if err := s.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear auth state: %w", err)
	}
	return nil
}

// Outcome says what Reconcile did.
type Outcome int

const (
	Unchanged Outcome = iota
	LoggedIn
	LoggedOut
	// Discarded means ctx ended before the remote answer arrived.
	Discarded
)

func (o Outcome) String() string {
	switch o {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	case Discarded:
		return "discarded"
	default:
		return "unchanged"
	}
}

// Reconcile asks source for the live user and corrects the local state when
// it disagrees. An answer that arrives after ctx is done is ignored.
func (s *Store) Reconcile(ctx context.Context, source SessionSource) (Outcome, error) {
	remote := source.GetCurrentUser(ctx)
	if ctx.Err() != nil {
		return Discarded, nil
	}

	local := s.State()
	switch {
	case remote != nil && (!local.Status || local.UserData.ID != remote.ID):
		if err := s.Login(ctx, *remote); err != nil {
			return Unchanged, err
		}
		return LoggedIn, nil
	case remote == nil && local.Status:
		if err := s.Logout(ctx); err != nil {
			return Unchanged, err
		}
		return LoggedOut, nil
	default:
		return Unchanged, nil
	}
}
