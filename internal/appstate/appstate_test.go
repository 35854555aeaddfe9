package appstate

import (
	"context"
	"testing"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	user   *types.User
	cancel context.CancelFunc
	calls  int
}

func (s *staticSource) GetCurrentUser(ctx context.Context) *types.User {
	s.calls++
	if s.cancel != nil {
		s.cancel()
	}
	return s.user
}

var (
	alice = types.User{ID: "u-alice", Name: "Alice"}
	bob   = types.User{ID: "u-bob", Name: "Bob"}
)

func TestLoginPersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()

	store := New(ctx, kv)
	assert.False(t, store.LoggedIn())
	require.NoError(t, store.Login(ctx, alice))

	restored := New(ctx, kv)
	require.True(t, restored.LoggedIn())
	assert.Equal(t, alice.ID, restored.User().ID)

	raw, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true,"userData":{"id":"u-alice","name":"Alice","email":"","createdAt":"0001-01-01T00:00:00Z","updatedAt":"0001-01-01T00:00:00Z"}}`, raw)
}

func TestLogoutClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	store := New(ctx, kv)
	require.NoError(t, store.Login(ctx, alice))

	require.NoError(t, store.Logout(ctx))
	assert.False(t, store.LoggedIn())
	assert.Nil(t, store.User())
	_, err := kv.Get(ctx, Key)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestCorruptSnapshotStartsLoggedOut(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(ctx, Key, `{"status":true}`))

	store := New(ctx, kv)
	assert.False(t, store.LoggedIn())
	_, err := kv.Get(ctx, Key)
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		local  *types.User
		remote *types.User
		want   Outcome
		wantID string
		wantIn bool
	}{
		{"remote user, local logged out", nil, &alice, LoggedIn, alice.ID, true},
		{"remote user differs", &bob, &alice, LoggedIn, alice.ID, true},
		{"same user", &alice, &alice, Unchanged, alice.ID, true},
		{"no remote session", &alice, nil, LoggedOut, "", false},
		{"both logged out", nil, nil, Unchanged, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := New(ctx, localstore.NewMemory())
			if tc.local != nil {
				require.NoError(t, store.Login(ctx, *tc.local))
			}

			got, err := store.Reconcile(ctx, &staticSource{user: tc.remote})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantIn, store.LoggedIn())
			if tc.wantID != "" {
				assert.Equal(t, tc.wantID, store.User().ID)
			}
		})
	}
}

func TestReconcileDiscardsLateAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := New(context.Background(), localstore.NewMemory())

	got, err := store.Reconcile(ctx, &staticSource{user: &alice, cancel: cancel})
	require.NoError(t, err)
	assert.Equal(t, Discarded, got)
	assert.False(t, store.LoggedIn())
}

func TestStateReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := New(ctx, localstore.NewMemory())
	require.NoError(t, store.Login(ctx, alice))

	state := store.State()
	state.UserData.Name = "Mallory"
	assert.Equal(t, "Alice", store.User().Name)
}
