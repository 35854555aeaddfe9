package profile

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	mu        sync.Mutex
	existing  map[string]bool
	uploadErr error
	hide      bool
	nextID    string
	uploads   int
	deleted   []string
}

func newFakeFiles(ids ...string) *fakeFiles {
	f := &fakeFiles{existing: map[string]bool{}, nextID: "file-new"}
	for _, id := range ids {
		f.existing[id] = true
	}
	return f
}

func (f *fakeFiles) UploadFile(ctx context.Context, name, mimeType string, data []byte) (*types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if !f.hide {
		f.existing[f.nextID] = true
	}
	return &types.File{ID: f.nextID, Name: name, MimeType: mimeType}, nil
}

func (f *fakeFiles) CheckFileExists(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[id]
}

func (f *fakeFiles) DeleteFile(ctx context.Context, id string) bool {
	if ctx.Err() != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.existing, id)
	return true
}

func (f *fakeFiles) FileViewURL(id string) string {
	if id == "" {
		return ""
	}
	return "http://api.local/files/" + id + "/view"
}

type fakeAccount struct {
	user  types.User
	err   error
	calls []string
}

func (f *fakeAccount) UpdateProfilePicture(ctx context.Context, fileID string) (*types.User, error) {
	f.calls = append(f.calls, fileID)
	if f.err != nil {
		return nil, f.err
	}
	u := f.user
	u.ProfilePicture = fileID
	return &u, nil
}

// scriptedVerifier fails the first failures calls.
type scriptedVerifier struct {
	failures int
	calls    int
}

func (v *scriptedVerifier) Verify(ctx context.Context, url string) error {
	v.calls++
	if v.calls <= v.failures {
		return errors.New("image did not load")
	}
	return nil
}

// cancelingVerifier cancels the upload context and fails, like an
// interrupted client during verification.
type cancelingVerifier struct {
	cancel context.CancelFunc
}

func (v cancelingVerifier) Verify(ctx context.Context, url string) error {
	v.cancel()
	return errors.New("interrupted")
}

// gatedVerifier blocks until released so callers can look at the avatar
// while an upload is in flight.
type gatedVerifier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedVerifier() *gatedVerifier {
	return &gatedVerifier{entered: make(chan struct{}), release: make(chan struct{})}
}

func (v *gatedVerifier) Verify(ctx context.Context, url string) error {
	v.once.Do(func() { close(v.entered) })
	<-v.release
	return nil
}

var carol = types.User{ID: "u-carol", Name: "carol ann smith"}

func newAvatar(user types.User, files *fakeFiles, verifier Verifier, kv localstore.KV) (*Avatar, *fakeAccount) {
	account := &fakeAccount{user: user}
	return NewAvatar(user, files, account, kv, verifier, WithRetry(3, 0)), account
}

func TestSelectValidates(t *testing.T) {
	avatar, _ := newAvatar(carol, newFakeFiles(), &scriptedVerifier{}, localstore.NewMemory())

	assert.ErrorIs(t, avatar.Select("notes.txt", "text/plain", []byte("hi")), ErrInvalidPicture)
	assert.ErrorIs(t, avatar.Select("huge.png", "image/png", make([]byte, 6<<20)), ErrInvalidPicture)
	assert.Equal(t, NoPicture, avatar.State())

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	assert.Equal(t, PendingUpload, avatar.State())
	assert.Equal(t, "local:me.png", avatar.Preview())
}

func TestUploadWithoutSelection(t *testing.T) {
	avatar, _ := newAvatar(carol, newFakeFiles(), &scriptedVerifier{}, localstore.NewMemory())
	_, err := avatar.Upload(context.Background())
	assert.ErrorIs(t, err, ErrNothingSelected)
}

func TestUploadConfirmed(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	user := carol
	user.ProfilePicture = "file-old"
	files := newFakeFiles("file-old")
	verifier := &scriptedVerifier{failures: 2}
	avatar, account := newAvatar(user, files, verifier, kv)

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	res, err := avatar.Upload(ctx)
	require.NoError(t, err)

	assert.Equal(t, Confirmed, res.State)
	assert.Equal(t, "file-new", res.FileID)
	assert.Equal(t, "http://api.local/files/file-new/view", res.URL)
	assert.Equal(t, 3, verifier.calls)
	assert.Equal(t, []string{"file-new"}, account.calls)
	assert.Equal(t, []string{"file-old"}, files.deleted)

	cached, err := kv.Get(ctx, CacheKey(carol.ID))
	require.NoError(t, err)
	assert.Equal(t, "file-new", cached)
}

func TestUploadRolledBackWhenPictureNeverLoads(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	files := newFakeFiles()
	verifier := &scriptedVerifier{failures: 100}
	avatar, account := newAvatar(carol, files, verifier, kv)

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	res, err := avatar.Upload(ctx)
	require.NoError(t, err)

	assert.Equal(t, RolledBack, res.State)
	assert.Equal(t, 3, verifier.calls)
	assert.Empty(t, account.calls)
	assert.Equal(t, []string{"file-new"}, files.deleted)
	assert.Empty(t, avatar.Preview())

	_, err = kv.Get(ctx, CacheKey(carol.ID))
	assert.ErrorIs(t, err, localstore.ErrNotFound)

	rendering := NewResolver(files, kv, verifier).Resolve(ctx, carol)
	assert.Empty(t, rendering.URL)
	assert.Equal(t, "CA", rendering.Initials)
	assert.Equal(t, Color(carol.ID), rendering.Color)
}

func TestUploadFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	require.NoError(t, kv.Set(ctx, CacheKey(carol.ID), "file-old"))
	files := newFakeFiles("file-old")
	files.uploadErr = errors.New("network down")
	avatar, _ := newAvatar(carol, files, &scriptedVerifier{}, kv)

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	res, err := avatar.Upload(ctx)
	require.Error(t, err)
	assert.Equal(t, UploadFailed, res.State)
	assert.Equal(t, "http://api.local/files/file-old/view", avatar.Preview())

	cached, err := kv.Get(ctx, CacheKey(carol.ID))
	require.NoError(t, err)
	assert.Equal(t, "file-old", cached)
}

func TestUploadNotFoundAfterUpload(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	files := newFakeFiles()
	files.hide = true
	avatar, _ := newAvatar(carol, files, &scriptedVerifier{}, kv)

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	res, err := avatar.Upload(ctx)
	assert.ErrorIs(t, err, ErrNotStored)
	assert.Equal(t, UploadFailed, res.State)
	assert.Empty(t, avatar.Preview())
	_, err = kv.Get(ctx, CacheKey(carol.ID))
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestUploadCommitFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemory()
	files := newFakeFiles()
	avatar, account := newAvatar(carol, files, &scriptedVerifier{}, kv)
	account.err = errors.New("status 500")

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	res, err := avatar.Upload(ctx)
	require.Error(t, err)
	assert.Equal(t, RolledBack, res.State)
	_, err = kv.Get(ctx, CacheKey(carol.ID))
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestUploadRollbackCompletesAfterCancel(t *testing.T) {
	kv, err := localstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	files := newFakeFiles()
	avatar, account := newAvatar(carol, files, cancelingVerifier{cancel: cancel}, kv)

	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))
	res, err := avatar.Upload(ctx)
	require.NoError(t, err)
	assert.Equal(t, RolledBack, res.State)
	assert.Empty(t, account.calls)
	assert.Equal(t, []string{"file-new"}, files.deleted)

	_, err = kv.Get(context.Background(), CacheKey(carol.ID))
	assert.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestStateVisibleDuringUpload(t *testing.T) {
	kv := localstore.NewMemory()
	verifier := newGatedVerifier()
	avatar, _ := newAvatar(carol, newFakeFiles(), verifier, kv)
	require.NoError(t, avatar.Select("me.png", "image/png", []byte("png")))

	done := make(chan Result, 1)
	go func() {
		res, _ := avatar.Upload(context.Background())
		done <- res
	}()

	select {
	case <-verifier.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("verification never started")
	}
	assert.Equal(t, Uploaded, avatar.State())
	assert.Equal(t, "http://api.local/files/file-new/view", avatar.Preview())

	_, err := avatar.Upload(context.Background())
	assert.ErrorIs(t, err, ErrUploadRunning)

	close(verifier.release)
	select {
	case res := <-done:
		assert.Equal(t, Confirmed, res.State)
	case <-time.After(5 * time.Second):
		t.Fatal("upload never finished")
	}
	assert.Equal(t, Confirmed, avatar.State())
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("remote record wins and reseeds the cache", func(t *testing.T) {
		kv := localstore.NewMemory()
		require.NoError(t, kv.Set(ctx, CacheKey(carol.ID), "file-stale"))
		user := carol
		user.ProfilePicture = "file-1"
		r := NewResolver(newFakeFiles("file-1"), kv, &scriptedVerifier{})
		r.Interval = 0

		rendering := r.Resolve(ctx, user)
		assert.Equal(t, "http://api.local/files/file-1/view", rendering.URL)
		cached, _ := kv.Get(ctx, CacheKey(carol.ID))
		assert.Equal(t, "file-1", cached)
	})

	t.Run("cached id without remote record", func(t *testing.T) {
		kv := localstore.NewMemory()
		require.NoError(t, kv.Set(ctx, CacheKey(carol.ID), "file-2"))
		r := NewResolver(newFakeFiles("file-2"), kv, &scriptedVerifier{})
		r.Interval = 0

		assert.Equal(t, "http://api.local/files/file-2/view", r.Resolve(ctx, carol).URL)
	})

	t.Run("missing file drops the cache", func(t *testing.T) {
		kv := localstore.NewMemory()
		require.NoError(t, kv.Set(ctx, CacheKey(carol.ID), "file-gone"))
		verifier := &scriptedVerifier{}
		r := NewResolver(newFakeFiles(), kv, verifier)

		assert.Empty(t, r.Resolve(ctx, carol).URL)
		assert.Zero(t, verifier.calls)
		_, err := kv.Get(ctx, CacheKey(carol.ID))
		assert.ErrorIs(t, err, localstore.ErrNotFound)
	})

	t.Run("no picture", func(t *testing.T) {
		r := NewResolver(newFakeFiles(), localstore.NewMemory(), &scriptedVerifier{})
		rendering := r.Resolve(ctx, types.User{ID: "u-1"})
		assert.Equal(t, Rendering{Initials: "U", Color: Color("u-1")}, rendering)
	})
}

func TestInitialsAndColor(t *testing.T) {
	assert.Equal(t, "U", Initials(""))
	assert.Equal(t, "A", Initials("alice"))
	assert.Equal(t, "JD", Initials("john  doe"))
	assert.Equal(t, "MJ", Initials("mary jane watson"))
	assert.Equal(t, "ÉL", Initials("élodie lune"))

	assert.Equal(t, "#6B7280", Color(""))
	// 'a' is 97, 97 % 8 == 1
	assert.Equal(t, "#F59E0B", Color("abc"))
	// '0' is 48, 48 % 8 == 0
	assert.Equal(t, "#EF4444", Color("0f3c"))
}

func TestHTTPVerifier(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG"))
		case "/html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	v := HTTPVerifier{Client: ts.Client()}
	ctx := context.Background()
	assert.NoError(t, v.Verify(ctx, ts.URL+"/image"))
	assert.Error(t, v.Verify(ctx, ts.URL+"/html"))
	assert.Error(t, v.Verify(ctx, ts.URL+"/missing"))
}

func TestVerifyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	verifier := &scriptedVerifier{failures: 100}

	err := verifyWithRetry(ctx, verifier, "http://x", 3, time.Hour)
	assert.Error(t, err)
	assert.LessOrEqual(t, verifier.calls, 1)
}
