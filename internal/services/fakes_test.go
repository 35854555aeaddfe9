package services

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inkpost/apiserver/internal/mq"
	"github.com/inkpost/apiserver/internal/storage"
	"github.com/inkpost/apiserver/internal/store"
	"github.com/inkpost/apiserver/types"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]types.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]types.User{}}
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == strings.ToLower(user.Email) {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.Email = strings.ToLower(user.Email)
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUsers) Update(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	f.users[user.ID] = user
	return user, nil
}

type fakeSessions struct {
	mu         sync.Mutex
	sessions   map[string]types.Session
	recoveries []types.Recovery
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]types.Session{}}
}

func (f *fakeSessions) Create(ctx context.Context, session types.Session) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = uuid.NewString()
	session.CreatedAt = time.Now().UTC()
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeSessions) Get(ctx context.Context, id string) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok || !session.ExpiresAt.After(time.Now()) {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessions) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, session := range f.sessions {
		if session.UserID == userID {
			delete(f.sessions, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) CreateRecovery(ctx context.Context, recovery types.Recovery) (types.Recovery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	recovery.ID = uuid.NewString()
	f.recoveries = append(f.recoveries, recovery)
	return recovery, nil
}

func (f *fakeSessions) ConsumeRecovery(ctx context.Context, userID, secretHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, recovery := range f.recoveries {
		if recovery.UserID == userID && recovery.SecretHash == secretHash && recovery.ExpiresAt.After(time.Now()) {
			f.recoveries = append(f.recoveries[:i], f.recoveries[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeFiles struct {
	mu    sync.Mutex
	files map[string]types.File
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{files: map[string]types.File{}}
}

func (f *fakeFiles) Get(ctx context.Context, id string) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[id]
	if !ok {
		return types.File{}, store.ErrNotFound
	}
	return file, nil
}

func (f *fakeFiles) Create(ctx context.Context, file types.File) (types.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeFiles) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.files, id)
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (f *fakeObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakePosts struct {
	mu    sync.Mutex
	posts map[string]types.Post
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[string]types.Post{}}
}

func (f *fakePosts) List(ctx context.Context, q types.PostQuery) ([]types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []types.Post{}
	for _, post := range f.posts {
		if q.Status != "" && post.Status != q.Status {
			continue
		}
		if q.UserID != "" && post.UserID != q.UserID {
			continue
		}
		if q.Slug != "" && post.Slug != q.Slug {
			continue
		}
		out = append(out, post)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePosts) Get(ctx context.Context, id string) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (f *fakePosts) Create(ctx context.Context, post types.Post) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = uuid.NewString()
	post.CreatedAt = time.Now().UTC()
	post.UpdatedAt = post.CreatedAt
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePosts) Update(ctx context.Context, post types.Post) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[post.ID]; !ok {
		return types.Post{}, store.ErrNotFound
	}
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePosts) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

type fakePublisher struct {
	events []mq.RecoveryRequested
}

func (f *fakePublisher) PublishRecovery(ctx context.Context, event mq.RecoveryRequested) (string, error) {
	f.events = append(f.events, event)
	return "msg", nil
}
