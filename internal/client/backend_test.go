package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/inkpost/apiserver/internal/localstore"
	"github.com/inkpost/apiserver/types"
)

// fakeBackend records calls and answers from a route table keyed by
// "METHOD /path".
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	queries  []string
	bodies   map[string]string
	auth     map[string]string
	handlers map[string]http.HandlerFunc
	server   *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		bodies:   map[string]string{},
		auth:     map[string]string{},
		handlers: map[string]http.HandlerFunc{},
	}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		fb.mu.Lock()
		fb.calls = append(fb.calls, key)
		fb.queries = append(fb.queries, r.URL.RawQuery)
		fb.bodies[key] = string(body)
		fb.auth[key] = r.Header.Get("Authorization")
		h, ok := fb.handlers[key]
		fb.mu.Unlock()
		if !ok {
			reply(w, http.StatusNotFound, map[string]string{"error": "route not found"})
			return
		}
		h(w, r)
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) on(method, path string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.handlers[method+" "+path] = h
}

func (fb *fakeBackend) callCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.calls)
}

func (fb *fakeBackend) called(key string) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, c := range fb.calls {
		if c == key {
			return true
		}
	}
	return false
}

func (fb *fakeBackend) bodyOf(key string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.bodies[key]
}

func (fb *fakeBackend) authOf(key string) string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.auth[key]
}

func (fb *fakeBackend) lastQuery() string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.queries) == 0 {
		return ""
	}
	return fb.queries[len(fb.queries)-1]
}

func reply(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func replyWith(status int, value any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply(w, status, value)
	}
}

func noContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

var alice = types.User{ID: "u-alice", Name: "Alice Doe", Email: "alice@example.com"}

func newIdentity(fb *fakeBackend) (*Identity, *localstore.Memory) {
	kv := localstore.NewMemory()
	return NewIdentity(fb.server.URL, kv, fb.server.Client()), kv
}
