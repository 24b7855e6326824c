package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"watchcord/internal/discord"
	"watchcord/internal/presence"
	"watchcord/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	_, f, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(f), "..", "..", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
	if err := s.Migrate(dir); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	return NewServer(s, opts...), s
}

// storePrefs mirrors how the daemon feeds preference flags into the
// presence layer.
type storePrefs struct{ s *store.Store }

func (p storePrefs) PresenceEnabled() bool {
	v, err := p.s.GetPresenceEnabled()
	return err == nil && v
}

func (p storePrefs) ShowTitles() bool {
	v, err := p.s.GetShowTitles()
	return err == nil && v
}

func newTestMirror(t *testing.T, s *store.Store) *presence.Mirror {
	t.Helper()
	m := presence.New(true, storePrefs{s}, s, func() discord.Transport { return discord.NewNoop() })
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doRaw(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
