package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"watchcord/internal/presence"
	"watchcord/internal/store"
	"watchcord/internal/version"
	"watchcord/internal/watcher"
)

type Server struct {
	router     chi.Router
	store      *store.Store
	mirror     *presence.Mirror
	watcher    *watcher.Watcher
	version    *version.Checker
	corsOrigin string
}

func NewServer(s *store.Store, opts ...Option) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		store:  s,
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.Logger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

func WithMirror(m *presence.Mirror) Option {
	return func(s *Server) { s.mirror = m }
}

func WithWatcher(w *watcher.Watcher) Option {
	return func(s *Server) { s.watcher = w }
}

func WithVersionChecker(c *version.Checker) Option {
	return func(s *Server) { s.version = c }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
