package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(limitBody)
		r.Use(jsonContentType)
		r.Use(corsMiddleware(s.corsOrigin))
		r.Use(s.requireToken)

		r.Get("/status", s.handleStatus)
		r.Get("/version", s.handleVersion)

		r.Route("/settings/presence", func(sr chi.Router) {
			sr.Get("/", s.handleGetPresenceSettings)
			sr.Put("/", s.handleUpdatePresenceSettings)
		})

		r.Route("/settings/server", func(sr chi.Router) {
			sr.Get("/", s.handleGetServerSettings)
			sr.Put("/", s.handleUpdateServerSettings)
			sr.Delete("/", s.handleDeleteServerSettings)
		})
		r.Post("/server/test", s.handleTestConnections)

		r.Get("/progress", s.handleListProgress)
		r.Delete("/progress/{seriesID}", s.handleDeleteProgress)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(corsMiddleware(s.corsOrigin))
		r.Use(s.requireToken)
		r.Get("/api/ws", s.handleStatusWS)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"error"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
