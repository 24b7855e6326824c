package server

import (
	"net/http"

	"watchcord/internal/models"
	"watchcord/internal/presence"
)

type statusResponse struct {
	Presence  presence.Presence        `json:"presence"`
	Connected bool                     `json:"connected"`
	Enabled   bool                     `json:"enabled"`
	Sessions  []models.PlaybackSession `json:"sessions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Presence: presence.Idle(),
		Sessions: []models.PlaybackSession{},
	}
	if s.mirror != nil {
		st := s.mirror.Current()
		resp.Presence = st.Presence
		resp.Connected = st.Connected
		resp.Enabled = s.mirror.Enabled()
	}
	if s.watcher != nil {
		resp.Sessions = s.watcher.CurrentSessions()
	}
	writeJSON(w, http.StatusOK, resp)
}
