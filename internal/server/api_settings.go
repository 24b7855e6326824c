package server

import (
	"encoding/json"
	"net/http"
)

type presenceSettings struct {
	Enabled    *bool `json:"enabled,omitempty"`
	ShowTitles *bool `json:"show_titles,omitempty"`
}

func (s *Server) readPresenceSettings() (presenceSettings, error) {
	enabled, err := s.store.GetPresenceEnabled()
	if err != nil {
		return presenceSettings{}, err
	}
	showTitles, err := s.store.GetShowTitles()
	if err != nil {
		return presenceSettings{}, err
	}
	return presenceSettings{Enabled: &enabled, ShowTitles: &showTitles}, nil
}

func (s *Server) handleGetPresenceSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.readPresenceSettings()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleUpdatePresenceSettings persists the fields present in the request
// and leaves the rest untouched. Changing the enabled flag resets the
// presence connection so the new value takes effect immediately.
func (s *Server) handleUpdatePresenceSettings(w http.ResponseWriter, r *http.Request) {
	var req presenceSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Enabled != nil {
		if err := s.store.SetPresenceEnabled(*req.Enabled); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if req.ShowTitles != nil {
		if err := s.store.SetShowTitles(*req.ShowTitles); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	if s.mirror != nil && (req.Enabled != nil || req.ShowTitles != nil) {
		s.mirror.Reset()
	}

	settings, err := s.readPresenceSettings()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
