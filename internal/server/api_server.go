package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"watchcord/internal/discord"
	"watchcord/internal/httputil"
	"watchcord/internal/media"
	"watchcord/internal/models"
)

// maskedSecret is returned in place of the stored API key. Clients send it
// back unchanged to mean "keep the stored key".
const maskedSecret = "********"

const maxSettingsBody = 1 << 16

type serverSettings struct {
	URL      string `json:"url"`
	APIKey   string `json:"api_key"`
	Username string `json:"username"`
}

func maskServerConfig(cfg models.ServerConfig) serverSettings {
	out := serverSettings{URL: cfg.URL, Username: cfg.Username}
	if cfg.APIKey != "" {
		out.APIKey = maskedSecret
	}
	return out
}

func (s *Server) handleGetServerSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetServerConfig()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, maskServerConfig(cfg))
}

func (s *Server) handleUpdateServerSettings(w http.ResponseWriter, r *http.Request) {
	var req serverSettings
	r.Body = http.MaxBytesReader(w, r.Body, maxSettingsBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.APIKey == maskedSecret {
		req.APIKey = ""
	}

	if err := httputil.ValidateServerURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := s.store.GetServerConfig()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	cfg := models.ServerConfig{URL: req.URL, APIKey: req.APIKey, Username: req.Username}
	if cfg.APIKey == "" {
		if cfg.URL != stored.URL {
			writeError(w, http.StatusBadRequest, "api_key is required when changing the URL")
			return
		}
		cfg.APIKey = stored.APIKey
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.SetServerConfig(cfg); err != nil {
		writeStoreError(w, err)
		return
	}

	s.syncSourceToWatcher(cfg)
	writeJSON(w, http.StatusOK, maskServerConfig(cfg))
}

func (s *Server) handleDeleteServerSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteServerConfig(); err != nil {
		writeStoreError(w, err)
		return
	}
	if s.watcher != nil {
		s.watcher.ClearSource()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) syncSourceToWatcher(cfg models.ServerConfig) {
	if s.watcher == nil {
		return
	}
	if cfg.URL == "" {
		s.watcher.ClearSource()
		return
	}
	s.watcher.SetSource(media.NewClient(cfg), cfg.Username)
}

type probeResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type testConnectionsResponse struct {
	Media   probeResult `json:"media"`
	Discord probeResult `json:"discord"`
}

// handleTestConnections probes the media server and the local rich
// presence socket in parallel. A request body overrides the stored server
// config so the UI can test credentials before saving them.
func (s *Server) handleTestConnections(w http.ResponseWriter, r *http.Request) {
	var req serverSettings
	r.Body = http.MaxBytesReader(w, r.Body, maxSettingsBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	stored, err := s.store.GetServerConfig()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	cfg := stored
	if req.URL != "" {
		cfg = models.ServerConfig{URL: req.URL, APIKey: req.APIKey, Username: req.Username}
		if cfg.APIKey == "" || cfg.APIKey == maskedSecret {
			cfg.APIKey = stored.APIKey
		}
	}
	if cfg.URL == "" {
		writeError(w, http.StatusBadRequest, "no media server configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var mediaErr, discordErr error
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mediaErr = media.NewClient(cfg).TestConnection(ctx)
		return nil
	})
	g.Go(func() error {
		discordErr = discord.Probe()
		return nil
	})
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := testConnectionsResponse{
		Media:   probeResult{Success: mediaErr == nil},
		Discord: probeResult{Success: discordErr == nil},
	}
	if mediaErr != nil {
		resp.Media.Error = mediaErr.Error()
	}
	if discordErr != nil {
		resp.Discord.Error = discordErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
