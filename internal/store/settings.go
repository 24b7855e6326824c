package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"watchcord/internal/models"
)

const settingUpsert = `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`

// encPrefix marks settings values that were encrypted before storage.
// Values without the prefix are returned as-is, so databases written
// before an encryption key was configured keep working.
const encPrefix = "enc:"

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting: %w", err)
	}
	return value, nil
}

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(settingUpsert, key, value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) sealSetting(value string) (string, error) {
	if s.encryptor == nil || value == "" {
		return value, nil
	}
	sealed, err := s.encryptor.Encrypt(value)
	if err != nil {
		return "", fmt.Errorf("encrypting setting: %w", err)
	}
	return encPrefix + sealed, nil
}

func (s *Store) openSetting(value string) (string, error) {
	sealed, ok := strings.CutPrefix(value, encPrefix)
	if !ok {
		return value, nil
	}
	if s.encryptor == nil {
		return "", fmt.Errorf("encrypted setting but no encryption key configured")
	}
	plain, err := s.encryptor.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypting setting: %w", err)
	}
	return plain, nil
}

const presenceEnabledKey = "presence.enabled"

// GetPresenceEnabled reports the user preference for mirroring playback to
// rich presence. Defaults to enabled when never set.
func (s *Store) GetPresenceEnabled() (bool, error) {
	val, err := s.GetSetting(presenceEnabledKey)
	if err != nil {
		return false, err
	}
	if val == "" {
		return true, nil
	}
	return val == "true", nil
}

func (s *Store) SetPresenceEnabled(enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	return s.SetSetting(presenceEnabledKey, val)
}

const showTitlesKey = "presence.show_titles"

// GetShowTitles reports whether presence text may include episode numbers
// from the watch progress tracker. Defaults to off.
func (s *Store) GetShowTitles() (bool, error) {
	val, err := s.GetSetting(showTitlesKey)
	if err != nil {
		return false, err
	}
	return val == "true", nil
}

func (s *Store) SetShowTitles(enabled bool) error {
	val := "false"
	if enabled {
		val = "true"
	}
	return s.SetSetting(showTitlesKey, val)
}

const discordAppIDKey = "discord.app_id"

// DefaultDiscordAppID is the registered application whose asset keys the
// activity payloads reference.
const DefaultDiscordAppID = "1049399491126424616"

func (s *Store) GetDiscordAppID() (string, error) {
	val, err := s.GetSetting(discordAppIDKey)
	if err != nil {
		return "", err
	}
	if val == "" {
		return DefaultDiscordAppID, nil
	}
	return val, nil
}

func (s *Store) SetDiscordAppID(id string) error {
	if id != "" {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return fmt.Errorf("invalid application id: %s", id)
		}
	}
	return s.SetSetting(discordAppIDKey, id)
}

// GetServerConfig returns the configured media server connection. The API
// key is decrypted when an encryption key is configured.
func (s *Store) GetServerConfig() (models.ServerConfig, error) {
	var cfg models.ServerConfig
	var err error
	if cfg.URL, err = s.GetSetting("server.url"); err != nil {
		return cfg, err
	}
	raw, err := s.GetSetting("server.api_key")
	if err != nil {
		return cfg, err
	}
	if cfg.APIKey, err = s.openSetting(raw); err != nil {
		return cfg, err
	}
	if cfg.Username, err = s.GetSetting("server.username"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SetServerConfig stores the media server connection. An empty APIKey
// leaves any previously stored key untouched so the UI can resubmit the
// form without the secret.
func (s *Store) SetServerConfig(cfg models.ServerConfig) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range []struct{ k, v string }{
		{"server.url", cfg.URL},
		{"server.username", cfg.Username},
	} {
		if _, err := tx.Exec(settingUpsert, kv.k, kv.v); err != nil {
			return fmt.Errorf("setting %q: %w", kv.k, err)
		}
	}
	if cfg.APIKey != "" {
		sealed, err := s.sealSetting(cfg.APIKey)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(settingUpsert, "server.api_key", sealed); err != nil {
			return fmt.Errorf("setting %q: %w", "server.api_key", err)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteServerConfig() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key IN ('server.url', 'server.api_key', 'server.username')`)
	if err != nil {
		return fmt.Errorf("deleting server config: %w", err)
	}
	return nil
}

const apiTokenHashKey = "auth.token_hash"

func (s *Store) GetAPITokenHash() (string, error) {
	return s.GetSetting(apiTokenHashKey)
}

func (s *Store) SetAPITokenHash(hash string) error {
	return s.SetSetting(apiTokenHashKey, hash)
}
