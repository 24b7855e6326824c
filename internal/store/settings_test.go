package store

import (
	"strings"
	"testing"

	"watchcord/internal/models"
)

func TestSetAndGetSetting(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetSetting("theme", "dark"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	val, err := s.GetSetting("theme")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if val != "dark" {
		t.Fatalf("expected dark, got %s", val)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	val, err := s.GetSetting("nonexistent")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if val != "" {
		t.Fatalf("expected empty string, got %s", val)
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetSetting("key", "v1"); err != nil {
		t.Fatalf("SetSetting v1: %v", err)
	}
	if err := s.SetSetting("key", "v2"); err != nil {
		t.Fatalf("SetSetting v2: %v", err)
	}

	val, err := s.GetSetting("key")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestPresenceEnabledDefaultsOn(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	enabled, err := s.GetPresenceEnabled()
	if err != nil {
		t.Fatalf("GetPresenceEnabled: %v", err)
	}
	if !enabled {
		t.Fatal("expected presence to default to enabled")
	}
}

func TestPresenceEnabledRoundTrip(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetPresenceEnabled(false); err != nil {
		t.Fatalf("SetPresenceEnabled: %v", err)
	}
	enabled, err := s.GetPresenceEnabled()
	if err != nil {
		t.Fatalf("GetPresenceEnabled: %v", err)
	}
	if enabled {
		t.Fatal("expected presence disabled")
	}

	if err := s.SetPresenceEnabled(true); err != nil {
		t.Fatalf("SetPresenceEnabled: %v", err)
	}
	enabled, err = s.GetPresenceEnabled()
	if err != nil {
		t.Fatalf("GetPresenceEnabled: %v", err)
	}
	if !enabled {
		t.Fatal("expected presence enabled")
	}
}

func TestShowTitlesDefaultsOff(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	show, err := s.GetShowTitles()
	if err != nil {
		t.Fatalf("GetShowTitles: %v", err)
	}
	if show {
		t.Fatal("expected show_titles to default to off")
	}
}

func TestShowTitlesRoundTrip(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetShowTitles(true); err != nil {
		t.Fatalf("SetShowTitles: %v", err)
	}
	show, err := s.GetShowTitles()
	if err != nil {
		t.Fatalf("GetShowTitles: %v", err)
	}
	if !show {
		t.Fatal("expected show_titles on")
	}
}

func TestDiscordAppIDDefault(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	id, err := s.GetDiscordAppID()
	if err != nil {
		t.Fatalf("GetDiscordAppID: %v", err)
	}
	if id != DefaultDiscordAppID {
		t.Fatalf("expected default app id, got %s", id)
	}
}

func TestDiscordAppIDRoundTrip(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetDiscordAppID("123456789012345678"); err != nil {
		t.Fatalf("SetDiscordAppID: %v", err)
	}
	id, err := s.GetDiscordAppID()
	if err != nil {
		t.Fatalf("GetDiscordAppID: %v", err)
	}
	if id != "123456789012345678" {
		t.Fatalf("expected stored app id, got %s", id)
	}
}

func TestDiscordAppIDRejectsGarbage(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetDiscordAppID("not-a-snowflake"); err == nil {
		t.Fatal("expected error for non-numeric app id")
	}
}

func TestServerConfigRoundTrip(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	cfg := models.ServerConfig{URL: "http://localhost:8096", APIKey: "abc123", Username: "alice"}
	if err := s.SetServerConfig(cfg); err != nil {
		t.Fatalf("SetServerConfig: %v", err)
	}

	got, err := s.GetServerConfig()
	if err != nil {
		t.Fatalf("GetServerConfig: %v", err)
	}
	if got != cfg {
		t.Fatalf("expected %+v, got %+v", cfg, got)
	}
}

func TestServerConfigEmptyKeyKeepsStored(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetServerConfig(models.ServerConfig{URL: "http://localhost:8096", APIKey: "secret", Username: "alice"}); err != nil {
		t.Fatalf("SetServerConfig: %v", err)
	}
	if err := s.SetServerConfig(models.ServerConfig{URL: "http://newhost:8096", Username: "alice"}); err != nil {
		t.Fatalf("SetServerConfig without key: %v", err)
	}

	got, err := s.GetServerConfig()
	if err != nil {
		t.Fatalf("GetServerConfig: %v", err)
	}
	if got.URL != "http://newhost:8096" {
		t.Fatalf("expected updated URL, got %s", got.URL)
	}
	if got.APIKey != "secret" {
		t.Fatalf("expected stored key preserved, got %q", got.APIKey)
	}
}

func TestServerConfigDelete(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	if err := s.SetServerConfig(models.ServerConfig{URL: "http://localhost:8096", APIKey: "k", Username: "alice"}); err != nil {
		t.Fatalf("SetServerConfig: %v", err)
	}
	if err := s.DeleteServerConfig(); err != nil {
		t.Fatalf("DeleteServerConfig: %v", err)
	}

	got, err := s.GetServerConfig()
	if err != nil {
		t.Fatalf("GetServerConfig: %v", err)
	}
	if got.URL != "" || got.APIKey != "" || got.Username != "" {
		t.Fatalf("expected empty config after delete, got %+v", got)
	}
}

func TestServerConfigEncryptedAtRest(t *testing.T) {
	s := newTestStoreWithMigrations(t, WithEncryptor(testEncryptor(t)))

	cfg := models.ServerConfig{URL: "http://localhost:8096", APIKey: "secret-api-key", Username: "alice"}
	if err := s.SetServerConfig(cfg); err != nil {
		t.Fatalf("SetServerConfig: %v", err)
	}

	raw, err := s.GetSetting("server.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if raw == "secret-api-key" {
		t.Fatal("API key stored in plaintext despite encryptor being configured")
	}
	if !strings.HasPrefix(raw, "enc:") {
		t.Fatalf("expected enc: prefix, got %q", raw)
	}

	got, err := s.GetServerConfig()
	if err != nil {
		t.Fatal(err)
	}
	if got != cfg {
		t.Fatalf("expected %+v, got %+v", cfg, got)
	}
}

func TestServerConfigPlaintextUpgrade(t *testing.T) {
	s := newTestStoreWithMigrations(t, WithEncryptor(testEncryptor(t)))

	// A database written before the encryption key existed holds the key
	// in plaintext. Reads must still work, and the next write seals it.
	if err := s.SetSetting("server.url", "http://localhost:8096"); err != nil {
		t.Fatalf("SetSetting url: %v", err)
	}
	if err := s.SetSetting("server.api_key", "plaintext-key"); err != nil {
		t.Fatalf("SetSetting api_key: %v", err)
	}

	got, err := s.GetServerConfig()
	if err != nil {
		t.Fatalf("GetServerConfig: %v", err)
	}
	if got.APIKey != "plaintext-key" {
		t.Fatalf("expected plaintext key readable, got %q", got.APIKey)
	}

	if err := s.SetServerConfig(models.ServerConfig{URL: got.URL, APIKey: got.APIKey, Username: "alice"}); err != nil {
		t.Fatalf("SetServerConfig: %v", err)
	}
	raw, err := s.GetSetting("server.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(raw, "enc:") {
		t.Fatalf("expected rewrite to seal the key, got %q", raw)
	}
}

func TestAPITokenHashRoundTrip(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	hash, err := s.GetAPITokenHash()
	if err != nil {
		t.Fatalf("GetAPITokenHash: %v", err)
	}
	if hash != "" {
		t.Fatalf("expected no hash initially, got %q", hash)
	}

	if err := s.SetAPITokenHash("$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"); err != nil {
		t.Fatalf("SetAPITokenHash: %v", err)
	}
	hash, err = s.GetAPITokenHash()
	if err != nil {
		t.Fatalf("GetAPITokenHash: %v", err)
	}
	if hash == "" {
		t.Fatal("expected stored hash")
	}
}
