package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"watchcord/internal/auth"
	"watchcord/internal/crypto"
	"watchcord/internal/discord"
	"watchcord/internal/media"
	"watchcord/internal/presence"
	"watchcord/internal/server"
	"watchcord/internal/store"
	"watchcord/internal/version"
	"watchcord/internal/watcher"
)

// Version is stamped at build time via -ldflags "-X main.Version=...".
var Version = "dev"

// storePrefs feeds live preference values into the presence layer. Reads
// go straight to settings so a toggle takes effect on the next check.
type storePrefs struct {
	s *store.Store
}

func (p storePrefs) PresenceEnabled() bool {
	v, err := p.s.GetPresenceEnabled()
	if err != nil {
		log.Printf("reading presence preference: %v", err)
		return false
	}
	return v
}

func (p storePrefs) ShowTitles() bool {
	v, err := p.s.GetShowTitles()
	if err != nil {
		log.Printf("reading titles preference: %v", err)
		return false
	}
	return v
}

func main() {
	dbPath := envOr("DB_PATH", "./data/watchcord.db")
	listenAddr := envOr("LISTEN_ADDR", "127.0.0.1:7989")
	migrationsDir := envOr("MIGRATIONS_DIR", "./migrations")
	corsOrigin := os.Getenv("CORS_ORIGIN")

	pollInterval := 15 * time.Second
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("bad POLL_INTERVAL: %v", err)
		}
		pollInterval = d
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal(err)
	}

	var storeOpts []store.Option
	if key := os.Getenv("WATCHCORD_ENCRYPTION_KEY"); key != "" {
		enc, err := crypto.NewEncryptor(key)
		if err != nil {
			log.Fatalf("bad WATCHCORD_ENCRYPTION_KEY: %v", err)
		}
		storeOpts = append(storeOpts, store.WithEncryptor(enc))
	} else if hint, err := crypto.GenerateKey(); err == nil {
		log.Printf("WATCHCORD_ENCRYPTION_KEY not set, API keys stored unencrypted (example key: %s)", hint)
	}

	s, err := store.New(dbPath, storeOpts...)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer s.Close()

	if err := s.Migrate(migrationsDir); err != nil {
		log.Fatalf("running migrations: %v", err)
	}

	if token := os.Getenv("WATCHCORD_API_TOKEN"); token != "" {
		hash, err := auth.HashToken(token)
		if err != nil {
			log.Fatalf("hashing API token: %v", err)
		}
		if err := s.SetAPITokenHash(hash); err != nil {
			log.Fatalf("storing API token: %v", err)
		}
	}

	capability := discord.Available()
	if v := os.Getenv("WATCHCORD_DISABLE_PRESENCE"); v == "1" || v == "true" {
		capability = false
	}
	if !capability {
		log.Println("rich presence unavailable, running with a noop transport")
	}

	newTransport := func() discord.Transport {
		if !capability {
			return discord.NewNoop()
		}
		appID, err := s.GetDiscordAppID()
		if err != nil {
			log.Printf("reading application id: %v", err)
			return discord.NewNoop()
		}
		return discord.NewClient(appID)
	}

	mirror := presence.New(capability, storePrefs{s}, s, newTransport)
	mirror.Start(context.Background())
	defer mirror.Stop()
	mirror.Setup()

	w := watcher.New(mirror, s, pollInterval)
	if cfg, err := s.GetServerConfig(); err != nil {
		log.Printf("loading server config: %v", err)
	} else if cfg.URL != "" {
		w.SetSource(media.NewClient(cfg), cfg.Username)
	} else {
		log.Println("no media server configured, set one via the API")
	}
	w.Start(context.Background())
	defer w.Stop()

	checker := version.NewChecker(Version)

	var opts []server.Option
	if corsOrigin != "" {
		opts = append(opts, server.WithCORSOrigin(corsOrigin))
	}
	opts = append(opts,
		server.WithMirror(mirror),
		server.WithWatcher(w),
		server.WithVersionChecker(checker),
	)
	srv := server.NewServer(s, opts...)
	defer server.StopRateLimiter()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go checker.Start(ctx)

	go func() {
		log.Printf("Watchcord %s listening on %s", Version, listenAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
