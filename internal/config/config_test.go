package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BRAGI_SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("BRAGI_SPOTIFY_CLIENT_SECRET", "client-secret")
	t.Setenv("BRAGI_SPOTIFY_REFRESH_TOKEN", "refresh-token")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRAGI_ENV", "development")
	t.Setenv("BRAGI_MARKET", "US")
	t.Setenv("BRAGI_TOPUP_EVERY", "10")
	t.Setenv("BRAGI_POLL_SECONDS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SpotifyClientID != "client-id" {
		t.Fatalf("unexpected client id: %q", cfg.SpotifyClientID)
	}
	if cfg.Market != "US" {
		t.Fatalf("unexpected market: %q", cfg.Market)
	}
	if cfg.TopUpEvery != 10 {
		t.Fatalf("unexpected top-up interval: %d", cfg.TopUpEvery)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Fatalf("unexpected poll interval: %v", cfg.PollInterval)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.InitialBatch != 50 || cfg.SeedSize != 5 || cfg.TopUpBatch != 20 {
		t.Fatalf("unexpected batch defaults: %d/%d/%d", cfg.InitialBatch, cfg.SeedSize, cfg.TopUpBatch)
	}
	if cfg.HighRatio != 0.60 || cfg.MaxShare != 0.70 {
		t.Fatalf("unexpected sampling defaults: %v/%v", cfg.HighRatio, cfg.MaxShare)
	}
	if !cfg.TransferPlayback {
		t.Fatal("expected playback transfer to default on")
	}
	if cfg.HTTPAddr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr())
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("BRAGI_SPOTIFY_CLIENT_ID", "client-id")
	t.Setenv("BRAGI_SPOTIFY_CLIENT_SECRET", "client-secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail without a refresh token")
	}
}

func TestLoadAcceptsLegacyCredentialKeys(t *testing.T) {
	t.Setenv("SPOTIPY_CLIENT_ID", "legacy-id")
	t.Setenv("SPOTIPY_CLIENT_SECRET", "legacy-secret")
	t.Setenv("BRAGI_SPOTIFY_REFRESH_TOKEN", "refresh-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SpotifyClientID != "legacy-id" {
		t.Fatalf("unexpected client id: %q", cfg.SpotifyClientID)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

func TestLoadRejectsInvalidTiers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRAGI_POP_MID_MIN", "80")
	t.Setenv("BRAGI_POP_HIGH_MIN", "75")

	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail when mid tier floor exceeds high tier floor")
	}
}

func TestLoadRejectsInvalidRatios(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRAGI_HIGH_RATIO", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail with a high ratio above 1")
	}
}
