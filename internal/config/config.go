/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	// Spotify credentials. The refresh token belongs to the listener
	// account the service drives; it is obtained once out of band.
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	Market              string

	// Content sources
	MoodCatalogPath string // optional YAML override for the built-in mood catalog
	ProfilePath     string // taste snapshot for profile sessions; empty disables them

	// Batching
	InitialBatch  int
	SeedSize      int
	TopUpEvery    int
	TopUpBatch    int
	QueueLowWater int
	PollInterval  time.Duration
	ProgressSlack time.Duration

	// Popularity tiers and sampling
	SkipBelowPop int
	MidPopMin    int
	HighPopMin   int
	HighRatio    float64
	MaxShare     float64
	PageCeiling  int

	// TransferPlayback moves playback to the first known device when
	// none is active instead of failing the session start.
	TransferPlayback bool

	// Catalog retry policy
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"BRAGI_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"BRAGI_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"BRAGI_HTTP_PORT"}, 8080),
		MetricsBind: getEnvAny([]string{"BRAGI_METRICS_BIND"}, "127.0.0.1:9000"),

		SpotifyClientID:     getEnvAny([]string{"BRAGI_SPOTIFY_CLIENT_ID", "SPOTIPY_CLIENT_ID"}, ""),
		SpotifyClientSecret: getEnvAny([]string{"BRAGI_SPOTIFY_CLIENT_SECRET", "SPOTIPY_CLIENT_SECRET"}, ""),
		SpotifyRefreshToken: getEnvAny([]string{"BRAGI_SPOTIFY_REFRESH_TOKEN"}, ""),
		Market:              getEnvAny([]string{"BRAGI_MARKET", "SPOTIFY_MARKET"}, "IN"),

		MoodCatalogPath: getEnvAny([]string{"BRAGI_MOOD_CATALOG"}, ""),
		ProfilePath:     getEnvAny([]string{"BRAGI_PROFILE_PATH"}, ""),

		InitialBatch:  getEnvIntAny([]string{"BRAGI_INITIAL_BATCH"}, 50),
		SeedSize:      getEnvIntAny([]string{"BRAGI_SEED_SIZE"}, 5),
		TopUpEvery:    getEnvIntAny([]string{"BRAGI_TOPUP_EVERY"}, 20),
		TopUpBatch:    getEnvIntAny([]string{"BRAGI_TOPUP_BATCH"}, 20),
		QueueLowWater: getEnvIntAny([]string{"BRAGI_QUEUE_LOW_WATER"}, 5),
		PollInterval:  time.Duration(getEnvIntAny([]string{"BRAGI_POLL_SECONDS"}, 3)) * time.Second,
		ProgressSlack: time.Duration(getEnvIntAny([]string{"BRAGI_PROGRESS_SLACK_SECONDS"}, 5)) * time.Second,

		SkipBelowPop: getEnvIntAny([]string{"BRAGI_POP_SKIP_BELOW"}, 20),
		MidPopMin:    getEnvIntAny([]string{"BRAGI_POP_MID_MIN"}, 40),
		HighPopMin:   getEnvIntAny([]string{"BRAGI_POP_HIGH_MIN"}, 75),
		HighRatio:    getEnvFloatAny([]string{"BRAGI_HIGH_RATIO"}, 0.60),
		MaxShare:     getEnvFloatAny([]string{"BRAGI_MAX_SHARE"}, 0.70),
		PageCeiling:  getEnvIntAny([]string{"BRAGI_PAGE_CEILING"}, 5),

		TransferPlayback: getEnvBoolAny([]string{"BRAGI_TRANSFER_PLAYBACK"}, true),

		RetryMaxAttempts: getEnvIntAny([]string{"BRAGI_RETRY_MAX_ATTEMPTS"}, 5),
		RetryBaseDelay:   time.Duration(getEnvIntAny([]string{"BRAGI_RETRY_BASE_MS"}, 250)) * time.Millisecond,
		RetryMaxDelay:    time.Duration(getEnvIntAny([]string{"BRAGI_RETRY_MAX_MS"}, 2000)) * time.Millisecond,
	}

	if cfg.SpotifyClientID == "" {
		return nil, fmt.Errorf("BRAGI_SPOTIFY_CLIENT_ID must be provided")
	}
	if cfg.SpotifyClientSecret == "" {
		return nil, fmt.Errorf("BRAGI_SPOTIFY_CLIENT_SECRET must be provided")
	}
	if cfg.SpotifyRefreshToken == "" {
		return nil, fmt.Errorf("BRAGI_SPOTIFY_REFRESH_TOKEN must be provided")
	}
	if cfg.HighRatio <= 0 || cfg.HighRatio > 1 {
		return nil, fmt.Errorf("BRAGI_HIGH_RATIO must be in (0, 1], got %v", cfg.HighRatio)
	}
	if cfg.MaxShare <= 0 || cfg.MaxShare > 1 {
		return nil, fmt.Errorf("BRAGI_MAX_SHARE must be in (0, 1], got %v", cfg.MaxShare)
	}
	if cfg.MidPopMin >= cfg.HighPopMin {
		return nil, fmt.Errorf("BRAGI_POP_MID_MIN (%d) must be below BRAGI_POP_HIGH_MIN (%d)", cfg.MidPopMin, cfg.HighPopMin)
	}
	if cfg.SeedSize > cfg.InitialBatch {
		return nil, fmt.Errorf("BRAGI_SEED_SIZE (%d) cannot exceed BRAGI_INITIAL_BATCH (%d)", cfg.SeedSize, cfg.InitialBatch)
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"SPOTIPY_CLIENT_ID":     "use BRAGI_SPOTIFY_CLIENT_ID",
		"SPOTIPY_CLIENT_SECRET": "use BRAGI_SPOTIFY_CLIENT_SECRET",
		"SPOTIFY_MARKET":        "use BRAGI_MARKET",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the bind address for the API listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
