/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information and release checking.
package version

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Version is the current version, overridable at build time via ldflags:
//
//	-X github.com/friendsincode/bragi_queue/internal/version.Version=X.Y.Z
var Version = "0.4.1"

// GitHubRepo is the repository checked for newer releases.
const GitHubRepo = "friendsincode/bragi_queue"

// UpdateInfo describes the latest known release relative to this build.
type UpdateInfo struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
	CheckedAt       time.Time
}

// Checker polls the GitHub releases API in the background.
type Checker struct {
	mu     sync.RWMutex
	info   UpdateInfo
	http   *resty.Client
	logger zerolog.Logger
	cancel context.CancelFunc
}

const checkPeriod = 6 * time.Hour

// NewChecker creates a release checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		info: UpdateInfo{CurrentVersion: Version},
		http: resty.New().
			SetBaseURL("https://api.github.com").
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/vnd.github.v3+json").
			SetHeader("User-Agent", "Bragi-Queue/"+Version),
		logger: logger.With().Str("component", "update-checker").Logger(),
	}
}

// Start checks immediately, then every six hours until Stop or ctx cancel.
func (c *Checker) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.check(ctx)

	go func() {
		ticker := time.NewTicker(checkPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.check(ctx)
			}
		}
	}()
}

// Stop halts background checking.
func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Info returns the last check result.
func (c *Checker) Info() UpdateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

func (c *Checker) check(ctx context.Context) {
	var release struct {
		TagName string `json:"tag_name"`
		HTMLURL string `json:"html_url"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&release).
		Get(fmt.Sprintf("/repos/%s/releases/latest", GitHubRepo))
	if err != nil {
		c.logger.Debug().Err(err).Msg("release check failed")
		return
	}
	if resp.IsError() {
		c.logger.Debug().Int("status", resp.StatusCode()).Msg("unexpected status from GitHub")
		return
	}

	latest := strings.TrimPrefix(release.TagName, "v")

	c.mu.Lock()
	c.info = UpdateInfo{
		CurrentVersion:  Version,
		LatestVersion:   latest,
		UpdateAvailable: compareVersions(Version, latest) < 0,
		ReleaseURL:      release.HTMLURL,
		CheckedAt:       time.Now(),
	}
	updated := c.info.UpdateAvailable
	c.mu.Unlock()

	if updated {
		c.logger.Info().Str("current", Version).Str("latest", latest).Msg("new version available")
	}
}

// compareVersions orders two semver strings: -1 when a < b, 1 when a > b.
func compareVersions(a, b string) int {
	av, bv := parseVersion(a), parseVersion(b)
	for i := 0; i < 3; i++ {
		if av[i] != bv[i] {
			if av[i] < bv[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func parseVersion(v string) [3]int {
	var out [3]int
	parts := strings.Split(strings.TrimPrefix(v, "v"), ".")
	for i := 0; i < len(parts) && i < 3; i++ {
		fmt.Sscanf(parts[i], "%d", &out[i])
	}
	return out
}
