/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog is the single point of contact with the Spotify Web API.
// It parses wire payloads into typed records at the boundary and isolates
// the retry policy for transient search failures.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/friendsincode/bragi_queue/internal/telemetry"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const apiBase = "https://api.spotify.com/v1"

// ErrNoActiveDevice indicates no playback device could be resolved.
var ErrNoActiveDevice = errors.New("no active playback device")

// RetryPolicy bounds retries for transient search failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the adapter defaults: 5 attempts, 250ms base,
// 2s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// Client wraps the Spotify Web API.
type Client struct {
	http   *resty.Client
	tokens oauth2.TokenSource
	market string
	retry  RetryPolicy
	logger zerolog.Logger

	mu            sync.Mutex
	playlistNames map[string]string
}

// New creates a catalog client. The token source carries the OAuth
// user credential; token caching and refresh are its concern.
func New(tokens oauth2.TokenSource, market string, retry RetryPolicy, logger zerolog.Logger) *Client {
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryPolicy()
	}
	httpClient := resty.New().
		SetBaseURL(apiBase).
		SetTimeout(15 * time.Second)

	return &Client{
		http:          httpClient,
		tokens:        tokens,
		market:        market,
		retry:         retry,
		logger:        logger.With().Str("component", "catalog").Logger(),
		playlistNames: make(map[string]string),
	}
}

// transientStatus reports whether an HTTP status is worth retrying.
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("acquire token: %w", err)
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token.AccessToken), nil
}

// get performs a single GET without retry.
func (c *Client) get(ctx context.Context, path string, query map[string]string, out any) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetQueryParams(query).SetResult(out).Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode())
	}
	return nil
}

// getRetry performs a GET retried with exponential backoff on transport
// errors, rate limits and server errors. Exhausted retries surface the last
// error; callers in the pool layer treat that as an empty page.
func (c *Client) getRetry(ctx context.Context, path string, query map[string]string, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retry.BaseDelay
	policy.MaxInterval = c.retry.MaxDelay
	policy.MaxElapsedTime = 0

	attempts := 0
	op := func() error {
		attempts++
		if attempts > 1 {
			telemetry.CatalogRetriesTotal.Inc()
		}
		req, err := c.request(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := req.SetQueryParams(query).SetResult(out).Get(path)
		if err != nil {
			return err
		}
		if resp.IsError() {
			statusErr := fmt.Errorf("GET %s: status %d", path, resp.StatusCode())
			if transientStatus(resp.StatusCode()) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.retry.MaxAttempts-1)), ctx))
	if err != nil {
		c.logger.Debug().Err(err).Str("path", path).Int("attempts", attempts).Msg("catalog call failed")
	}
	return err
}

// idFromRef extracts a bare ID from a URL, URI, or already-bare reference.
// "https://open.spotify.com/playlist/abc?si=x", "spotify:playlist:abc" and
// "abc" all yield "abc".
func idFromRef(ref string) string {
	ref = strings.SplitN(ref, "?", 2)[0]
	if idx := strings.LastIndex(ref, ":"); idx >= 0 {
		ref = ref[idx+1:]
	}
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		ref = ref[idx+1:]
	}
	return ref
}
