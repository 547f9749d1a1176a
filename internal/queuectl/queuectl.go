/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queuectl pushes assembled batches into a device's playback
// queue. It is strictly additive: tracks are appended in batch order
// and the live queue is never reordered or cleared.
package queuectl

import (
	"context"
	"fmt"

	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/rs/zerolog"
)

// Player is the slice of the catalog client the controller needs.
type Player interface {
	StartPlayback(ctx context.Context, deviceID string, uris []string) error
	Enqueue(ctx context.Context, trackURI, deviceID string) error
}

// Controller appends batches to a device queue.
type Controller struct {
	player Player
	logger zerolog.Logger
}

// New builds a queue controller.
func New(player Player, logger zerolog.Logger) *Controller {
	return &Controller{
		player: player,
		logger: logger.With().Str("component", "queuectl").Logger(),
	}
}

// StartAndSeed starts playback with the first track and enqueues the
// rest in order. The returned count includes the started track. A
// start failure is fatal; an enqueue failure truncates the seed and is
// reported through the count alone, since playback is already running.
func (c *Controller) StartAndSeed(ctx context.Context, deviceID string, tracks []models.Track) (int, error) {
	if len(tracks) == 0 {
		return 0, fmt.Errorf("empty seed batch")
	}
	first := tracks[0]
	if err := c.player.StartPlayback(ctx, deviceID, []string{first.URI}); err != nil {
		return 0, fmt.Errorf("start playback: %w", err)
	}
	c.logger.Info().Str("track", first.Title).Str("artist", first.PrimaryArtist()).Msg("now playing")
	return 1 + c.TopUp(ctx, deviceID, tracks[1:]), nil
}

// TopUp enqueues tracks in order, stopping at the first failure. The
// device queue caps out eventually; a mid-batch error means later
// enqueues would fail too, so the rest of the batch is dropped.
func (c *Controller) TopUp(ctx context.Context, deviceID string, tracks []models.Track) int {
	for i, t := range tracks {
		if err := c.player.Enqueue(ctx, t.URI, deviceID); err != nil {
			c.logger.Warn().Err(err).
				Int("queued", i).
				Int("dropped", len(tracks)-i).
				Msg("enqueue failed, truncating batch")
			return i
		}
		c.logger.Debug().Str("track", t.Title).Str("artist", t.PrimaryArtist()).Str("source", t.Source).Msg("queued")
	}
	return len(tracks)
}
