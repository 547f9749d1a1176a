/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/friendsincode/bragi_queue/internal/models"
)

// Playback operations are thin passthroughs: no retry, errors bubble up as
// a single failed operation. A failed enqueue usually means the device or
// queue went stale, so callers stop the batch instead of hammering on.

// Devices lists the user's playback devices.
func (c *Client) Devices(ctx context.Context) ([]models.Device, error) {
	var resp wireDevicesResponse
	if err := c.get(ctx, "/me/player/devices", nil, &resp); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	out := make([]models.Device, 0, len(resp.Devices))
	for _, d := range resp.Devices {
		out = append(out, models.Device{ID: d.ID, Name: d.Name, Type: d.Type, Active: d.IsActive})
	}
	return out, nil
}

// TransferPlayback moves playback to the given device.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	body := map[string]any{"device_ids": []string{deviceID}, "play": true}
	resp, err := req.SetBody(body).Put("/me/player")
	if err != nil {
		return fmt.Errorf("transfer playback: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("transfer playback: status %d", resp.StatusCode())
	}
	return nil
}

// StartPlayback starts playing the given track URIs on a device.
func (c *Client) StartPlayback(ctx context.Context, deviceID string, uris []string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetQueryParam("device_id", deviceID).
		SetBody(map[string]any{"uris": uris}).
		Put("/me/player/play")
	if err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("start playback: status %d", resp.StatusCode())
	}
	return nil
}

// Enqueue appends one track to the active queue.
func (c *Client) Enqueue(ctx context.Context, trackURI, deviceID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetQueryParams(map[string]string{"uri": trackURI, "device_id": deviceID}).
		Post("/me/player/queue")
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", trackURI, err)
	}
	if resp.IsError() {
		return fmt.Errorf("enqueue %s: status %d", trackURI, resp.StatusCode())
	}
	return nil
}

// CurrentPlayback fetches the playback snapshot. The second return is false
// when nothing is playing (204 or no item).
func (c *Client) CurrentPlayback(ctx context.Context) (models.PlaybackState, bool, error) {
	req, err := c.request(ctx)
	if err != nil {
		return models.PlaybackState{}, false, err
	}
	var state wirePlaybackState
	resp, err := req.SetResult(&state).Get("/me/player")
	if err != nil {
		return models.PlaybackState{}, false, fmt.Errorf("current playback: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return models.PlaybackState{}, false, nil
	}
	if resp.IsError() {
		return models.PlaybackState{}, false, fmt.Errorf("current playback: status %d", resp.StatusCode())
	}
	if state.Item == nil {
		return models.PlaybackState{}, false, nil
	}
	return models.PlaybackState{
		TrackID:    state.Item.ID,
		TrackURI:   state.Item.URI,
		ProgressMS: state.ProgressMS,
		Playing:    state.IsPlaying,
		DeviceID:   state.Device.ID,
	}, true, nil
}

// Queue fetches the pending queue length. Best effort: any failure reports
// the snapshot as unavailable rather than an error, since not every client
// type can serve it.
func (c *Client) Queue(ctx context.Context) models.QueueSnapshot {
	req, err := c.request(ctx)
	if err != nil {
		return models.QueueSnapshot{}
	}
	var resp wireQueueResponse
	r, err := req.SetResult(&resp).Get("/me/player/queue")
	if err != nil || r.IsError() {
		return models.QueueSnapshot{}
	}
	return models.QueueSnapshot{Available: true, Length: len(resp.Queue)}
}

// SaveTrack stores a track in the user's library.
func (c *Client) SaveTrack(ctx context.Context, trackID string) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetQueryParam("ids", strings.TrimSpace(trackID)).Put("/me/tracks")
	if err != nil {
		return fmt.Errorf("save track %s: %w", trackID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("save track %s: status %d", trackID, resp.StatusCode())
	}
	return nil
}

// EnsureDevice resolves a usable device: the active one when present,
// otherwise the first listed (optionally transferring playback to it).
// Returns ErrNoActiveDevice when no devices exist.
func (c *Client) EnsureDevice(ctx context.Context, transfer bool) (string, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoActiveDevice
	}
	for _, d := range devices {
		if d.Active {
			return d.ID, nil
		}
	}
	target := devices[0]
	if transfer {
		if err := c.TransferPlayback(ctx, target.ID); err != nil {
			return "", err
		}
	}
	return target.ID, nil
}
