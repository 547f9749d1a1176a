/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/friendsincode/bragi_queue/internal/models"
)

// Search issues one page of a full-text track search. Transient failures
// are retried per the client's policy; exhausted retries surface
// as an error the caller treats as "no results this page".
func (c *Client) Search(ctx context.Context, query string, limit, offset int) ([]models.Track, error) {
	var resp wireSearchResponse
	params := map[string]string{
		"q":      query,
		"type":   "track",
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	}
	if c.market != "" {
		params["market"] = c.market
	}
	if err := c.getRetry(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return parseTracks(resp.Tracks.Items), nil
}

// PlaylistName resolves a playlist's display name, memoized per client.
// Failures fall back to the bare playlist ID; the name is cosmetic.
func (c *Client) PlaylistName(ctx context.Context, ref string) string {
	id := idFromRef(ref)

	c.mu.Lock()
	if name, ok := c.playlistNames[id]; ok {
		c.mu.Unlock()
		return name
	}
	c.mu.Unlock()

	var resp wirePlaylist
	if err := c.get(ctx, "/playlists/"+id, map[string]string{"fields": "name"}, &resp); err != nil {
		return id
	}
	if resp.Name == "" {
		return id
	}

	c.mu.Lock()
	c.playlistNames[id] = resp.Name
	c.mu.Unlock()
	return resp.Name
}

// PlaylistTracks fetches a playlist's items. Local uploads and trackless
// items are skipped. With firstPageOnly only the first 100 items are
// fetched, which keeps seed building fast.
func (c *Client) PlaylistTracks(ctx context.Context, ref string, firstPageOnly bool) ([]models.Track, error) {
	id := idFromRef(ref)
	fields := "items(track(id,uri,name,artists(name),album(name),popularity,is_local)),next"

	var out []models.Track
	offset := 0
	for {
		var page wirePlaylistItemsPage
		params := map[string]string{
			"fields": fields,
			"limit":  "100",
			"offset": strconv.Itoa(offset),
		}
		if err := c.get(ctx, "/playlists/"+id+"/tracks", params, &page); err != nil {
			if len(out) > 0 {
				// Keep what earlier pages yielded.
				return out, nil
			}
			return nil, fmt.Errorf("playlist %s items: %w", id, err)
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			out = append(out, parseTrack(*item.Track))
		}

		if firstPageOnly || page.Next == "" || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}
	return out, nil
}

// ArtistTopTracks fetches the catalog's top tracks for an artist.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	var resp wireTopTracksResponse
	params := map[string]string{}
	if c.market != "" {
		params["market"] = c.market
	}
	if err := c.get(ctx, "/artists/"+artistID+"/top-tracks", params, &resp); err != nil {
		return nil, fmt.Errorf("artist %s top tracks: %w", artistID, err)
	}
	return parseTracks(resp.Tracks), nil
}

// ArtistAlbums lists an artist's albums and singles, newest first as the
// catalog returns them.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string) ([]Album, error) {
	var resp wireAlbumsPage
	params := map[string]string{
		"include_groups": "album,single",
		"limit":          "50",
	}
	if c.market != "" {
		params["market"] = c.market
	}
	if err := c.get(ctx, "/artists/"+artistID+"/albums", params, &resp); err != nil {
		return nil, fmt.Errorf("artist %s albums: %w", artistID, err)
	}
	out := make([]Album, 0, len(resp.Items))
	for _, a := range resp.Items {
		out = append(out, Album{ID: a.ID, Name: a.Name, ReleaseDate: a.ReleaseDate})
	}
	return out, nil
}

// Track fetches a single track by ID.
func (c *Client) Track(ctx context.Context, trackID string) (models.Track, error) {
	var wt wireTrack
	params := map[string]string{}
	if c.market != "" {
		params["market"] = c.market
	}
	if err := c.get(ctx, "/tracks/"+trackID, params, &wt); err != nil {
		return models.Track{}, fmt.Errorf("track %s: %w", trackID, err)
	}
	return parseTrack(wt), nil
}

// AlbumTracks lists an album's tracks. Album-level payloads carry no
// popularity; those default to zero.
func (c *Client) AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error) {
	var page wireTrackPage
	if err := c.get(ctx, "/albums/"+albumID+"/tracks", map[string]string{"limit": "50"}, &page); err != nil {
		return nil, fmt.Errorf("album %s tracks: %w", albumID, err)
	}
	return parseTracks(page.Items), nil
}
