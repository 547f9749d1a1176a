/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"strings"

	"github.com/friendsincode/bragi_queue/internal/models"
)

// Wire payloads as the API returns them. Parsing into models happens here,
// at the boundary, with defensive defaults for missing fields.

type wireArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireAlbum struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type wireTrack struct {
	ID         string       `json:"id"`
	URI        string       `json:"uri"`
	Name       string       `json:"name"`
	Artists    []wireArtist `json:"artists"`
	Album      *wireAlbum   `json:"album"`
	Popularity *int         `json:"popularity"`
	IsLocal    bool         `json:"is_local"`
}

type wireTrackPage struct {
	Items []wireTrack `json:"items"`
	Next  string      `json:"next"`
	Total int         `json:"total"`
}

type wireSearchResponse struct {
	Tracks wireTrackPage `json:"tracks"`
}

type wirePlaylistItem struct {
	Track *wireTrack `json:"track"`
}

type wirePlaylistItemsPage struct {
	Items []wirePlaylistItem `json:"items"`
	Next  string             `json:"next"`
}

type wirePlaylist struct {
	Name string `json:"name"`
}

type wireDevice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

type wireDevicesResponse struct {
	Devices []wireDevice `json:"devices"`
}

type wirePlaybackState struct {
	Item       *wireTrack `json:"item"`
	ProgressMS int64      `json:"progress_ms"`
	IsPlaying  bool       `json:"is_playing"`
	Device     wireDevice `json:"device"`
}

type wireQueueResponse struct {
	Queue []wireTrack `json:"queue"`
}

type wireTopTracksResponse struct {
	Tracks []wireTrack `json:"tracks"`
}

type wireAlbumsPage struct {
	Items []wireAlbum `json:"items"`
}

// Album is a release listed under an artist.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

func parseTrack(w wireTrack) models.Track {
	artists := make([]string, 0, len(w.Artists))
	for _, a := range w.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			artists = append(artists, name)
		}
	}

	pop := 0
	if w.Popularity != nil {
		pop = *w.Popularity
	}

	album := ""
	if w.Album != nil {
		album = w.Album.Name
	}

	uri := w.URI
	if uri == "" && w.ID != "" {
		uri = "spotify:track:" + w.ID
	}

	return models.Track{
		ID:         w.ID,
		URI:        uri,
		Title:      w.Name,
		Artists:    artists,
		Album:      album,
		Popularity: pop,
	}
}

func parseTracks(items []wireTrack) []models.Track {
	out := make([]models.Track, 0, len(items))
	for _, item := range items {
		if item.IsLocal || item.ID == "" {
			continue
		}
		out = append(out, parseTrack(item))
	}
	return out
}
