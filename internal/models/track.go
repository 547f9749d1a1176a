/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the typed records built at the catalog boundary.
// Everything here is immutable once fetched and lives only for the duration
// of a playback session.
package models

// Track is one playable unit as returned by the catalog.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Title      string   `json:"title"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	Popularity int      `json:"popularity"`
	// Source records which category (mood key, tag, strategy) produced the
	// track. Filled in by the pool or assembler, not by the catalog.
	Source string `json:"source,omitempty"`
}

// PrimaryArtist returns the first artist name, or "" when none is known.
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// Device is a playback target reported by the catalog.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// PlaybackState is a point-in-time playback snapshot.
type PlaybackState struct {
	TrackID    string `json:"track_id"`
	TrackURI   string `json:"track_uri"`
	ProgressMS int64  `json:"progress_ms"`
	Playing    bool   `json:"playing"`
	DeviceID   string `json:"device_id"`
}

// QueueSnapshot is the catalog's pending queue. Best effort: some clients
// cannot report it, in which case Available is false and Length is zero.
type QueueSnapshot struct {
	Available bool `json:"available"`
	Length    int  `json:"length"`
}
