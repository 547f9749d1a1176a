/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package dedup recognizes re-releases, remasters and feature-credit
// variants of a song already selected during a session.
package dedup

import (
	"regexp"
	"strings"

	"github.com/friendsincode/bragi_queue/internal/models"
)

var (
	featRx    = regexp.MustCompile(`(?i)\s*\(feat\.[^)]*\)`)
	editionRx = regexp.MustCompile(`(?i)\s*-\s*(remaster(?:ed)?(?: \d{4})?|mono version|deluxe version|expanded edition)\b.*`)
	spaceRx   = regexp.MustCompile(`\s+`)
	excludeRx = regexp.MustCompile(`(?i)\b(cover|karaoke)\b`)
)

// Key computes the canonical identity of a track: cleaned lowercased title
// paired with the lowercased primary artist. Two tracks with the same key
// are the same song.
func Key(t models.Track) string {
	title := strings.TrimSpace(t.Title)
	title = featRx.ReplaceAllString(title, "")
	title = editionRx.ReplaceAllString(title, "")
	title = strings.ToLower(spaceRx.ReplaceAllString(title, " "))
	title = strings.TrimSpace(title)
	artist := strings.ToLower(strings.TrimSpace(t.PrimaryArtist()))
	return title + "||" + artist
}

// Excluded reports whether the title or album carries a word from the
// exclusion vocabulary (cover, karaoke).
func Excluded(t models.Track) bool {
	return excludeRx.MatchString(t.Title) || excludeRx.MatchString(t.Album)
}

// SeenSet records every track ID and dedup key selected during a session.
// It grows monotonically and is discarded with the session. It is owned by
// a single session loop and must not be shared across sessions.
type SeenSet struct {
	ids  map[string]struct{}
	keys map[string]struct{}
}

// NewSeenSet creates an empty seen set.
func NewSeenSet() *SeenSet {
	return &SeenSet{
		ids:  make(map[string]struct{}),
		keys: make(map[string]struct{}),
	}
}

// Has reports whether the track's ID or dedup key was already selected.
func (s *SeenSet) Has(t models.Track) bool {
	if _, ok := s.ids[t.ID]; ok {
		return true
	}
	_, ok := s.keys[Key(t)]
	return ok
}

// Add commits a track's ID and dedup key.
func (s *SeenSet) Add(t models.Track) {
	if t.ID != "" {
		s.ids[t.ID] = struct{}{}
	}
	s.keys[Key(t)] = struct{}{}
}

// AddID commits a bare track ID observed outside batch building, e.g. a
// track the user played on their own that the monitor noticed.
func (s *SeenSet) AddID(id string) {
	if id != "" {
		s.ids[id] = struct{}{}
	}
}

// Len returns the number of distinct track IDs committed.
func (s *SeenSet) Len() int { return len(s.ids) }

// Filter applies the session's content rules and commits accepted tracks
// into the seen set. Accept-and-commit is atomic from the caller's side:
// there is no separate reserve step.
//
// Single-writer contract: a Filter and its SeenSet belong to exactly one
// session loop. The batch assembler calls Accept only while running on
// behalf of that loop.
type Filter struct {
	Seen *SeenSet
	// MinPopularity rejects tracks below the floor when > 0.
	MinPopularity int
}

// Accept reports whether the track passes content and duplicate checks,
// committing it to the seen set when it does.
func (f *Filter) Accept(t models.Track) bool {
	if t.ID == "" {
		return false
	}
	if Excluded(t) {
		return false
	}
	if f.MinPopularity > 0 && t.Popularity < f.MinPopularity {
		return false
	}
	if f.Seen.Has(t) {
		return false
	}
	f.Seen.Add(t)
	return true
}
