/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package profile loads a listener taste snapshot: top artists and
// tracks across time ranges, era and genre distributions, and playlist
// aggregates. The snapshot is an exported JSON document produced by a
// separate analysis job; this package only reads it.
package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// Mode shapes how adventurous recommendation selection is.
type Mode string

const (
	ModeComfort  Mode = "comfort"
	ModeBalanced Mode = "balanced"
	ModeExplorer Mode = "explorer"
)

// ParseMode normalizes a mode string, defaulting to balanced.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeComfort:
		return ModeComfort
	case ModeExplorer:
		return ModeExplorer
	default:
		return ModeBalanced
	}
}

// Artist is a ranked artist entry from the snapshot.
type Artist struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Genres genreField `json:"genres"`
}

// HasGenre reports whether the artist's genre list mentions the genre.
func (a Artist) HasGenre(genre string) bool {
	needle := strings.ToLower(genre)
	for _, g := range a.Genres {
		if strings.Contains(strings.ToLower(g), needle) {
			return true
		}
	}
	return false
}

// genreField tolerates both a JSON array and a comma-joined string,
// both of which appear in snapshots from different exporter versions.
type genreField []string

func (g *genreField) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*g = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*g = nil
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	*g = parts
	return nil
}

// TrackRef is a ranked track entry from the snapshot.
type TrackRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GenreCount is a genre with its occurrence count.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// DecadeCount is a decade label ("1990s") with its occurrence count.
type DecadeCount struct {
	Decade string `json:"decade"`
	Count  int    `json:"count"`
}

// YearCount is a release year with its occurrence count.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Eras is the release-date distribution of the listener's top tracks.
type Eras struct {
	Decades []DecadeCount `json:"decades"`
	Years   []YearCount   `json:"years"`
}

// PlaylistsSummary aggregates the listener's own playlists.
type PlaylistsSummary struct {
	TopArtists []Artist     `json:"top_artists"`
	TopGenres  []GenreCount `json:"top_genres"`
}

// Profile is the full taste snapshot.
type Profile struct {
	TopArtists       map[string][]Artist   `json:"top_artists"`
	TopTracks        map[string][]TrackRef `json:"top_tracks"`
	Eras             Eras                  `json:"eras"`
	TopGenresAllTime []GenreCount          `json:"top_genres_all_time"`
	PlaylistsSummary PlaylistsSummary      `json:"playlists_summary"`
}

// Load reads and validates a snapshot file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a snapshot document. Long-term top artists are the
// backbone of every selection strategy, so their absence is an error.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if len(p.LongTermArtists()) == 0 {
		return nil, fmt.Errorf("profile has no long-term top artists")
	}
	return &p, nil
}

// LongTermArtists returns the long-term top artist ranking.
func (p *Profile) LongTermArtists() []Artist { return p.TopArtists["long_term"] }

// ShortTermArtists returns the short-term top artist ranking.
func (p *Profile) ShortTermArtists() []Artist { return p.TopArtists["short_term"] }

// MediumTermArtists returns the medium-term top artist ranking.
func (p *Profile) MediumTermArtists() []Artist { return p.TopArtists["medium_term"] }

// Favorites returns up to 50 long-term favorite tracks.
func (p *Profile) Favorites() []TrackRef {
	favs := p.TopTracks["long_term"]
	if len(favs) > 50 {
		favs = favs[:50]
	}
	return favs
}

// Weighted pairs a value with a normalized selection weight.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// topNBoost is how many leading ranks get an extra multiplier.
const topNBoost = 10

// ArtistWeights converts a ranked artist list into normalized selection
// weights. Rank falls off polynomially; the exponent and the boost for
// the leading ranks depend on the mode, with comfort concentrating on
// the head of the list and explorer flattening it.
func ArtistWeights(artists []Artist, mode Mode) []Weighted[Artist] {
	var exp, boost float64
	switch mode {
	case ModeComfort:
		exp, boost = 1.5, 2.0
	case ModeExplorer:
		exp, boost = 0.8, 1.2
	default:
		exp, boost = 1.2, 1.5
	}
	out := make([]Weighted[Artist], 0, len(artists))
	var total float64
	for idx, a := range artists {
		rank := idx + 1
		base := math.Pow(math.Max(1, float64(51-rank)), exp)
		if rank <= topNBoost {
			base *= boost
		}
		out = append(out, Weighted[Artist]{Value: a, Weight: base})
		total += base
	}
	if total == 0 {
		total = 1
	}
	for i := range out {
		out[i].Weight /= total
	}
	return out
}

// DecadeWeights smooths the decade distribution into selection weights.
// More exploratory modes smooth harder, pulling weight toward decades
// the listener rarely plays.
func DecadeWeights(eras Eras, mode Mode) []Weighted[string] {
	if len(eras.Decades) == 0 {
		return nil
	}
	var smooth float64
	switch mode {
	case ModeComfort:
		smooth = 2
	case ModeExplorer:
		smooth = 10
	default:
		smooth = 5
	}
	var total float64
	for _, d := range eras.Decades {
		total += float64(d.Count)
	}
	if total == 0 {
		total = 1
	}
	denom := total + smooth*float64(len(eras.Decades))
	out := make([]Weighted[string], 0, len(eras.Decades))
	for _, d := range eras.Decades {
		out = append(out, Weighted[string]{Value: d.Decade, Weight: (float64(d.Count) + smooth) / denom})
	}
	return out
}

// YearWeights smooths the year distribution into selection weights.
func YearWeights(eras Eras, mode Mode) []Weighted[int] {
	if len(eras.Years) == 0 {
		return nil
	}
	var smooth float64
	switch mode {
	case ModeComfort:
		smooth = 0.5
	case ModeExplorer:
		smooth = 2
	default:
		smooth = 1
	}
	var total float64
	for _, y := range eras.Years {
		total += float64(y.Count)
	}
	if total == 0 {
		total = 1
	}
	denom := total + smooth*float64(len(eras.Years))
	out := make([]Weighted[int], 0, len(eras.Years))
	for _, y := range eras.Years {
		out = append(out, Weighted[int]{Value: y.Year, Weight: (float64(y.Count) + smooth) / denom})
	}
	return out
}

// DecadeStartYear parses a decade label like "1990s" into its first
// year. Unparseable labels report false.
func DecadeStartYear(decade string) (int, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(decade), "s")
	year, err := strconv.Atoi(s)
	if err != nil || year < 1000 {
		return 0, false
	}
	return year, true
}
