/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recommend selects tracks from a listener's taste profile.
// Each candidate comes from one of nine weighted strategies; the mode
// (comfort, balanced, explorer) shifts both the strategy mix and how
// far down ranked lists each strategy reaches.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/friendsincode/bragi_queue/internal/catalog"
	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/friendsincode/bragi_queue/internal/profile"
	"github.com/rs/zerolog"
)

// Catalog is the slice of the catalog client the recommender needs.
type Catalog interface {
	Search(ctx context.Context, query string, limit, offset int) ([]models.Track, error)
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)
	ArtistAlbums(ctx context.Context, artistID string) ([]catalog.Album, error)
	AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error)
	Track(ctx context.Context, trackID string) (models.Track, error)
}

// Strategy names, also used as the Reason.Strategy value.
const (
	StratArtistTopTracks   = "artist_top_tracks"
	StratArtistAlbumPick   = "artist_album_pick"
	StratEraYearBias       = "era_year_bias"
	StratGenreExplore      = "genre_explore"
	StratFavoriteThrowback = "favorite_throwback"
	StratShortTermBoost    = "short_term_boost"
	StratMediumTermBoost   = "medium_term_boost"
	StratPlaylistArtist    = "playlist_artist"
	StratPlaylistGenre     = "playlist_genre"
)

// strategyWeights sum to 1.0 per mode.
var strategyWeights = map[profile.Mode]map[string]float64{
	profile.ModeComfort: {
		StratArtistTopTracks:   0.35,
		StratArtistAlbumPick:   0.20,
		StratEraYearBias:       0.10,
		StratGenreExplore:      0.08,
		StratFavoriteThrowback: 0.12,
		StratShortTermBoost:    0.10,
		StratMediumTermBoost:   0.03,
		StratPlaylistArtist:    0.01,
		StratPlaylistGenre:     0.01,
	},
	profile.ModeBalanced: {
		StratArtistTopTracks:   0.22,
		StratArtistAlbumPick:   0.15,
		StratEraYearBias:       0.15,
		StratGenreExplore:      0.18,
		StratFavoriteThrowback: 0.08,
		StratShortTermBoost:    0.10,
		StratMediumTermBoost:   0.06,
		StratPlaylistArtist:    0.03,
		StratPlaylistGenre:     0.03,
	},
	profile.ModeExplorer: {
		StratArtistTopTracks:   0.12,
		StratArtistAlbumPick:   0.08,
		StratEraYearBias:       0.22,
		StratGenreExplore:      0.26,
		StratFavoriteThrowback: 0.04,
		StratShortTermBoost:    0.10,
		StratMediumTermBoost:   0.08,
		StratPlaylistArtist:    0.05,
		StratPlaylistGenre:     0.05,
	},
}

const (
	albumTopN  = 3
	relatedMax = 5
)

var errNoCandidate = errors.New("strategy produced no candidate")

// Reason explains why a track was selected.
type Reason struct {
	Strategy string `json:"strategy"`
	Details  string `json:"details"`
}

// Pick is a selected track with its selection reason.
type Pick struct {
	Track  models.Track `json:"track"`
	Reason Reason       `json:"reason"`
}

// Recommender generates picks from one profile snapshot. It is owned by
// a single session loop and is not safe for concurrent use.
type Recommender struct {
	cat    Catalog
	prof   *profile.Profile
	mode   profile.Mode
	rng    *rand.Rand
	logger zerolog.Logger

	weights    map[string]float64
	artistW    []profile.Weighted[profile.Artist]
	decadeW    []profile.Weighted[string]
	yearW      []profile.Weighted[int]
	lastArtist string
}

// New builds a recommender for the given profile and mode. A nil rng
// gets a time-seeded one.
func New(cat Catalog, prof *profile.Profile, mode profile.Mode, rng *rand.Rand, logger zerolog.Logger) *Recommender {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Recommender{
		cat:     cat,
		prof:    prof,
		mode:    mode,
		rng:     rng,
		logger:  logger.With().Str("component", "recommend").Str("mode", string(mode)).Logger(),
		weights: strategyWeights[mode],
		artistW: profile.ArtistWeights(prof.LongTermArtists(), mode),
		decadeW: profile.DecadeWeights(prof.Eras, mode),
		yearW:   profile.YearWeights(prof.Eras, mode),
	}
}

// NoteNowPlaying records the artist currently playing so the next batch
// does not open with the same artist.
func (r *Recommender) NoteNowPlaying(artistName string) {
	r.lastArtist = artistName
}

// BuildBatch generates up to n eligible picks. The filter enforces the
// session's content and duplicate rules; a pick that would put the same
// artist twice in a row is skipped. Attempts are bounded, so a dry
// profile yields a short batch rather than a stall.
func (r *Recommender) BuildBatch(ctx context.Context, n int, f *dedup.Filter) []Pick {
	out := make([]Pick, 0, n)
	prevArtist := r.lastArtist
	for attempts := 0; len(out) < n && attempts < n*15; attempts++ {
		if ctx.Err() != nil {
			break
		}
		pick, err := r.generateOne(ctx)
		if err != nil {
			continue
		}
		artist := pick.Track.PrimaryArtist()
		if artist != "" && artist == prevArtist {
			continue
		}
		if !f.Accept(pick.Track) {
			continue
		}
		out = append(out, pick)
		prevArtist = artist
	}
	if len(out) > 0 {
		r.lastArtist = out[len(out)-1].Track.PrimaryArtist()
	}
	if len(out) < n {
		r.logger.Debug().Int("requested", n).Int("built", len(out)).Msg("profile ran short of fresh candidates")
	}
	return out
}

func (r *Recommender) generateOne(ctx context.Context) (Pick, error) {
	switch r.chooseStrategy() {
	case StratArtistAlbumPick:
		return r.artistAlbumPick(ctx)
	case StratEraYearBias:
		return r.eraYearBias(ctx)
	case StratGenreExplore:
		return r.genreExplore(ctx)
	case StratFavoriteThrowback:
		return r.favoriteThrowback(ctx)
	case StratShortTermBoost:
		return r.termBoost(ctx, StratShortTermBoost, r.prof.ShortTermArtists(), albumTopN+2)
	case StratMediumTermBoost:
		return r.termBoost(ctx, StratMediumTermBoost, r.prof.MediumTermArtists(), albumTopN+3)
	case StratPlaylistArtist:
		return r.playlistArtist(ctx)
	case StratPlaylistGenre:
		return r.playlistGenre(ctx)
	default:
		return r.artistTopTracks(ctx)
	}
}

func (r *Recommender) chooseStrategy() string {
	names := make([]string, 0, len(r.weights))
	for name := range r.weights {
		names = append(names, name)
	}
	sort.Strings(names)
	roll := r.rng.Float64()
	var acc float64
	for _, name := range names {
		acc += r.weights[name]
		if roll < acc {
			return name
		}
	}
	return StratArtistTopTracks
}

// widen returns the mode-dependent pick window: base for comfort, wider
// for balanced and explorer.
func (r *Recommender) widen(base, balancedAdd, explorerAdd int) int {
	switch r.mode {
	case profile.ModeComfort:
		return base
	case profile.ModeExplorer:
		return base + explorerAdd
	default:
		return base + balancedAdd
	}
}

func (r *Recommender) pickFromWindow(tracks []models.Track, window int) (models.Track, error) {
	if len(tracks) == 0 {
		return models.Track{}, errNoCandidate
	}
	if window < 1 {
		window = 1
	}
	if window > len(tracks) {
		window = len(tracks)
	}
	return tracks[r.rng.Intn(window)], nil
}

func (r *Recommender) weightedArtist() (profile.Artist, error) {
	if len(r.artistW) == 0 {
		return profile.Artist{}, errNoCandidate
	}
	roll := r.rng.Float64()
	var acc float64
	for _, w := range r.artistW {
		acc += w.Weight
		if roll < acc {
			return w.Value, nil
		}
	}
	return r.artistW[len(r.artistW)-1].Value, nil
}

func (r *Recommender) artistTopTracks(ctx context.Context) (Pick, error) {
	a, err := r.weightedArtist()
	if err != nil {
		return Pick{}, err
	}
	tops, err := r.cat.ArtistTopTracks(ctx, a.ID)
	if err != nil || len(tops) == 0 {
		tops, err = r.cat.Search(ctx, fmt.Sprintf("artist:%q", a.Name), 20, 0)
		if err != nil {
			return Pick{}, err
		}
	}
	t, err := r.pickFromWindow(tops, r.widen(albumTopN, 2, 5))
	if err != nil {
		return Pick{}, err
	}
	return Pick{Track: t, Reason: Reason{StratArtistTopTracks, "Weighted long-term artist -> " + a.Name}}, nil
}

func (r *Recommender) artistAlbumPick(ctx context.Context) (Pick, error) {
	a, err := r.weightedArtist()
	if err != nil {
		return Pick{}, err
	}
	albums, err := r.cat.ArtistAlbums(ctx, a.ID)
	if err != nil || len(albums) == 0 {
		return r.artistTopTracks(ctx)
	}
	// ISO release dates sort lexicographically; partial dates ("2006")
	// still land in the right order.
	sort.SliceStable(albums, func(i, j int) bool { return albums[i].ReleaseDate > albums[j].ReleaseDate })

	var chosen catalog.Album
	switch r.mode {
	case profile.ModeComfort:
		chosen = albums[0]
	case profile.ModeExplorer:
		chosen = albums[r.rng.Intn(min(8, len(albums)))]
	default:
		chosen = albums[r.rng.Intn(min(3, len(albums)))]
	}

	tracks, err := r.cat.AlbumTracks(ctx, chosen.ID)
	if err != nil || len(tracks) == 0 {
		return r.artistTopTracks(ctx)
	}
	t, err := r.pickFromWindow(tracks, r.widen(albumTopN, 3, 7))
	if err != nil {
		return Pick{}, err
	}
	return Pick{Track: t, Reason: Reason{StratArtistAlbumPick, a.Name + " -> album " + chosen.Name}}, nil
}

func (r *Recommender) eraYearBias(ctx context.Context) (Pick, error) {
	year := 0
	switch {
	case len(r.decadeW) > 0:
		decade := r.weightedString(r.decadeW)
		if start, ok := profile.DecadeStartYear(decade); ok {
			year = start + r.rng.Intn(10)
		}
	case len(r.yearW) > 0:
		year = r.weightedInt(r.yearW)
	}
	if year == 0 {
		now := time.Now().Year()
		year = 2000 + r.rng.Intn(now-2000+1)
	}

	tracks, err := r.cat.Search(ctx, fmt.Sprintf("year:%d", year), 50, 0)
	if err != nil || len(tracks) == 0 {
		return r.artistTopTracks(ctx)
	}

	var exp float64
	switch r.mode {
	case profile.ModeComfort:
		exp = 1.5
	case profile.ModeExplorer:
		exp = 0.8
	default:
		exp = 1.2
	}
	weights := make([]float64, len(tracks))
	var total float64
	for i, t := range tracks {
		pop := t.Popularity
		if pop == 0 {
			pop = 50
		}
		weights[i] = math.Max(1, math.Pow(float64(pop), exp))
		total += weights[i]
	}
	roll := r.rng.Float64() * total
	idx := len(tracks) - 1
	var acc float64
	for i, w := range weights {
		acc += w
		if roll < acc {
			idx = i
			break
		}
	}
	t := tracks[idx]
	details := fmt.Sprintf("Favored year %d (%ds)", year, (year/10)*10)
	return Pick{Track: t, Reason: Reason{StratEraYearBias, details}}, nil
}

func (r *Recommender) genreExplore(ctx context.Context) (Pick, error) {
	genre, ok := r.smoothedGenre(r.prof.TopGenresAllTime)
	if !ok {
		return r.artistTopTracks(ctx)
	}
	var candidates []profile.Artist
	for _, a := range r.prof.LongTermArtists() {
		if a.HasGenre(genre) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return r.artistTopTracks(ctx)
	}
	a := candidates[r.rng.Intn(len(candidates))]
	tops, err := r.cat.ArtistTopTracks(ctx, a.ID)
	if err != nil || len(tops) == 0 {
		return r.artistTopTracks(ctx)
	}
	t, err := r.pickFromWindow(tops, r.widen(relatedMax, 2, 5))
	if err != nil {
		return Pick{}, err
	}
	return Pick{Track: t, Reason: Reason{StratGenreExplore, fmt.Sprintf("All-time genre %q -> %s", genre, a.Name)}}, nil
}

func (r *Recommender) favoriteThrowback(ctx context.Context) (Pick, error) {
	favs := r.prof.Favorites()
	if len(favs) == 0 {
		return r.artistTopTracks(ctx)
	}
	var pool []profile.TrackRef
	switch r.mode {
	case profile.ModeComfort:
		pool = favs[:min(10, len(favs))]
	case profile.ModeExplorer:
		pool = favs
	default:
		pool = favs[:min(25, len(favs))]
	}
	ref := pool[r.rng.Intn(len(pool))]
	t, err := r.cat.Track(ctx, ref.ID)
	if err != nil {
		return Pick{}, err
	}
	return Pick{Track: t, Reason: Reason{StratFavoriteThrowback, "Top-tracks throwback -> " + t.Title}}, nil
}

func (r *Recommender) termBoost(ctx context.Context, strategy string, artists []profile.Artist, window int) (Pick, error) {
	if len(artists) == 0 {
		return r.artistTopTracks(ctx)
	}
	a := artists[r.rng.Intn(len(artists))]
	tops, err := r.cat.ArtistTopTracks(ctx, a.ID)
	if err != nil || len(tops) == 0 {
		return r.artistTopTracks(ctx)
	}
	t, err := r.pickFromWindow(tops, window)
	if err != nil {
		return Pick{}, err
	}
	details := "Recent favorite artist -> " + a.Name
	if strategy == StratMediumTermBoost {
		details = "Mid-term favorite artist -> " + a.Name
	}
	return Pick{Track: t, Reason: Reason{strategy, details}}, nil
}

func (r *Recommender) playlistArtist(ctx context.Context) (Pick, error) {
	artists := r.prof.PlaylistsSummary.TopArtists
	if len(artists) == 0 {
		return r.artistTopTracks(ctx)
	}
	a := artists[r.rng.Intn(len(artists))]
	if a.ID == "" {
		return r.artistTopTracks(ctx)
	}
	tops, err := r.cat.ArtistTopTracks(ctx, a.ID)
	if err != nil || len(tops) == 0 {
		return r.artistTopTracks(ctx)
	}
	t, err := r.pickFromWindow(tops, relatedMax)
	if err != nil {
		return Pick{}, err
	}
	return Pick{Track: t, Reason: Reason{StratPlaylistArtist, "Playlist-heavy artist -> " + a.Name}}, nil
}

func (r *Recommender) playlistGenre(ctx context.Context) (Pick, error) {
	genre, ok := r.smoothedGenre(r.prof.PlaylistsSummary.TopGenres)
	if !ok {
		return r.artistTopTracks(ctx)
	}
	var candidates []profile.Artist
	for _, a := range r.prof.LongTermArtists() {
		if a.HasGenre(genre) {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		for _, a := range r.prof.PlaylistsSummary.TopArtists {
			if a.HasGenre(genre) {
				candidates = append(candidates, a)
			}
		}
	}
	if len(candidates) > 0 {
		a := candidates[r.rng.Intn(len(candidates))]
		tops, err := r.cat.ArtistTopTracks(ctx, a.ID)
		if err == nil && len(tops) > 0 {
			t, err := r.pickFromWindow(tops, relatedMax+2)
			if err == nil {
				return Pick{Track: t, Reason: Reason{StratPlaylistGenre, fmt.Sprintf("Playlist genre %q -> %s", genre, a.Name)}}, nil
			}
		}
	}

	// Loose text search keeps the genre honored even without a seed artist.
	picks, err := r.cat.Search(ctx, genre, 20, 0)
	if err == nil && len(picks) > 0 {
		t := picks[r.rng.Intn(len(picks))]
		return Pick{Track: t, Reason: Reason{StratPlaylistGenre, fmt.Sprintf("Playlist genre %q -> text search pick", genre)}}, nil
	}
	return r.artistTopTracks(ctx)
}

func (r *Recommender) smoothedGenre(genres []profile.GenreCount) (string, bool) {
	if len(genres) == 0 {
		return "", false
	}
	var smooth float64
	switch r.mode {
	case profile.ModeComfort:
		smooth = 2
	case profile.ModeExplorer:
		smooth = 10
	default:
		smooth = 5
	}
	var total float64
	weights := make([]float64, len(genres))
	for i, g := range genres {
		weights[i] = float64(g.Count) + smooth
		total += weights[i]
	}
	roll := r.rng.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if roll < acc {
			return genres[i].Genre, true
		}
	}
	return genres[len(genres)-1].Genre, true
}

func (r *Recommender) weightedString(ws []profile.Weighted[string]) string {
	roll := r.rng.Float64()
	var acc float64
	for _, w := range ws {
		acc += w.Weight
		if roll < acc {
			return w.Value
		}
	}
	return ws[len(ws)-1].Value
}

func (r *Recommender) weightedInt(ws []profile.Weighted[int]) int {
	roll := r.rng.Float64()
	var acc float64
	for _, w := range ws {
		acc += w.Weight
		if roll < acc {
			return w.Value
		}
	}
	return ws[len(ws)-1].Value
}
