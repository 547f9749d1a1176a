/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package pool builds lazy candidate-track streams from the catalog.
// A pool is finite and single-pass; callers drain it with Next until it
// reports exhaustion.
package pool

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/rs/zerolog"
)

const (
	// DefaultPageSize is the search page size requested from the catalog.
	DefaultPageSize = 50
	// DefaultPageCeiling bounds how many pages a single query may fetch.
	DefaultPageCeiling = 5
)

// Pool yields eligible candidate tracks one at a time.
type Pool interface {
	Next(ctx context.Context) (models.Track, bool)
}

// Searcher is the slice of the catalog client search pools need.
type Searcher interface {
	Search(ctx context.Context, query string, limit, offset int) ([]models.Track, error)
}

// PlaylistLister is the slice of the catalog client playlist pools need.
type PlaylistLister interface {
	PlaylistTracks(ctx context.Context, ref string, firstPageOnly bool) ([]models.Track, error)
}

// Config tunes pool behaviour. Zero values fall back to defaults.
type Config struct {
	PageSize    int
	PageCeiling int
	Rand        *rand.Rand
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageCeiling <= 0 {
		c.PageCeiling = DefaultPageCeiling
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	return c
}

// SearchPool streams eligible tracks for one full-text query, page by
// page. Each page is shuffled before filtering so repeated sessions do
// not replay the catalog's ranking order.
type SearchPool struct {
	src    Searcher
	filter *dedup.Filter
	query  string
	match  *regexp.Regexp
	cfg    Config
	logger zerolog.Logger

	page int
	buf  []models.Track
	done bool
}

// TagPattern compiles a whole-word, case-insensitive gate over a set of
// tags. Candidates must carry one of the tags in their title or album.
func TagPattern(tags []string) *regexp.Regexp {
	quoted := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			quoted = append(quoted, regexp.QuoteMeta(tag))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}

// NewSearchPool builds a pool over a single search query. match, when
// non-nil, gates candidates on their title or album.
func NewSearchPool(src Searcher, query string, match *regexp.Regexp, filter *dedup.Filter, cfg Config, logger zerolog.Logger) *SearchPool {
	return &SearchPool{
		src:    src,
		filter: filter,
		query:  query,
		match:  match,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "pool").Str("query", query).Logger(),
	}
}

// Next returns the next eligible track, fetching further pages on
// demand until the page ceiling or an empty page ends the stream.
func (p *SearchPool) Next(ctx context.Context) (models.Track, bool) {
	for {
		for len(p.buf) > 0 {
			t := p.buf[0]
			p.buf = p.buf[1:]
			if !p.eligible(t) {
				continue
			}
			return t, true
		}
		if p.done || p.page >= p.cfg.PageCeiling {
			return models.Track{}, false
		}

		tracks, err := p.src.Search(ctx, p.query, p.cfg.PageSize, p.page*p.cfg.PageSize)
		p.page++
		if err != nil {
			// Retries already happened below us; treat the query as dry.
			p.logger.Warn().Err(err).Int("page", p.page).Msg("search page failed, ending pool")
			p.done = true
			return models.Track{}, false
		}
		if len(tracks) == 0 {
			p.done = true
			return models.Track{}, false
		}
		p.cfg.Rand.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
		p.buf = tracks
	}
}

func (p *SearchPool) eligible(t models.Track) bool {
	if p.match != nil && !p.match.MatchString(t.Title) && !p.match.MatchString(t.Album) {
		return false
	}
	return p.filter.Accept(t)
}

// PlaylistPool streams eligible tracks from one playlist. The whole
// playlist is fetched once on first use and shuffled as a unit.
type PlaylistPool struct {
	src    PlaylistLister
	filter *dedup.Filter
	ref    string
	cfg    Config
	logger zerolog.Logger

	buf    []models.Track
	loaded bool
}

// NewPlaylistPool builds a pool over a playlist reference (share URL,
// URI or bare ID).
func NewPlaylistPool(src PlaylistLister, ref string, filter *dedup.Filter, cfg Config, logger zerolog.Logger) *PlaylistPool {
	return &PlaylistPool{
		src:    src,
		filter: filter,
		ref:    ref,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "pool").Str("playlist", ref).Logger(),
	}
}

// Next returns the next eligible track from the shuffled playlist.
func (p *PlaylistPool) Next(ctx context.Context) (models.Track, bool) {
	if !p.loaded {
		p.loaded = true
		tracks, err := p.src.PlaylistTracks(ctx, p.ref, false)
		if err != nil {
			p.logger.Warn().Err(err).Msg("playlist fetch failed, ending pool")
			return models.Track{}, false
		}
		p.cfg.Rand.Shuffle(len(tracks), func(i, j int) {
			tracks[i], tracks[j] = tracks[j], tracks[i]
		})
		p.buf = tracks
	}
	for len(p.buf) > 0 {
		t := p.buf[0]
		p.buf = p.buf[1:]
		if p.filter.Accept(t) {
			return t, true
		}
	}
	return models.Track{}, false
}

// Chain drains pools in order, moving on when one runs dry. An artist
// stream is a chain of one search pool per tag.
type Chain struct {
	pools []Pool
}

// NewChain concatenates pools.
func NewChain(pools ...Pool) *Chain {
	return &Chain{pools: pools}
}

// Next pulls from the first pool that still has candidates.
func (c *Chain) Next(ctx context.Context) (models.Track, bool) {
	for len(c.pools) > 0 {
		if t, ok := c.pools[0].Next(ctx); ok {
			return t, true
		}
		c.pools = c.pools[1:]
	}
	return models.Track{}, false
}

// RoundRobin interleaves several pools fairly: one accepted candidate
// per pool per round, dropping pools as they run dry.
type RoundRobin struct {
	pools []Pool
	idx   int
}

// NewRoundRobin builds a fair interleave over the given pools.
func NewRoundRobin(pools ...Pool) *RoundRobin {
	return &RoundRobin{pools: pools}
}

// Next pulls from the next live pool in rotation.
func (r *RoundRobin) Next(ctx context.Context) (models.Track, bool) {
	for len(r.pools) > 0 {
		if r.idx >= len(r.pools) {
			r.idx = 0
		}
		t, ok := r.pools[r.idx].Next(ctx)
		if !ok {
			r.pools = append(r.pools[:r.idx], r.pools[r.idx+1:]...)
			continue
		}
		r.idx++
		return t, true
	}
	return models.Track{}, false
}

// Drain pulls up to n tracks from a pool.
func Drain(ctx context.Context, p Pool, n int) []models.Track {
	out := make([]models.Track, 0, n)
	for len(out) < n {
		t, ok := p.Next(ctx)
		if !ok {
			break
		}
		out = append(out, t)
	}
	return out
}
