/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"fmt"
	"regexp"

	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/friendsincode/bragi_queue/internal/pool"
	"github.com/friendsincode/bragi_queue/internal/recommend"
	"github.com/rs/zerolog"
)

// BatchAssembler builds mood-weighted batches; satisfied by
// assembler.Assembler.
type BatchAssembler interface {
	BuildBatch(ctx context.Context, language string, weights map[string]int, size int, f *dedup.Filter, fast bool) []models.Track
}

// MoodSource assembles batches from weighted mood playlists.
type MoodSource struct {
	Assembler BatchAssembler
	Language  string
	Weights   map[string]int
	Filter    *dedup.Filter
}

// Kind identifies the source in status, metrics and events.
func (m *MoodSource) Kind() string { return "mood" }

// BuildBatch assembles one mood-weighted batch.
func (m *MoodSource) BuildBatch(ctx context.Context, n int, fast bool) []models.Track {
	return m.Assembler.BuildBatch(ctx, m.Language, m.Weights, n, m.Filter, fast)
}

// TagSource streams batches from full-text tag searches, optionally
// scoped to a set of artists. Pools are rebuilt per batch; the shared
// filter keeps re-fetched pages from yielding repeats.
type TagSource struct {
	Catalog pool.Searcher
	Artists []string
	Tags    []string
	Filter  *dedup.Filter
	Config  pool.Config
	Logger  zerolog.Logger
}

// Kind identifies the source in status, metrics and events.
func (t *TagSource) Kind() string {
	if len(t.Artists) > 0 {
		return "tag_artist"
	}
	return "tag_random"
}

// BuildBatch drains freshly built pools for up to n tracks.
func (t *TagSource) BuildBatch(ctx context.Context, n int, fast bool) []models.Track {
	cfg := t.Config
	if fast {
		cfg.PageCeiling = 1
	}
	return pool.Drain(ctx, t.buildPool(cfg, pool.TagPattern(t.Tags)), n)
}

func (t *TagSource) buildPool(cfg pool.Config, match *regexp.Regexp) pool.Pool {
	if len(t.Artists) == 0 {
		// Random mode walks the tags in order.
		perTag := make([]pool.Pool, 0, len(t.Tags))
		for _, tag := range t.Tags {
			perTag = append(perTag, pool.NewSearchPool(t.Catalog, tag, match, t.Filter, cfg, t.Logger))
		}
		return pool.NewChain(perTag...)
	}

	// Artist mode interleaves one stream per artist so no single
	// artist floods the batch.
	perArtist := make([]pool.Pool, 0, len(t.Artists))
	for _, artist := range t.Artists {
		perTag := make([]pool.Pool, 0, len(t.Tags))
		for _, tag := range t.Tags {
			query := fmt.Sprintf("artist:%q %s", artist, tag)
			perTag = append(perTag, pool.NewSearchPool(t.Catalog, query, match, t.Filter, cfg, t.Logger))
		}
		perArtist = append(perArtist, pool.NewChain(perTag...))
	}
	return pool.NewRoundRobin(perArtist...)
}

// ProfileSource generates batches from a taste profile.
type ProfileSource struct {
	Recommender *recommend.Recommender
	Filter      *dedup.Filter
}

// Kind identifies the source in status, metrics and events.
func (p *ProfileSource) Kind() string { return "profile" }

// BuildBatch generates picks and flattens them to tracks, carrying the
// winning strategy in Source for logs and the API.
func (p *ProfileSource) BuildBatch(ctx context.Context, n int, _ bool) []models.Track {
	picks := p.Recommender.BuildBatch(ctx, n, p.Filter)
	out := make([]models.Track, 0, len(picks))
	for _, pick := range picks {
		t := pick.Track
		t.Source = pick.Reason.Strategy
		out = append(out, t)
	}
	return out
}
