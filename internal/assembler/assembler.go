/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package assembler builds mood-weighted track batches from curated
// playlists. The target count is split across moods by weight, each
// mood's share is spread across its playlists proportionally to how
// much eligible material they hold, and sampling keeps a configured
// ratio of high-popularity to mid-popularity tracks.
package assembler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/friendsincode/bragi_queue/internal/allocation"
	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/friendsincode/bragi_queue/internal/moods"
	"github.com/rs/zerolog"
)

// Catalog is the slice of the catalog client the assembler needs.
type Catalog interface {
	PlaylistTracks(ctx context.Context, ref string, firstPageOnly bool) ([]models.Track, error)
	PlaylistName(ctx context.Context, ref string) string
}

// Config tunes popularity tiers and sampling. Zero values fall back to
// the defaults below.
type Config struct {
	// SkipBelow discards tracks under this popularity entirely.
	SkipBelow int
	// MidPopMin and HighPopMin bound the mid and high tiers.
	MidPopMin  int
	HighPopMin int
	// HighRatio is the target share of high-tier tracks per mood.
	HighRatio float64
	// MaxShare caps any single playlist's share of a mood's count.
	MaxShare float64
	Rand     *rand.Rand
}

// Defaults matching the curated catalogs this was tuned on.
const (
	DefaultSkipBelow  = 20
	DefaultMidPopMin  = 40
	DefaultHighPopMin = 75
	DefaultHighRatio  = 0.60
)

func (c Config) withDefaults() Config {
	if c.SkipBelow <= 0 {
		c.SkipBelow = DefaultSkipBelow
	}
	if c.MidPopMin <= 0 {
		c.MidPopMin = DefaultMidPopMin
	}
	if c.HighPopMin <= 0 {
		c.HighPopMin = DefaultHighPopMin
	}
	if c.HighRatio <= 0 {
		c.HighRatio = DefaultHighRatio
	}
	if c.MaxShare <= 0 {
		c.MaxShare = allocation.DefaultMaxShare
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// Assembler samples batches from a mood catalog.
type Assembler struct {
	cat    Catalog
	moods  *moods.Catalog
	cfg    Config
	logger zerolog.Logger
}

// New builds an assembler over the given catalogs.
func New(cat Catalog, catalog *moods.Catalog, cfg Config, logger zerolog.Logger) *Assembler {
	return &Assembler{
		cat:    cat,
		moods:  catalog,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "assembler").Logger(),
	}
}

type tierBins struct {
	high []models.Track
	mid  []models.Track
}

func (b tierBins) size() int { return len(b.high) + len(b.mid) }

// BuildBatch assembles up to size tracks for the weighted moods.
// Accepted tracks are committed through the filter, so batches sharing
// a filter never overlap. Thin playlists produce a short batch, never
// an error. fast limits playlist fetches to their first page, for the
// low-latency seed at session start.
func (a *Assembler) BuildBatch(ctx context.Context, language string, weights map[string]int, size int, f *dedup.Filter, fast bool) []models.Track {
	started := time.Now()
	chosen := make([]models.Track, 0, size)
	perMood := allocation.ProportionalSplit(size, weights)

	for mood, count := range perMood {
		if count <= 0 {
			continue
		}
		playlists := a.moods.Playlists(mood, language)
		if len(playlists) == 0 {
			a.logger.Warn().Str("mood", mood).Msg("mood has no playlists for language")
			continue
		}

		bins := make([]tierBins, 0, len(playlists))
		sizes := make([]int, 0, len(playlists))
		names := make([]string, 0, len(playlists))
		for _, ref := range playlists {
			b := a.eligibleBins(ctx, ref, f, fast)
			bins = append(bins, b)
			sizes = append(sizes, b.size())
			names = append(names, a.cat.PlaylistName(ctx, ref))
		}

		quotas := allocation.CappedQuota(count, sizes, a.cfg.MaxShare)

		var picks []models.Track
		for i, q := range quotas {
			if q <= 0 {
				continue
			}
			for _, t := range a.sampleTiers(bins[i], q) {
				t.Source = mood + ":" + names[i]
				picks = append(picks, t)
			}
		}

		// Thin bins leave a deficit; refill from everything the mood
		// still has, ignoring per-playlist quotas.
		if deficit := count - len(picks); deficit > 0 {
			merged := tierBins{}
			for i := range bins {
				merged.high = append(merged.high, bins[i].high...)
				merged.mid = append(merged.mid, bins[i].mid...)
			}
			a.shuffle(merged.high)
			a.shuffle(merged.mid)
			for _, t := range a.sampleTiers(merged, deficit) {
				t.Source = mood + ":backfill"
				picks = append(picks, t)
			}
		}

		// Commit survivors; the same song can sit in two playlists and
		// the filter drops the second copy here.
		for _, t := range picks {
			if f.Accept(t) {
				chosen = append(chosen, t)
			}
		}
	}

	a.shuffle(chosen)
	a.logger.Debug().
		Int("requested", size).
		Int("built", len(chosen)).
		Dur("elapsed", time.Since(started)).
		Msg("mood batch assembled")
	return chosen
}

// eligibleBins fetches one playlist and partitions its fresh tracks
// into popularity tiers. Nothing is committed to the seen set here.
func (a *Assembler) eligibleBins(ctx context.Context, ref string, f *dedup.Filter, fast bool) tierBins {
	tracks, err := a.cat.PlaylistTracks(ctx, ref, fast)
	if err != nil {
		a.logger.Warn().Err(err).Str("playlist", ref).Msg("playlist fetch failed, skipping")
		return tierBins{}
	}

	var bins tierBins
	used := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if _, dup := used[t.URI]; dup {
			continue
		}
		used[t.URI] = struct{}{}
		if dedup.Excluded(t) || f.Seen.Has(t) {
			continue
		}
		switch {
		case t.Popularity < a.cfg.SkipBelow:
		case t.Popularity >= a.cfg.HighPopMin:
			bins.high = append(bins.high, t)
		case t.Popularity >= a.cfg.MidPopMin:
			bins.mid = append(bins.mid, t)
		}
	}
	a.shuffle(bins.high)
	a.shuffle(bins.mid)
	return bins
}

// sampleTiers draws k tracks aiming for the configured high:mid ratio,
// falling back across tiers when one runs short.
func (a *Assembler) sampleTiers(bins tierBins, k int) []models.Track {
	if k <= 0 {
		return nil
	}
	kh := int(math.Round(float64(k) * a.cfg.HighRatio))
	km := k - kh

	takeH := min(kh, len(bins.high))
	takeM := min(km, len(bins.mid))
	out := make([]models.Track, 0, k)
	out = append(out, bins.high[:takeH]...)
	out = append(out, bins.mid[:takeM]...)

	ih, im := takeH, takeM
	for len(out) < k && (ih < len(bins.high) || im < len(bins.mid)) {
		if ih < len(bins.high) {
			out = append(out, bins.high[ih])
			ih++
			if len(out) == k {
				break
			}
		}
		if im < len(bins.mid) {
			out = append(out, bins.mid[im])
			im++
		}
	}

	a.shuffle(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func (a *Assembler) shuffle(ts []models.Track) {
	a.cfg.Rand.Shuffle(len(ts), func(i, j int) { ts[i], ts[j] = ts[j], ts[i] })
}
