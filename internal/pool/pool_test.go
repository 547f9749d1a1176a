package pool

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/rs/zerolog"
)

type fakeSearcher struct {
	pages [][]models.Track
	err   error
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int, offset int) ([]models.Track, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	page := offset / DefaultPageSize
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

func mkTrack(id, title, artist string) models.Track {
	return models.Track{ID: id, URI: "spotify:track:" + id, Title: title, Artists: []string{artist}, Popularity: 50}
}

func newFilter() *dedup.Filter {
	return &dedup.Filter{Seen: dedup.NewSeenSet()}
}

func fixedCfg() Config {
	return Config{Rand: rand.New(rand.NewSource(1))}
}

func TestSearchPoolPagesAndFilters(t *testing.T) {
	src := &fakeSearcher{pages: [][]models.Track{
		{mkTrack("a", "Song One", "X"), mkTrack("b", "Song One (feat. Y)", "X")},
		{mkTrack("c", "Song Two karaoke", "X"), mkTrack("d", "Song Three", "Z")},
	}}
	p := NewSearchPool(src, "test", nil, newFilter(), fixedCfg(), zerolog.Nop())

	got := Drain(context.Background(), p, 10)
	// b duplicates a's dedup key, c is karaoke.
	if len(got) != 2 {
		t.Fatalf("expected 2 eligible tracks, got %d: %+v", len(got), got)
	}
	seen := map[string]bool{}
	for _, tr := range got {
		seen[tr.ID] = true
	}
	if !seen["a"] && !seen["b"] {
		t.Error("expected one of the duplicate pair")
	}
	if seen["a"] && seen["b"] {
		t.Error("both duplicates accepted")
	}
	if seen["c"] {
		t.Error("karaoke track accepted")
	}
	if !seen["d"] {
		t.Error("plain track rejected")
	}
}

func TestSearchPoolPageCeiling(t *testing.T) {
	pages := make([][]models.Track, 10)
	for i := range pages {
		pages[i] = []models.Track{mkTrack(fmt.Sprintf("p%d", i), fmt.Sprintf("Title %d", i), "A")}
	}
	src := &fakeSearcher{pages: pages}
	p := NewSearchPool(src, "test", nil, newFilter(), fixedCfg(), zerolog.Nop())

	got := Drain(context.Background(), p, 100)
	if len(got) != DefaultPageCeiling {
		t.Fatalf("expected %d tracks (one per page up to ceiling), got %d", DefaultPageCeiling, len(got))
	}
	if src.calls != DefaultPageCeiling {
		t.Errorf("expected %d search calls, got %d", DefaultPageCeiling, src.calls)
	}
}

func TestSearchPoolErrorEndsStream(t *testing.T) {
	src := &fakeSearcher{err: errors.New("boom")}
	p := NewSearchPool(src, "test", nil, newFilter(), fixedCfg(), zerolog.Nop())

	if _, ok := p.Next(context.Background()); ok {
		t.Fatal("expected exhausted pool on search error")
	}
	if _, ok := p.Next(context.Background()); ok {
		t.Fatal("pool must stay exhausted")
	}
	if src.calls != 1 {
		t.Errorf("failed pool should not refetch, got %d calls", src.calls)
	}
}

func TestSearchPoolMatchWordGate(t *testing.T) {
	src := &fakeSearcher{pages: [][]models.Track{{
		mkTrack("a", "City Lights Remix", "X"),
		mkTrack("b", "City Lights", "Y"),
		{ID: "c", URI: "spotify:track:c", Title: "Other", Artists: []string{"Z"}, Album: "Remix Album", Popularity: 50},
	}}}
	p := NewSearchPool(src, "city lights remix", TagPattern([]string{"remix"}), newFilter(), fixedCfg(), zerolog.Nop())

	got := Drain(context.Background(), p, 10)
	ids := map[string]bool{}
	for _, tr := range got {
		ids[tr.ID] = true
	}
	if !ids["a"] || ids["b"] || !ids["c"] {
		t.Fatalf("match gate should check title and album, got %v", ids)
	}
}

type fakeLister struct {
	tracks []models.Track
	err    error
	calls  int
}

func (f *fakeLister) PlaylistTracks(context.Context, string, bool) ([]models.Track, error) {
	f.calls++
	return f.tracks, f.err
}

func TestPlaylistPoolFetchesOnce(t *testing.T) {
	src := &fakeLister{tracks: []models.Track{
		mkTrack("a", "One", "X"),
		mkTrack("b", "Two", "Y"),
	}}
	p := NewPlaylistPool(src, "pl", newFilter(), fixedCfg(), zerolog.Nop())

	got := Drain(context.Background(), p, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(got))
	}
	if _, ok := p.Next(context.Background()); ok {
		t.Fatal("pool should be exhausted")
	}
	if src.calls != 1 {
		t.Errorf("playlist should be fetched once, got %d calls", src.calls)
	}
}

func TestPlaylistPoolFetchError(t *testing.T) {
	src := &fakeLister{err: errors.New("nope")}
	p := NewPlaylistPool(src, "pl", newFilter(), fixedCfg(), zerolog.Nop())
	if _, ok := p.Next(context.Background()); ok {
		t.Fatal("expected exhausted pool on fetch error")
	}
	if src.calls != 1 {
		t.Errorf("expected single fetch attempt, got %d", src.calls)
	}
}

type scripted struct {
	tracks []models.Track
}

func (s *scripted) Next(context.Context) (models.Track, bool) {
	if len(s.tracks) == 0 {
		return models.Track{}, false
	}
	t := s.tracks[0]
	s.tracks = s.tracks[1:]
	return t, true
}

func TestRoundRobinInterleavesAndDrops(t *testing.T) {
	a := &scripted{tracks: []models.Track{mkTrack("a1", "A1", "A"), mkTrack("a2", "A2", "A"), mkTrack("a3", "A3", "A")}}
	b := &scripted{tracks: []models.Track{mkTrack("b1", "B1", "B")}}
	rr := NewRoundRobin(a, b)

	var ids []string
	for {
		tr, ok := rr.Next(context.Background())
		if !ok {
			break
		}
		ids = append(ids, tr.ID)
	}
	want := []string{"a1", "b1", "a2", "a3"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestChainDrainsInOrder(t *testing.T) {
	a := &scripted{tracks: []models.Track{mkTrack("a1", "A1", "A"), mkTrack("a2", "A2", "A")}}
	b := &scripted{tracks: []models.Track{mkTrack("b1", "B1", "B")}}
	c := NewChain(a, b)

	var ids []string
	for {
		tr, ok := c.Next(context.Background())
		if !ok {
			break
		}
		ids = append(ids, tr.ID)
	}
	want := []string{"a1", "a2", "b1"}
	for i := range want {
		if i >= len(ids) || ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestTagPattern(t *testing.T) {
	rx := TagPattern([]string{"remix", "club mix"})
	tests := []struct {
		in   string
		want bool
	}{
		{"Song (Remix)", true},
		{"Song Club Mix Edit", true},
		{"Remixed Classics", false},
		{"Plain Song", false},
	}
	for _, tt := range tests {
		if got := rx.MatchString(tt.in); got != tt.want {
			t.Errorf("MatchString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if TagPattern(nil) != nil {
		t.Error("empty tag list should produce no gate")
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	rr := NewRoundRobin()
	if _, ok := rr.Next(context.Background()); ok {
		t.Fatal("empty round robin must be exhausted")
	}
}
