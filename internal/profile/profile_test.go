package profile

import (
	"math"
	"testing"
)

const snapshot = `{
  "top_artists": {
    "long_term": [
      {"id": "a1", "name": "Alpha", "genres": ["indie pop", "dream pop"]},
      {"id": "a2", "name": "Beta", "genres": "hindi pop, filmi"}
    ],
    "short_term": [{"id": "a3", "name": "Gamma"}]
  },
  "top_tracks": {
    "long_term": [{"id": "t1", "name": "One"}, {"id": "t2", "name": "Two"}]
  },
  "eras": {
    "decades": [{"decade": "1990s", "count": 30}, {"decade": "2010s", "count": 10}],
    "years": [{"year": 1994, "count": 12}]
  },
  "top_genres_all_time": [{"genre": "indie pop", "count": 40}],
  "playlists_summary": {
    "top_artists": [{"id": "a4", "name": "Delta", "genres": []}],
    "top_genres": [{"genre": "filmi", "count": 9}]
  }
}`

func TestParseSnapshot(t *testing.T) {
	p, err := Parse([]byte(snapshot))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(p.LongTermArtists()); got != 2 {
		t.Fatalf("long-term artists = %d, want 2", got)
	}
	if got := p.LongTermArtists()[1].Genres; len(got) != 2 || got[0] != "hindi pop" {
		t.Errorf("string genre field should split on commas, got %v", got)
	}
	if len(p.ShortTermArtists()) != 1 || len(p.MediumTermArtists()) != 0 {
		t.Error("time-range accessors wrong")
	}
	if len(p.Favorites()) != 2 {
		t.Error("favorites wrong")
	}
	if len(p.PlaylistsSummary.TopArtists) != 1 {
		t.Error("playlist summary wrong")
	}
}

func TestParseRequiresLongTermArtists(t *testing.T) {
	if _, err := Parse([]byte(`{"top_artists": {}}`)); err == nil {
		t.Fatal("expected error for snapshot without long-term artists")
	}
}

func TestHasGenre(t *testing.T) {
	a := Artist{Genres: genreField{"Dream Pop", "shoegaze"}}
	if !a.HasGenre("pop") {
		t.Error("substring genre match expected")
	}
	if a.HasGenre("metal") {
		t.Error("unexpected genre match")
	}
}

func TestArtistWeightsNormalizedAndOrdered(t *testing.T) {
	artists := make([]Artist, 20)
	for i := range artists {
		artists[i] = Artist{ID: string(rune('a' + i))}
	}
	for _, mode := range []Mode{ModeComfort, ModeBalanced, ModeExplorer} {
		t.Run(string(mode), func(t *testing.T) {
			ws := ArtistWeights(artists, mode)
			var sum float64
			for i, w := range ws {
				sum += w.Weight
				if i > 0 && w.Weight > ws[i-1].Weight {
					t.Fatalf("weights must not increase with rank: %v > %v at %d", w.Weight, ws[i-1].Weight, i)
				}
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("weights sum to %v, want 1", sum)
			}
		})
	}
}

func TestComfortConcentratesMoreThanExplorer(t *testing.T) {
	artists := make([]Artist, 50)
	for i := range artists {
		artists[i] = Artist{ID: string(rune('a' + i%26))}
	}
	comfort := ArtistWeights(artists, ModeComfort)
	explorer := ArtistWeights(artists, ModeExplorer)
	if comfort[0].Weight <= explorer[0].Weight {
		t.Errorf("comfort head weight %v should exceed explorer %v", comfort[0].Weight, explorer[0].Weight)
	}
}

func TestDecadeWeightsSmoothing(t *testing.T) {
	eras := Eras{Decades: []DecadeCount{{"1990s", 30}, {"2010s", 0}}}
	comfort := DecadeWeights(eras, ModeComfort)
	explorer := DecadeWeights(eras, ModeExplorer)
	ratio := func(ws []Weighted[string]) float64 { return ws[0].Weight / ws[1].Weight }
	if ratio(explorer) >= ratio(comfort) {
		t.Errorf("explorer smoothing should flatten the distribution: comfort %v explorer %v", ratio(comfort), ratio(explorer))
	}
}

func TestParseModeDefaultsToBalanced(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"comfort", ModeComfort},
		{"EXPLORER", ModeExplorer},
		{"", ModeBalanced},
		{"bogus", ModeBalanced},
	}
	for _, tt := range tests {
		if got := ParseMode(tt.in); got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDecadeStartYear(t *testing.T) {
	if y, ok := DecadeStartYear("1990s"); !ok || y != 1990 {
		t.Errorf("got %d %v", y, ok)
	}
	if _, ok := DecadeStartYear("old"); ok {
		t.Error("expected parse failure")
	}
}
