package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/events"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/rs/zerolog"
)

type fakeSource struct {
	builds    int
	fastCalls int
	perBatch  int
	exhausted bool
	next      int
}

func (f *fakeSource) Kind() string { return "fake" }

func (f *fakeSource) BuildBatch(_ context.Context, n int, fast bool) []models.Track {
	f.builds++
	if fast {
		f.fastCalls++
	}
	if f.exhausted {
		return nil
	}
	if f.perBatch > 0 && n > f.perBatch {
		n = f.perBatch
	}
	out := make([]models.Track, n)
	for i := range out {
		f.next++
		id := fmt.Sprintf("t%d", f.next)
		out[i] = models.Track{ID: id, URI: "spotify:track:" + id, Title: id, Artists: []string{"A"}}
	}
	return out
}

type fakeQueuer struct {
	started []models.Track
	topped  [][]models.Track
	failSeed bool
}

func (f *fakeQueuer) StartAndSeed(_ context.Context, _ string, tracks []models.Track) (int, error) {
	if f.failSeed {
		return 0, errors.New("start failed")
	}
	f.started = tracks
	return len(tracks), nil
}

func (f *fakeQueuer) TopUp(_ context.Context, _ string, tracks []models.Track) int {
	f.topped = append(f.topped, tracks)
	return len(tracks)
}

type fakePlayback struct {
	states []models.PlaybackState
	idx    int
	queue  models.QueueSnapshot
}

func (f *fakePlayback) CurrentPlayback(context.Context) (models.PlaybackState, bool, error) {
	if f.idx >= len(f.states) {
		return models.PlaybackState{}, false, nil
	}
	st := f.states[f.idx]
	if f.idx < len(f.states)-1 {
		f.idx++
	}
	return st, true, nil
}

func (f *fakePlayback) Queue(context.Context) models.QueueSnapshot { return f.queue }

type fakeResolver struct {
	id  string
	err error
}

func (f *fakeResolver) EnsureDevice(context.Context, bool) (string, error) { return f.id, f.err }

func testCfg() Config {
	return Config{
		InitialBatch:  6,
		SeedSize:      2,
		TopUpEvery:    3,
		TopUpBatch:    4,
		QueueLowWater: 2,
		PollInterval:  5 * time.Millisecond,
		ProgressSlack: 5 * time.Second,
	}
}

func newTestSession(src BatchSource, q Queuer, pb Playback) *Session {
	f := &dedup.Filter{Seen: dedup.NewSeenSet()}
	return newSession("s1", "dev", src, q, pb, f, testCfg(), events.NewBus(), zerolog.Nop())
}

func TestSeedFastOpenerThenRemainder(t *testing.T) {
	src := &fakeSource{}
	q := &fakeQueuer{}
	s := newTestSession(src, q, &fakePlayback{queue: models.QueueSnapshot{Available: true, Length: 50}})

	if err := s.seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	if src.fastCalls != 1 {
		t.Errorf("opener must be a fast build, fast calls = %d", src.fastCalls)
	}
	if len(q.started) != 2 {
		t.Errorf("seed size = %d, want 2", len(q.started))
	}
	if len(q.topped) != 1 || len(q.topped[0]) != 4 {
		t.Fatalf("remainder of 4 expected, got %+v", q.topped)
	}
	st := s.Status()
	if st.State != StateSeeded || st.Queued != 6 {
		t.Errorf("status = %+v", st)
	}
}

func TestSeedEmptyIsFatal(t *testing.T) {
	s := newTestSession(&fakeSource{exhausted: true}, &fakeQueuer{}, &fakePlayback{})
	if err := s.seed(context.Background()); !errors.Is(err, ErrEmptySeed) {
		t.Fatalf("want ErrEmptySeed, got %v", err)
	}
}

func TestObserveAdvanceDetection(t *testing.T) {
	s := newTestSession(&fakeSource{}, &fakeQueuer{}, &fakePlayback{})

	tests := []struct {
		name   string
		state  models.PlaybackState
		played int
	}{
		{"first sighting arms only", models.PlaybackState{TrackID: "a", ProgressMS: 1000}, 0},
		{"same track progressing", models.PlaybackState{TrackID: "a", ProgressMS: 8000}, 0},
		{"track change counts", models.PlaybackState{TrackID: "b", ProgressMS: 500}, 1},
		{"jitter within slack ignored", models.PlaybackState{TrackID: "b", ProgressMS: 100}, 1},
		{"restart counts as skip", models.PlaybackState{TrackID: "b", ProgressMS: 9000}, 1},
		{"big progress drop counts", models.PlaybackState{TrackID: "b", ProgressMS: 200}, 2},
	}
	for _, tt := range tests {
		s.observe(tt.state)
		if got := s.Status().Played; got != tt.played {
			t.Fatalf("%s: played = %d, want %d", tt.name, got, tt.played)
		}
	}
}

func TestObserveCommitsListenerTracks(t *testing.T) {
	s := newTestSession(&fakeSource{}, &fakeQueuer{}, &fakePlayback{})
	s.observe(models.PlaybackState{TrackID: "a", ProgressMS: 100})
	s.observe(models.PlaybackState{TrackID: "their-own-pick", ProgressMS: 100})
	if !s.filter.Seen.Has(models.Track{ID: "their-own-pick"}) {
		t.Fatal("advanced track must join the seen set")
	}
}

func TestPollThresholdTopUp(t *testing.T) {
	src := &fakeSource{}
	q := &fakeQueuer{}
	pb := &fakePlayback{
		states: []models.PlaybackState{{TrackID: "x", ProgressMS: 100}},
		queue:  models.QueueSnapshot{Available: true, Length: 40},
	}
	s := newTestSession(src, q, pb)

	// Simulate three advances to reach the threshold of 3.
	s.observe(models.PlaybackState{TrackID: "a", ProgressMS: 0})
	for _, id := range []string{"b", "c", "d"} {
		s.observe(models.PlaybackState{TrackID: id, ProgressMS: 0})
	}

	s.poll(context.Background())
	if len(q.topped) != 1 || len(q.topped[0]) != 4 {
		t.Fatalf("threshold top-up of 4 expected, got %+v", q.topped)
	}
	if st := s.Status(); st.Threshold != 6 {
		t.Errorf("threshold = %d, want 6 (strictly past played)", st.Threshold)
	}

	// Next poll without new plays must not fire again.
	s.poll(context.Background())
	if len(q.topped) != 1 {
		t.Fatal("top-up double-fired")
	}
}

func TestPollQueueLowTopUp(t *testing.T) {
	src := &fakeSource{}
	q := &fakeQueuer{}
	pb := &fakePlayback{
		states: []models.PlaybackState{{TrackID: "x", ProgressMS: 100}},
		queue:  models.QueueSnapshot{Available: true, Length: 1},
	}
	s := newTestSession(src, q, pb)

	s.poll(context.Background())
	if len(q.topped) != 1 {
		t.Fatalf("queue-low top-up expected, got %+v", q.topped)
	}
}

func TestPollQueueUnavailableSkipped(t *testing.T) {
	q := &fakeQueuer{}
	pb := &fakePlayback{
		states: []models.PlaybackState{{TrackID: "x", ProgressMS: 100}},
		queue:  models.QueueSnapshot{Available: false, Length: 0},
	}
	s := newTestSession(&fakeSource{}, q, pb)

	s.poll(context.Background())
	if len(q.topped) != 0 {
		t.Fatal("unavailable queue endpoint must not trigger a top-up")
	}
}

func TestManagerLifecycle(t *testing.T) {
	src := &fakeSource{}
	q := &fakeQueuer{}
	pb := &fakePlayback{queue: models.QueueSnapshot{Available: true, Length: 40}}
	m := NewManager(&fakeResolver{id: "dev"}, q, pb, events.NewBus(), testCfg(), false, zerolog.Nop())

	st, err := m.Start(context.Background(), src, &dedup.Filter{Seen: dedup.NewSeenSet()})
	if err != nil {
		t.Fatal(err)
	}
	if st.DeviceID != "dev" || st.State != StateSeeded {
		t.Fatalf("unexpected start status %+v", st)
	}

	if err := m.Stop(st.ID); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(time.Second)
	for {
		got, err := m.Get(st.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.State == StateStopped {
			break
		}
		select {
		case <-deadline:
			t.Fatal("session did not stop")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := m.Stop("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("want ErrSessionNotFound, got %v", err)
	}
}

func TestManagerStartDeviceFailure(t *testing.T) {
	m := NewManager(&fakeResolver{err: errors.New("no devices")}, &fakeQueuer{}, &fakePlayback{}, events.NewBus(), testCfg(), false, zerolog.Nop())
	if _, err := m.Start(context.Background(), &fakeSource{}, &dedup.Filter{Seen: dedup.NewSeenSet()}); err == nil {
		t.Fatal("device resolution failure must be fatal")
	}
}

func TestManagerStartSeedFailureNotRegistered(t *testing.T) {
	m := NewManager(&fakeResolver{id: "dev"}, &fakeQueuer{failSeed: true}, &fakePlayback{}, events.NewBus(), testCfg(), false, zerolog.Nop())
	if _, err := m.Start(context.Background(), &fakeSource{}, &dedup.Filter{Seen: dedup.NewSeenSet()}); err == nil {
		t.Fatal("seed failure must surface")
	}
	if got := len(m.List()); got != 0 {
		t.Fatalf("failed session should not be registered, got %d", got)
	}
}
