package queuectl

import (
	"context"
	"errors"
	"testing"

	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/rs/zerolog"
)

type fakePlayer struct {
	started  []string
	enqueued []string
	startErr error
	failOn   string
}

func (f *fakePlayer) StartPlayback(_ context.Context, _ string, uris []string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, uris...)
	return nil
}

func (f *fakePlayer) Enqueue(_ context.Context, uri, _ string) error {
	if uri == f.failOn {
		return errors.New("queue full")
	}
	f.enqueued = append(f.enqueued, uri)
	return nil
}

func batch(uris ...string) []models.Track {
	out := make([]models.Track, len(uris))
	for i, u := range uris {
		out[i] = models.Track{ID: u, URI: u, Title: "T " + u, Artists: []string{"A"}}
	}
	return out
}

func TestStartAndSeed(t *testing.T) {
	p := &fakePlayer{}
	c := New(p, zerolog.Nop())

	n, err := c.StartAndSeed(context.Background(), "dev", batch("u1", "u2", "u3"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	if len(p.started) != 1 || p.started[0] != "u1" {
		t.Errorf("playback should start with the first track, got %v", p.started)
	}
	if len(p.enqueued) != 2 || p.enqueued[0] != "u2" || p.enqueued[1] != "u3" {
		t.Errorf("rest should be enqueued in order, got %v", p.enqueued)
	}
}

func TestStartAndSeedEmpty(t *testing.T) {
	c := New(&fakePlayer{}, zerolog.Nop())
	if _, err := c.StartAndSeed(context.Background(), "dev", nil); err == nil {
		t.Fatal("empty seed must error")
	}
}

func TestStartAndSeedStartFailure(t *testing.T) {
	p := &fakePlayer{startErr: errors.New("no device")}
	c := New(p, zerolog.Nop())
	if _, err := c.StartAndSeed(context.Background(), "dev", batch("u1", "u2")); err == nil {
		t.Fatal("start failure must surface")
	}
	if len(p.enqueued) != 0 {
		t.Error("nothing should be enqueued after a failed start")
	}
}

func TestTopUpTruncatesOnFailure(t *testing.T) {
	p := &fakePlayer{failOn: "u3"}
	c := New(p, zerolog.Nop())

	n := c.TopUp(context.Background(), "dev", batch("u1", "u2", "u3", "u4"))
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	if len(p.enqueued) != 2 {
		t.Errorf("enqueued = %v, want tracks before the failure only", p.enqueued)
	}
}
