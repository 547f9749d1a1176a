/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session runs playback sessions: seed the device queue, then
// watch playback and keep the queue topped up until stopped.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/events"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/friendsincode/bragi_queue/internal/telemetry"
	"github.com/rs/zerolog"
)

// State is a session lifecycle phase.
type State string

const (
	StateIdle       State = "idle"
	StateSeeded     State = "seeded"
	StateMonitoring State = "monitoring"
	StateStopped    State = "stopped"
)

// BatchSource builds eligible track batches for one session. fast asks
// for a low-latency build (first catalog page only) and is used for the
// seed at session start.
type BatchSource interface {
	Kind() string
	BuildBatch(ctx context.Context, n int, fast bool) []models.Track
}

// Playback is the playback-state slice of the catalog client.
type Playback interface {
	CurrentPlayback(ctx context.Context) (models.PlaybackState, bool, error)
	Queue(ctx context.Context) models.QueueSnapshot
}

// Queuer pushes batches to the device queue.
type Queuer interface {
	StartAndSeed(ctx context.Context, deviceID string, tracks []models.Track) (int, error)
	TopUp(ctx context.Context, deviceID string, tracks []models.Track) int
}

// Config tunes session behaviour. Zero values fall back to defaults.
type Config struct {
	// InitialBatch is the total size of the opening batch, SeedSize of
	// which is built fast to start playback with minimal latency.
	InitialBatch int
	SeedSize     int
	// TopUpEvery is how many plays/skips arm a top-up; TopUpBatch is
	// its size.
	TopUpEvery int
	TopUpBatch int
	// QueueLowWater triggers a proactive top-up when the live queue
	// shrinks to this length or below.
	QueueLowWater int
	PollInterval  time.Duration
	// ProgressSlack is how far playback progress must jump backwards
	// before it counts as a skip rather than jitter.
	ProgressSlack time.Duration
}

// Defaults tuned against the original deployment.
const (
	DefaultInitialBatch  = 50
	DefaultSeedSize      = 5
	DefaultTopUpEvery    = 20
	DefaultTopUpBatch    = 20
	DefaultQueueLowWater = 5
)

const (
	DefaultPollInterval  = 3 * time.Second
	DefaultProgressSlack = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.InitialBatch <= 0 {
		c.InitialBatch = DefaultInitialBatch
	}
	if c.SeedSize <= 0 {
		c.SeedSize = DefaultSeedSize
	}
	if c.TopUpEvery <= 0 {
		c.TopUpEvery = DefaultTopUpEvery
	}
	if c.TopUpBatch <= 0 {
		c.TopUpBatch = DefaultTopUpBatch
	}
	if c.QueueLowWater <= 0 {
		c.QueueLowWater = DefaultQueueLowWater
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ProgressSlack <= 0 {
		c.ProgressSlack = DefaultProgressSlack
	}
	return c
}

// Status is a point-in-time snapshot of a session for the API.
type Status struct {
	ID          string    `json:"id"`
	State       State     `json:"state"`
	Kind        string    `json:"kind"`
	DeviceID    string    `json:"device_id"`
	Played      int       `json:"played"`
	Threshold   int       `json:"threshold"`
	Queued      int       `json:"queued"`
	SeenTracks  int       `json:"seen_tracks"`
	LastTrackID string    `json:"last_track_id,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// Session owns one device queue. All mutable state is confined to the
// session's own goroutine; Status reads go through the mutex.
type Session struct {
	id       string
	deviceID string
	source   BatchSource
	queue    Queuer
	playback Playback
	filter   *dedup.Filter
	cfg      Config
	bus      *events.Bus
	logger   zerolog.Logger

	mu          sync.Mutex
	state       State
	played      int
	threshold   int
	queued      int
	lastTrackID string
	startedAt   time.Time

	lastProgress int64
	haveProgress bool
	cancel       context.CancelFunc
}

// newSession wires a session; Manager is the only caller.
func newSession(id, deviceID string, source BatchSource, queue Queuer, playback Playback, filter *dedup.Filter, cfg Config, bus *events.Bus, logger zerolog.Logger) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:        id,
		deviceID:  deviceID,
		source:    source,
		queue:     queue,
		playback:  playback,
		filter:    filter,
		cfg:       cfg,
		bus:       bus,
		logger:    logger.With().Str("component", "session").Str("session_id", id).Logger(),
		state:     StateIdle,
		threshold: cfg.TopUpEvery,
		startedAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Status snapshots the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:          s.id,
		State:       s.state,
		Kind:        s.source.Kind(),
		DeviceID:    s.deviceID,
		Played:      s.played,
		Threshold:   s.threshold,
		Queued:      s.queued,
		SeenTracks:  s.filter.Seen.Len(),
		LastTrackID: s.lastTrackID,
		StartedAt:   s.startedAt,
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// seed builds the fast opener, starts playback, then fills the rest of
// the initial batch at normal depth. Called synchronously by Manager
// so start failures surface to the API caller.
func (s *Session) seed(ctx context.Context) error {
	started := time.Now()
	opener := s.source.BuildBatch(ctx, s.cfg.SeedSize, true)
	telemetry.BatchBuildDuration.WithLabelValues(s.source.Kind()).Observe(time.Since(started).Seconds())
	if len(opener) == 0 {
		return ErrEmptySeed
	}

	n, err := s.queue.StartAndSeed(ctx, s.deviceID, opener)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.queued += n
	s.state = StateSeeded
	s.mu.Unlock()
	telemetry.TracksQueuedTotal.Add(float64(n))
	s.bus.Publish(events.EventSessionStarted, events.Payload{
		"session_id": s.id,
		"device_id":  s.deviceID,
		"kind":       s.source.Kind(),
		"seeded":     n,
	})
	s.logger.Info().Int("seeded", n).Msg("playback started")

	if remainder := s.cfg.InitialBatch - len(opener); remainder > 0 {
		s.topUp(ctx, remainder, "initial")
	}
	return nil
}

// Run polls playback until the context is cancelled. Poll errors are
// swallowed; the loop only ends with the session.
func (s *Session) Run(ctx context.Context) {
	s.setState(StateMonitoring)
	telemetry.SessionsActive.Inc()
	defer telemetry.SessionsActive.Dec()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info().
		Int("topup_every", s.cfg.TopUpEvery).
		Int("topup_batch", s.cfg.TopUpBatch).
		Int("queue_low_water", s.cfg.QueueLowWater).
		Msg("monitor armed")

	for {
		select {
		case <-ctx.Done():
			s.setState(StateStopped)
			s.bus.Publish(events.EventSessionStopped, events.Payload{"session_id": s.id})
			s.logger.Info().Msg("session stopped")
			return
		case <-ticker.C:
			telemetry.SessionTicksTotal.Inc()
			s.poll(ctx)
		}
	}
}

// poll is one monitor tick: detect advances, check the queue buffer,
// top up when a trigger fires.
func (s *Session) poll(ctx context.Context) {
	pb, ok, err := s.playback.CurrentPlayback(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("playback poll failed")
		return
	}
	if ok && pb.TrackID != "" {
		s.observe(pb)
	}

	trigger := ""
	if snap := s.playback.Queue(ctx); snap.Available && snap.Length <= s.cfg.QueueLowWater {
		s.logger.Info().Int("queue_len", snap.Length).Msg("queue buffer low")
		s.bus.Publish(events.EventQueueLow, events.Payload{"session_id": s.id, "queue_len": snap.Length})
		trigger = "queue_low"
	}

	s.mu.Lock()
	played, threshold := s.played, s.threshold
	s.mu.Unlock()
	if played >= threshold {
		trigger = "threshold"
	}

	if trigger == "" {
		return
	}
	added := s.topUp(ctx, s.cfg.TopUpBatch, trigger)

	// Advance the threshold strictly past the play count so one burst
	// of skips cannot double-fire.
	s.mu.Lock()
	for s.threshold <= s.played {
		s.threshold += s.cfg.TopUpEvery
	}
	s.mu.Unlock()

	if added == 0 {
		s.logger.Info().Msg("no fresh tracks available for top-up")
	}
}

// observe updates advance detection from one playback snapshot. A new
// track ID or a large backwards jump in progress both count as an
// advance; pauses and scrubbing within slack do not.
func (s *Session) observe(pb models.PlaybackState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	advanced := false
	switch {
	case s.lastTrackID == "":
		// First sighting arms the detector without counting.
	case pb.TrackID != s.lastTrackID:
		advanced = true
	case s.haveProgress && pb.ProgressMS+s.cfg.ProgressSlack.Milliseconds() < s.lastProgress:
		advanced = true
	}

	if advanced {
		s.played++
		// A track the listener reached on their own still counts as
		// consumed for dedup purposes.
		s.filter.Seen.AddID(pb.TrackID)
		s.bus.Publish(events.EventNowPlaying, events.Payload{
			"session_id": s.id,
			"track_id":   pb.TrackID,
			"played":     s.played,
		})
		s.logger.Debug().Int("played", s.played).Str("track_id", pb.TrackID).Msg("track advanced")
	}

	s.lastTrackID = pb.TrackID
	s.lastProgress = pb.ProgressMS
	s.haveProgress = true
}

// topUp builds and queues one batch, returning how many tracks landed.
func (s *Session) topUp(ctx context.Context, n int, trigger string) int {
	started := time.Now()
	batch := s.source.BuildBatch(ctx, n, false)
	telemetry.BatchBuildDuration.WithLabelValues(s.source.Kind()).Observe(time.Since(started).Seconds())
	if len(batch) == 0 {
		return 0
	}

	added := s.queue.TopUp(ctx, s.deviceID, batch)
	s.mu.Lock()
	s.queued += added
	s.mu.Unlock()

	telemetry.TracksQueuedTotal.Add(float64(added))
	telemetry.TopUpsTotal.WithLabelValues(trigger).Inc()
	for _, t := range batch[:added] {
		s.bus.Publish(events.EventTrackQueued, events.Payload{
			"session_id": s.id,
			"track_id":   t.ID,
			"title":      t.Title,
			"artist":     t.PrimaryArtist(),
			"source":     t.Source,
		})
	}
	s.bus.Publish(events.EventSessionTopUp, events.Payload{
		"session_id": s.id,
		"trigger":    trigger,
		"requested":  n,
		"queued":     added,
	})
	s.logger.Info().Str("trigger", trigger).Int("queued", added).Msg("top-up complete")
	return added
}
