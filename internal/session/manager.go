/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/friendsincode/bragi_queue/internal/catalog"
	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Fatal start errors; anything after seeding is handled by the loop.
var (
	ErrEmptySeed       = errors.New("no eligible tracks to start playback")
	ErrSessionNotFound = errors.New("session not found")
)

// DeviceResolver resolves the target playback device.
type DeviceResolver interface {
	EnsureDevice(ctx context.Context, transfer bool) (string, error)
}

// Manager owns session lifecycles. Each session gets its own goroutine,
// seen set and state; sessions never share anything mutable.
type Manager struct {
	devices  DeviceResolver
	queue    Queuer
	playback Playback
	bus      *events.Bus
	cfg      Config
	transfer bool
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	cancels  map[string]context.CancelFunc
}

// NewManager builds a session manager. transfer controls whether a
// session may move playback to the first known device when none is
// active.
func NewManager(devices DeviceResolver, queue Queuer, playback Playback, bus *events.Bus, cfg Config, transfer bool, logger zerolog.Logger) *Manager {
	return &Manager{
		devices:  devices,
		queue:    queue,
		playback: playback,
		bus:      bus,
		cfg:      cfg.withDefaults(),
		transfer: transfer,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		sessions: make(map[string]*Session),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start validates the device, seeds playback synchronously and then
// launches the monitor goroutine. The filter must be the same one the
// source commits through; the session owns both from here on.
func (m *Manager) Start(ctx context.Context, source BatchSource, filter *dedup.Filter) (Status, error) {
	deviceID, err := m.devices.EnsureDevice(ctx, m.transfer)
	if err != nil {
		if errors.Is(err, catalog.ErrNoActiveDevice) {
			return Status{}, fmt.Errorf("open the player on a device first: %w", err)
		}
		return Status{}, fmt.Errorf("resolve device: %w", err)
	}

	s := newSession(uuid.NewString(), deviceID, source, m.queue, m.playback, filter, m.cfg, m.bus, m.logger)
	if err := s.seed(ctx); err != nil {
		return Status{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.cancels[s.ID()] = cancel
	m.mu.Unlock()

	go s.Run(runCtx)
	return s.Status(), nil
}

// Stop cancels a session's monitor loop. The device queue keeps what
// was already appended.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	cancel, ok := m.cancels[id]
	if ok {
		delete(m.cancels, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	cancel()
	return nil
}

// StopAll cancels every running session; used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = make(map[string]context.CancelFunc)
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Get returns a session's status.
func (m *Manager) Get(id string) (Status, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Status{}, ErrSessionNotFound
	}
	return s.Status(), nil
}

// List returns all known sessions, stopped ones included, ordered by
// start time.
func (m *Manager) List() []Status {
	m.mu.Lock()
	out := make([]Status, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Status())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}
