/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP control surface: session lifecycle,
// source discovery, batch previews and the live event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/bragi_queue/internal/catalog"
	"github.com/friendsincode/bragi_queue/internal/dedup"
	"github.com/friendsincode/bragi_queue/internal/events"
	"github.com/friendsincode/bragi_queue/internal/models"
	"github.com/friendsincode/bragi_queue/internal/moods"
	"github.com/friendsincode/bragi_queue/internal/pool"
	"github.com/friendsincode/bragi_queue/internal/profile"
	"github.com/friendsincode/bragi_queue/internal/recommend"
	"github.com/friendsincode/bragi_queue/internal/session"
	"github.com/friendsincode/bragi_queue/internal/tags"
	"github.com/friendsincode/bragi_queue/internal/telemetry"
	"github.com/friendsincode/bragi_queue/internal/version"
)

// Catalog is the slice of the upstream client the API layer touches
// directly or hands to sources it constructs.
type Catalog interface {
	Devices(ctx context.Context) ([]models.Device, error)
	SaveTrack(ctx context.Context, trackID string) error
	Search(ctx context.Context, query string, limit, offset int) ([]models.Track, error)
	ArtistTopTracks(ctx context.Context, artistID string) ([]models.Track, error)
	ArtistAlbums(ctx context.Context, artistID string) ([]catalog.Album, error)
	AlbumTracks(ctx context.Context, albumID string) ([]models.Track, error)
	Track(ctx context.Context, trackID string) (models.Track, error)
}

// Manager is the session lifecycle surface the API drives.
type Manager interface {
	Start(ctx context.Context, source session.BatchSource, filter *dedup.Filter) (session.Status, error)
	Stop(id string) error
	Get(id string) (session.Status, error)
	List() []session.Status
}

// API exposes HTTP handlers.
type API struct {
	manager   Manager
	catalog   Catalog
	assembler session.BatchAssembler
	moods     *moods.Catalog
	profile   *profile.Profile // nil when no taste snapshot is configured
	poolCfg   pool.Config
	bus       *events.Bus
	checker   *version.Checker
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(manager Manager, cat Catalog, asm session.BatchAssembler, moodCatalog *moods.Catalog, prof *profile.Profile, poolCfg pool.Config, bus *events.Bus, checker *version.Checker, logger zerolog.Logger) *API {
	return &API{
		manager:   manager,
		catalog:   cat,
		assembler: asm,
		moods:     moodCatalog,
		profile:   prof,
		poolCfg:   poolCfg,
		bus:       bus,
		checker:   checker,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts API routes on the provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/version", a.handleVersion)
		r.Get("/devices", a.handleDevices)
		r.Get("/moods", a.handleMoods)
		r.Get("/tags", a.handleTags)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", a.handleSessionsList)
			r.Post("/", a.handleSessionCreate)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", a.handleSessionGet)
				r.Delete("/", a.handleSessionStop)
				r.Post("/save", a.handleSessionSave)
			})
		})

		r.Post("/preview", a.handlePreview)
		r.Get("/events", a.handleEvents)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleVersion(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"version": version.Version}
	if a.checker != nil {
		info := a.checker.Info()
		resp["latest"] = info.LatestVersion
		resp["update_available"] = info.UpdateAvailable
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := a.catalog.Devices(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("device listing failed")
		writeError(w, http.StatusBadGateway, "catalog_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func (a *API) handleMoods(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"moods":     a.moods.Moods(),
		"languages": []string{moods.LangHindi, moods.LangEnglish, moods.LangMix},
	})
}

func (a *API) handleTags(w http.ResponseWriter, _ *http.Request) {
	profiles := make(map[string][]string)
	for _, name := range tags.Names() {
		packed, _ := tags.Profile(name)
		profiles[name] = packed
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": profiles,
		"default":  tags.DefaultProfile,
	})
}

// sessionRequest selects a batch source. Mode is one of mood, tag or
// profile; the remaining fields apply per mode.
type sessionRequest struct {
	Mode          string         `json:"mode"`
	Language      string         `json:"language"`
	Weights       map[string]int `json:"weights"`
	Artists       []string       `json:"artists"`
	Tags          []string       `json:"tags"`
	TagProfile    string         `json:"tag_profile"`
	ProfileMode   string         `json:"profile_mode"`
	MinPopularity int            `json:"min_popularity"`
}

type previewRequest struct {
	sessionRequest
	Size int `json:"size"`
}

func (a *API) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	source, filter, errCode := a.buildSource(req)
	if errCode != "" {
		writeError(w, http.StatusUnprocessableEntity, errCode)
		return
	}

	status, err := a.manager.Start(r.Context(), source, filter)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, status)
	case errors.Is(err, catalog.ErrNoActiveDevice):
		writeError(w, http.StatusConflict, "no_active_device")
	case errors.Is(err, session.ErrEmptySeed):
		writeError(w, http.StatusUnprocessableEntity, "empty_seed")
	default:
		a.logger.Error().Err(err).Msg("session start failed")
		writeError(w, http.StatusInternalServerError, "session_start_failed")
	}
}

func (a *API) handleSessionsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": a.manager.List()})
}

func (a *API) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	status, err := a.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.Stop(chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleSessionSave saves the track the session last saw playing to the
// listener's library.
func (a *API) handleSessionSave(w http.ResponseWriter, r *http.Request) {
	status, err := a.manager.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}
	if status.LastTrackID == "" {
		writeError(w, http.StatusConflict, "nothing_playing")
		return
	}
	if err := a.catalog.SaveTrack(r.Context(), status.LastTrackID); err != nil {
		a.logger.Error().Err(err).Str("track_id", status.LastTrackID).Msg("save track failed")
		writeError(w, http.StatusBadGateway, "catalog_error")
		return
	}
	a.bus.Publish(events.EventTrackSaved, events.Payload{
		"session_id": status.ID,
		"track_id":   status.LastTrackID,
	})
	writeJSON(w, http.StatusOK, map[string]string{"saved": status.LastTrackID})
}

// handlePreview builds one batch without touching any device queue.
func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.Size > 50 {
		req.Size = 50
	}

	source, _, errCode := a.buildSource(req.sessionRequest)
	if errCode != "" {
		writeError(w, http.StatusUnprocessableEntity, errCode)
		return
	}

	tracks := source.BuildBatch(r.Context(), req.Size, true)
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":   source.Kind(),
		"count":  len(tracks),
		"tracks": tracks,
	})
}

// buildSource maps a request onto a batch source plus the session's
// fresh dedup filter. A non-empty return code means the request was
// unusable.
func (a *API) buildSource(req sessionRequest) (session.BatchSource, *dedup.Filter, string) {
	filter := &dedup.Filter{Seen: dedup.NewSeenSet(), MinPopularity: req.MinPopularity}

	switch strings.ToLower(req.Mode) {
	case "mood":
		if len(req.Weights) == 0 {
			return nil, nil, "weights_required"
		}
		for mood, weight := range req.Weights {
			if !a.moods.Has(mood) {
				return nil, nil, "unknown_mood"
			}
			if weight <= 0 {
				return nil, nil, "invalid_weight"
			}
		}
		language := req.Language
		if language == "" {
			language = moods.LangMix
		}
		return &session.MoodSource{
			Assembler: a.assembler,
			Language:  language,
			Weights:   req.Weights,
			Filter:    filter,
		}, filter, ""

	case "tag":
		tagList := req.Tags
		if len(tagList) == 0 {
			name := req.TagProfile
			if name == "" {
				name = tags.DefaultProfile
			}
			packed, ok := tags.Profile(name)
			if !ok {
				return nil, nil, "unknown_tag_profile"
			}
			tagList = packed
		}
		return &session.TagSource{
			Catalog: a.catalog,
			Artists: req.Artists,
			Tags:    tagList,
			Filter:  filter,
			Config:  a.poolCfg,
			Logger:  a.logger,
		}, filter, ""

	case "profile":
		if a.profile == nil {
			return nil, nil, "profile_not_configured"
		}
		mode := profile.ParseMode(req.ProfileMode)
		rec := recommend.New(a.catalog, a.profile, mode, nil, a.logger)
		return &session.ProfileSource{Recommender: rec, Filter: filter}, filter, ""

	default:
		return nil, nil, "unknown_mode"
	}
}

// handleEvents streams bus events over a websocket.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{
			events.EventNowPlaying,
			events.EventSessionTopUp,
			events.EventQueueLow,
		}
	}

	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		subscribers = append(subscribers, a.bus.Subscribe(eventType))
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		default:
			sent := false
			for i, sub := range subscribers {
				select {
				case payload := <-sub:
					if err := a.writeEvent(ctx, conn, eventTypes[i], payload); err != nil {
						a.logger.Error().Err(err).Msg("websocket write failed")
						conn.Close(ws.StatusInternalError, "write failed")
						return
					}
					sent = true
				default:
				}
			}
			if !sent {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, bytes)
}

func parseEventTypes(raw string) []events.EventType {
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
