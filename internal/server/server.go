/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, the catalog client and the
// session engine into the HTTP surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/spotify"

	"github.com/friendsincode/bragi_queue/internal/api"
	"github.com/friendsincode/bragi_queue/internal/assembler"
	"github.com/friendsincode/bragi_queue/internal/catalog"
	"github.com/friendsincode/bragi_queue/internal/config"
	"github.com/friendsincode/bragi_queue/internal/events"
	"github.com/friendsincode/bragi_queue/internal/moods"
	"github.com/friendsincode/bragi_queue/internal/pool"
	"github.com/friendsincode/bragi_queue/internal/profile"
	"github.com/friendsincode/bragi_queue/internal/queuectl"
	"github.com/friendsincode/bragi_queue/internal/session"
	"github.com/friendsincode/bragi_queue/internal/telemetry"
	"github.com/friendsincode/bragi_queue/internal/version"
)

// Server bundles the HTTP API and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server

	catalog *catalog.Client
	manager *session.Manager
	bus     *events.Bus
	checker *version.Checker
	api     *api.API

	bgCancel context.CancelFunc
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	// Websocket event streams are long-lived; everything else gets a
	// request deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the event stream; the middleware
		// timeout covers plain routes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	srv.metricsServer = &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	oauthCfg := &oauth2.Config{
		ClientID:     s.cfg.SpotifyClientID,
		ClientSecret: s.cfg.SpotifyClientSecret,
		Endpoint:     spotify.Endpoint,
	}
	tokens := oauthCfg.TokenSource(context.Background(), &oauth2.Token{
		RefreshToken: s.cfg.SpotifyRefreshToken,
	})

	s.catalog = catalog.New(tokens, s.cfg.Market, catalog.RetryPolicy{
		MaxAttempts: s.cfg.RetryMaxAttempts,
		BaseDelay:   s.cfg.RetryBaseDelay,
		MaxDelay:    s.cfg.RetryMaxDelay,
	}, s.logger)

	moodCatalog, err := s.loadMoodCatalog()
	if err != nil {
		return err
	}

	var prof *profile.Profile
	if s.cfg.ProfilePath != "" {
		prof, err = profile.Load(s.cfg.ProfilePath)
		if err != nil {
			// Profile sessions degrade to unavailable rather than
			// blocking mood and tag sessions.
			s.logger.Warn().Err(err).Str("path", s.cfg.ProfilePath).Msg("taste profile unavailable")
			prof = nil
		}
	}

	asm := assembler.New(s.catalog, moodCatalog, assembler.Config{
		SkipBelow:  s.cfg.SkipBelowPop,
		MidPopMin:  s.cfg.MidPopMin,
		HighPopMin: s.cfg.HighPopMin,
		HighRatio:  s.cfg.HighRatio,
		MaxShare:   s.cfg.MaxShare,
	}, s.logger)

	controller := queuectl.New(s.catalog, s.logger)

	s.manager = session.NewManager(s.catalog, controller, s.catalog, s.bus, session.Config{
		InitialBatch:  s.cfg.InitialBatch,
		SeedSize:      s.cfg.SeedSize,
		TopUpEvery:    s.cfg.TopUpEvery,
		TopUpBatch:    s.cfg.TopUpBatch,
		QueueLowWater: s.cfg.QueueLowWater,
		PollInterval:  s.cfg.PollInterval,
		ProgressSlack: s.cfg.ProgressSlack,
	}, s.cfg.TransferPlayback, s.logger)

	s.checker = version.NewChecker(s.logger)

	poolCfg := pool.Config{PageCeiling: s.cfg.PageCeiling}
	s.api = api.New(s.manager, s.catalog, asm, moodCatalog, prof, poolCfg, s.bus, s.checker, s.logger)

	return nil
}

func (s *Server) loadMoodCatalog() (*moods.Catalog, error) {
	if s.cfg.MoodCatalogPath != "" {
		return moods.Load(s.cfg.MoodCatalogPath)
	}
	return moods.Default()
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.api.Routes(s.router)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel
	s.checker.Start(ctx)
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the Prometheus listener.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Close stops sessions and background workers.
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.checker.Stop()
	s.manager.StopAll()
	return nil
}
