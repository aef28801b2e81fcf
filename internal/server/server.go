// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/streamlog/internal/config"
	"github.com/noldarim/streamlog/pkg/monitor"
)

// subscriptionBuffer is the depth of the channel between the watch manager
// and the broadcaster. Manager delivery is non-blocking, so a stalled
// broadcaster costs events rather than stalling monitors.
const subscriptionBuffer = 256

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
	unsubscribe func()
}

// New creates and wires up the API server around a watch manager. It does
// NOT start listening — call Run() for that.
func New(cfg *config.ServerConfig, manager *monitor.Manager) *Server {
	registry := NewClientRegistry()

	events := make(chan monitor.WatchEvent, subscriptionBuffer)
	unsubscribe := manager.Subscribe(events)
	broadcaster := NewEventBroadcaster(events, registry)
	handlers := NewHandlers(manager)

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(cfg.MaxBodyBytes))

	// REST routes
	r.Route("/api/v1", func(r chi.Router) {
		// Batch log reads
		r.Get("/logs/summary", handlers.GetLogSummary)
		r.Get("/logs/parse", handlers.ParseLog)
		r.Get("/logs/valid", handlers.CheckLog)

		// Watches
		r.Get("/watches", handlers.ListWatches)
		r.Post("/watches", handlers.CreateWatch)
		r.Get("/watches/{id}", handlers.GetWatch)
		r.Delete("/watches/{id}", handlers.DeleteWatch)
	})

	// Liveness
	r.Get("/health", handlers.Health)

	// WebSocket
	r.Get("/ws", HandleWebSocket(registry, cfg.AllowedOrigins))

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		broadcaster: broadcaster,
		unsubscribe: unsubscribe,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the event broadcaster goroutine and the HTTP server.
// Blocks until the server is shut down or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		const maxRetries = 3
		for attempt := 1; attempt <= maxRetries; attempt++ {
			func() {
				defer func() {
					if r := recover(); r != nil {
						getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
					}
				}()
				s.broadcaster.Run(ctx)
			}()

			// Normal return (context cancelled) — exit without retry.
			if ctx.Err() != nil {
				return
			}

			if attempt < maxRetries {
				getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster after panic")
				time.Sleep(1 * time.Second)
			}
		}
		getLog().Error().Msg("Event broadcaster exhausted retries - events will no longer be dispatched")
	}()

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server and detaches from the manager.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	return s.httpServer.Shutdown(ctx)
}
