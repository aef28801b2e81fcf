// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a REST + WebSocket API over transcript log files.
// REST handlers answer batch questions (summaries, full parses, validity) and
// manage watches; every event a watch produces is broadcast to connected
// WebSocket clients.
package server

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noldarim/streamlog/internal/logger"
	"github.com/noldarim/streamlog/pkg/monitor"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetServerLogger()
		log = &l
	})
	return log
}

// EventBroadcaster reads every watch event from the manager's subscription
// channel and fans them out to all connected WebSocket clients.
type EventBroadcaster struct {
	eventChan <-chan monitor.WatchEvent
	clients   *ClientRegistry
}

// NewEventBroadcaster creates a broadcaster that fans out events from a
// manager subscription channel.
func NewEventBroadcaster(eventChan <-chan monitor.WatchEvent, clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Run reads events until the channel is closed or context is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case we, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(we)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(we monitor.WatchEvent) {
	if b.clients != nil {
		b.clients.Broadcast(we)
	}
}
