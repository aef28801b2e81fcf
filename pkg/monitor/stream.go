// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"sync"

	"github.com/noldarim/streamlog/pkg/event"
)

// EventStream is the pull face of a monitor: a bounded channel of events
// plus a cleanup handle. The channel bridges the monitor's push delivery to
// channel consumption; when the consumer lags, the monitor blocks rather
// than dropping, and Cleanup unblocks it. Consumers own the lifecycle:
// nothing stops the stream but Cleanup or the context.
type EventStream struct {
	m      *Monitor
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

// OpenStream starts monitoring cfg.Path and returns its event stream. The
// Events channel closes after Cleanup (or context cancellation) once the
// monitor goroutine has drained.
func OpenStream(ctx context.Context, cfg Config) (*EventStream, error) {
	m, err := New(cfg)
	if err != nil {
		return nil, err
	}

	s := &EventStream{
		m:      m,
		events: make(chan event.Event, m.bufferSize),
		done:   make(chan struct{}),
	}

	err = m.Start(ctx, func(ev event.Event) {
		select {
		case s.events <- ev:
		case <-s.done:
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-m.Done()
		close(s.events)
	}()

	return s, nil
}

// Events returns the event channel. It closes when the stream ends.
func (s *EventStream) Events() <-chan event.Event {
	return s.events
}

// Errors returns the monitor's error channel.
func (s *EventStream) Errors() <-chan error {
	return s.m.Errors()
}

// Stats returns the underlying monitor's counters.
func (s *EventStream) Stats() Stats {
	return s.m.Stats()
}

// Cleanup stops the stream. It is idempotent: the second and later calls do
// nothing, and calling it after the context already ended is fine.
func (s *EventStream) Cleanup() {
	s.once.Do(func() {
		close(s.done)
		s.m.Stop()
	})
}

// ChunkStream is EventStream projected through ChunkFromEvent: display
// chunks only, events with no projection dropped.
type ChunkStream struct {
	m      *Monitor
	chunks chan event.Chunk
	done   chan struct{}
	once   sync.Once
}

// OpenChunkStream starts monitoring cfg.Path and returns its chunk stream.
func OpenChunkStream(ctx context.Context, cfg Config) (*ChunkStream, error) {
	m, err := New(cfg)
	if err != nil {
		return nil, err
	}

	s := &ChunkStream{
		m:      m,
		chunks: make(chan event.Chunk, m.bufferSize),
		done:   make(chan struct{}),
	}

	err = m.Start(ctx, func(ev event.Event) {
		chunk, ok := event.ChunkFromEvent(ev)
		if !ok {
			return
		}
		select {
		case s.chunks <- chunk:
		case <-s.done:
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-m.Done()
		close(s.chunks)
	}()

	return s, nil
}

// Chunks returns the chunk channel. It closes when the stream ends.
func (s *ChunkStream) Chunks() <-chan event.Chunk {
	return s.chunks
}

// Errors returns the monitor's error channel.
func (s *ChunkStream) Errors() <-chan error {
	return s.m.Errors()
}

// Stats returns the underlying monitor's counters.
func (s *ChunkStream) Stats() Stats {
	return s.m.Stats()
}

// Cleanup stops the stream. Idempotent.
func (s *ChunkStream) Cleanup() {
	s.once.Do(func() {
		close(s.done)
		s.m.Stop()
	})
}
