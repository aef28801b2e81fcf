// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/noldarim/streamlog/pkg/event"
)

// WatchEvent is an event attributed to the watch that produced it, the unit
// of delivery for Manager subscribers.
type WatchEvent struct {
	WatchID string      `json:"watch_id"`
	Path    string      `json:"path"`
	Event   event.Event `json:"event"`
}

// WatchInfo describes one active watch.
type WatchInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
	Stats     Stats     `json:"stats"`
}

type managedWatch struct {
	id        string
	path      string
	startedAt time.Time
	monitor   *Monitor
}

func (w *managedWatch) info() WatchInfo {
	return WatchInfo{ID: w.id, Path: w.path, StartedAt: w.startedAt, Stats: w.monitor.Stats()}
}

// Manager is a registry of monitors keyed by opaque watch ids, built for
// long-running processes that watch files on behalf of remote clients.
// Watching the same path twice returns the same id; events from every watch
// fan out to all subscribers.
type Manager struct {
	cfg    Config
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	watches map[string]*managedWatch // id -> watch
	byPath  map[string]string        // path -> id
	subs    map[int]chan<- WatchEvent
	nextSub int
	closed  bool
}

// NewManager creates a manager. cfg.Path is ignored; the remaining fields
// are the template every watch starts from.
func NewManager(cfg Config) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:     cfg,
		log:     cfg.logger(),
		ctx:     ctx,
		cancel:  cancel,
		watches: make(map[string]*managedWatch),
		byPath:  make(map[string]string),
		subs:    make(map[int]chan<- WatchEvent),
	}
}

// Watch starts monitoring path and returns the watch id. A path already
// being watched returns its existing id without a second monitor.
func (g *Manager) Watch(path string) (string, error) {
	clean := filepath.Clean(path)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return "", ErrMonitorClosed
	}
	if id, ok := g.byPath[clean]; ok {
		return id, nil
	}

	cfg := g.cfg
	cfg.Path = clean
	mon, err := New(cfg)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	err = mon.Start(g.ctx, func(ev event.Event) {
		g.broadcast(WatchEvent{WatchID: id, Path: clean, Event: ev})
	})
	if err != nil {
		return "", err
	}

	g.watches[id] = &managedWatch{id: id, path: clean, startedAt: time.Now(), monitor: mon}
	g.byPath[clean] = id
	go g.drainErrors(clean, mon)

	g.log.Info().Str("id", id).Str("file", clean).Msg("Watch started")
	return id, nil
}

// Unwatch stops the watch with the given id. It reports whether the id was
// known.
func (g *Manager) Unwatch(id string) bool {
	g.mu.Lock()
	w, ok := g.watches[id]
	if ok {
		delete(g.watches, id)
		delete(g.byPath, w.path)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}
	w.monitor.Stop()
	g.log.Info().Str("id", id).Str("file", w.path).Msg("Watch stopped")
	return true
}

// Lookup returns the live info for one watch id.
func (g *Manager) Lookup(id string) (WatchInfo, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	w, ok := g.watches[id]
	if !ok {
		return WatchInfo{}, false
	}
	return w.info(), true
}

// List returns every active watch, sorted by path.
func (g *Manager) List() []WatchInfo {
	g.mu.RLock()
	watches := lo.Map(lo.Values(g.watches), func(w *managedWatch, _ int) WatchInfo {
		return w.info()
	})
	g.mu.RUnlock()

	sort.Slice(watches, func(i, j int) bool { return watches[i].Path < watches[j].Path })
	return watches
}

// Subscribe registers a channel to receive every watch's events. Delivery
// is non-blocking: a subscriber that cannot keep up misses events rather
// than stalling the monitors. The returned function unsubscribes.
func (g *Manager) Subscribe(ch chan<- WatchEvent) func() {
	g.mu.Lock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = ch
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// Close stops every watch and rejects further use.
func (g *Manager) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	watches := lo.Values(g.watches)
	g.watches = make(map[string]*managedWatch)
	g.byPath = make(map[string]string)
	g.mu.Unlock()

	g.cancel()
	for _, w := range watches {
		w.monitor.Stop()
	}
	g.log.Info().Int("watches", len(watches)).Msg("Watch manager closed")
}

func (g *Manager) broadcast(we WatchEvent) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, ch := range g.subs {
		select {
		case ch <- we:
		default:
		}
	}
}

func (g *Manager) drainErrors(path string, mon *Monitor) {
	for err := range mon.Errors() {
		g.log.Warn().Str("file", path).Err(err).Msg("Watch error")
	}
}
