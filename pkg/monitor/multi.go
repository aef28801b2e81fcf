// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"github.com/noldarim/streamlog/pkg/event"
)

// ErrNoPaths is returned when a multi-monitor is opened with nothing to
// watch.
var ErrNoPaths = errors.New("monitor: no paths to watch")

// MultiMonitor follows several transcript files at once, merging their
// events into one channel. Ordering holds within each file; interleaving
// across files is whatever the writes dictate. One Cleanup tears down
// everything.
type MultiMonitor struct {
	monitors map[string]*Monitor // path -> monitor

	events    chan event.Event
	errorChan chan error
	stopChan  chan struct{}
	doneChan  chan struct{}

	cancel context.CancelFunc
	errWG  sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	lastError error
}

// OpenMulti starts one monitor per path. If any path fails to start, the
// already started monitors are stopped and the error is returned; there is
// no partially watching state. cfg.Path is ignored, the rest of cfg applies
// to every file.
func OpenMulti(ctx context.Context, paths []string, cfg Config) (*MultiMonitor, error) {
	paths = lo.Uniq(lo.Map(paths, func(p string, _ int) string { return filepath.Clean(p) }))
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg.Path = paths[0]
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	mm := &MultiMonitor{
		monitors:  make(map[string]*Monitor, len(paths)),
		events:    make(chan event.Event, cfg.BufferSize),
		errorChan: make(chan error, 10),
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		cancel:    cancel,
	}

	for _, path := range paths {
		childCfg := cfg
		childCfg.Path = path

		m, err := New(childCfg)
		if err == nil {
			err = m.Start(watchCtx, mm.deliver)
		}
		if err != nil {
			mm.teardown()
			return nil, fmt.Errorf("start monitor for %s: %w", path, err)
		}

		mm.monitors[m.path] = m
		mm.errWG.Add(1)
		go mm.forwardErrors(m)
	}

	return mm, nil
}

// Events returns the merged event channel. It closes after Cleanup.
func (mm *MultiMonitor) Events() <-chan event.Event {
	return mm.events
}

// Errors returns the merged error channel, each error prefixed with the
// file it came from.
func (mm *MultiMonitor) Errors() <-chan error {
	return mm.errorChan
}

// Done returns a channel closed once Cleanup has finished.
func (mm *MultiMonitor) Done() <-chan struct{} {
	return mm.doneChan
}

// Paths returns the watched paths, sorted.
func (mm *MultiMonitor) Paths() []string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	paths := make([]string, 0, len(mm.monitors))
	for path := range mm.monitors {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Stats returns per-file counters keyed by path.
func (mm *MultiMonitor) Stats() map[string]Stats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	stats := make(map[string]Stats, len(mm.monitors))
	for path, m := range mm.monitors {
		stats[path] = m.Stats()
	}
	return stats
}

// Cleanup stops every monitor and closes the merged channels. Idempotent.
func (mm *MultiMonitor) Cleanup() {
	mm.mu.Lock()
	if mm.closed {
		mm.mu.Unlock()
		return
	}
	mm.closed = true
	mm.mu.Unlock()

	mm.teardown()
	close(mm.doneChan)
}

func (mm *MultiMonitor) teardown() {
	close(mm.stopChan)
	mm.cancel()
	for _, m := range mm.monitors {
		m.Stop()
	}
	mm.errWG.Wait()
	close(mm.events)
	close(mm.errorChan)
}

// deliver feeds a child's events into the merged channel. A lagging
// consumer blocks the child rather than losing events; closing stopChan
// releases it.
func (mm *MultiMonitor) deliver(ev event.Event) {
	select {
	case mm.events <- ev:
	case <-mm.stopChan:
	}
}

func (mm *MultiMonitor) forwardErrors(m *Monitor) {
	defer mm.errWG.Done()
	for err := range m.Errors() {
		mm.reportError(fmt.Errorf("%s: %w", m.path, err))
	}
}

func (mm *MultiMonitor) reportError(err error) {
	mm.mu.Lock()
	mm.lastError = err
	mm.mu.Unlock()

	select {
	case mm.errorChan <- err:
	default:
	}
}

// DirMonitor watches a directory, attaching a monitor to every .jsonl file
// in it, current and future. Files that disappear are detached; a rescan
// tick backs up fsnotify so nothing stays missed for long.
type DirMonitor struct {
	dir          string
	cfg          Config
	pollInterval time.Duration

	monitors map[string]*Monitor // filename -> monitor

	events    chan event.Event
	errorChan chan error
	stopChan  chan struct{}
	doneChan  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	fsw    *fsnotify.Watcher
	errWG  sync.WaitGroup

	mu        sync.RWMutex
	closed    bool
	lastError error
}

// OpenDir starts watching dir. The directory must exist; files matching
// *.jsonl are attached immediately and new arrivals as they appear.
// cfg.Path is ignored.
func OpenDir(ctx context.Context, dir string, cfg Config) (*DirMonitor, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open watch directory: %s is not a directory", dir)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg.Path = dir // placeholder so normalize accepts the template
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	d := &DirMonitor{
		dir:          filepath.Clean(dir),
		cfg:          cfg,
		pollInterval: cfg.PollInterval,
		monitors:     make(map[string]*Monitor),
		events:       make(chan event.Event, cfg.BufferSize),
		errorChan:    make(chan error, 10),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		ctx:          watchCtx,
		cancel:       cancel,
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		if addErr := fsw.Add(d.dir); addErr == nil {
			d.fsw = fsw
		} else {
			fsw.Close() //nolint:errcheck
		}
	}

	d.scan()
	go d.watch()

	return d, nil
}

// Events returns the merged event channel for all attached files.
func (d *DirMonitor) Events() <-chan event.Event {
	return d.events
}

// Errors returns the merged error channel.
func (d *DirMonitor) Errors() <-chan error {
	return d.errorChan
}

// Done returns a channel closed once Cleanup has finished.
func (d *DirMonitor) Done() <-chan struct{} {
	return d.doneChan
}

// Active returns the currently attached filenames, sorted.
func (d *DirMonitor) Active() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.monitors))
	for name := range d.monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns per-file counters keyed by filename.
func (d *DirMonitor) Stats() map[string]Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := make(map[string]Stats, len(d.monitors))
	for name, m := range d.monitors {
		stats[name] = m.Stats()
	}
	return stats
}

// Cleanup detaches every file and closes the merged channels. Idempotent.
func (d *DirMonitor) Cleanup() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.stopChan)
	d.cancel()
	<-d.doneChan

	d.mu.Lock()
	monitors := d.monitors
	d.monitors = make(map[string]*Monitor)
	d.mu.Unlock()

	for _, m := range monitors {
		m.Stop()
	}
	d.errWG.Wait()
	close(d.events)
	close(d.errorChan)
}

func (d *DirMonitor) watch() {
	defer close(d.doneChan)
	defer func() {
		if d.fsw != nil {
			d.fsw.Close() //nolint:errcheck
		}
	}()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	var fsEvents chan fsnotify.Event
	var fsErrors chan error
	if d.fsw != nil {
		fsEvents = d.fsw.Events
		fsErrors = d.fsw.Errors
	}

	for {
		select {
		case <-d.ctx.Done():
			return

		case fe, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			name := filepath.Base(fe.Name)
			if !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			switch {
			case fe.Op.Has(fsnotify.Create):
				d.attach(name)
			case fe.Op.Has(fsnotify.Remove) || fe.Op.Has(fsnotify.Rename):
				d.detach(name)
			}

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			d.reportError(fmt.Errorf("fsnotify: %w", err))

		case <-ticker.C:
			d.scan()
		}
	}
}

// scan attaches any matching file not yet watched.
func (d *DirMonitor) scan() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.reportError(fmt.Errorf("read watch directory: %w", err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		d.attach(entry.Name())
	}
}

func (d *DirMonitor) attach(filename string) {
	d.mu.RLock()
	_, exists := d.monitors[filename]
	closed := d.closed
	d.mu.RUnlock()
	if exists || closed {
		return
	}

	childCfg := d.cfg
	childCfg.Path = filepath.Join(d.dir, filename)

	m, err := New(childCfg)
	if err == nil {
		err = m.Start(d.ctx, d.deliver)
	}
	if err != nil {
		// The file may have vanished between scan and open; the next
		// rescan retries if it is back.
		d.reportError(fmt.Errorf("attach %s: %w", filename, err))
		return
	}

	d.mu.Lock()
	d.monitors[filename] = m
	d.mu.Unlock()

	d.errWG.Add(1)
	go d.forwardErrors(filename, m)
}

func (d *DirMonitor) detach(filename string) {
	d.mu.Lock()
	m, exists := d.monitors[filename]
	if exists {
		delete(d.monitors, filename)
	}
	d.mu.Unlock()
	if !exists {
		return
	}

	// Async: the monitor may be blocked delivering to a slow consumer and
	// Stop waits for it. The error forwarder keeps Cleanup honest.
	go m.Stop()
}

func (d *DirMonitor) deliver(ev event.Event) {
	select {
	case d.events <- ev:
	case <-d.stopChan:
	}
}

func (d *DirMonitor) forwardErrors(filename string, m *Monitor) {
	defer d.errWG.Done()
	for err := range m.Errors() {
		d.reportError(fmt.Errorf("%s: %w", filename, err))
	}
}

func (d *DirMonitor) reportError(err error) {
	d.mu.Lock()
	d.lastError = err
	d.mu.Unlock()

	select {
	case d.errorChan <- err:
	default:
	}
}
