// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor follows growing stream-json transcript files and delivers
// each newly appended event exactly once, in file order. Change detection is
// fsnotify with a polling ticker as resync fallback; reads never block the
// caller, and a trailing half-written line is held back until its newline
// arrives.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/noldarim/streamlog/pkg/event"
	"github.com/noldarim/streamlog/pkg/stream"
)

// ErrMonitorClosed is returned when operations are attempted on a stopped
// monitor.
var ErrMonitorClosed = errors.New("monitor is closed")

// EventFunc receives each delivered event. It is called from the monitor's
// goroutine, never concurrently with itself for the same monitor.
type EventFunc func(event.Event)

// Config holds configuration for a Monitor.
type Config struct {
	// Path is the transcript file to follow. It must exist and be readable
	// when the monitor starts.
	Path string

	// PollInterval is the resync tick (default 100ms). The ticker backs up
	// fsnotify and becomes the sole trigger when no watcher is available.
	PollInterval time.Duration

	// BufferSize is the channel capacity used by the stream faces
	// (default 1000). The callback face does not buffer.
	BufferSize int

	// Logger receives debug/error logging. Nil means silent.
	Logger *zerolog.Logger
}

// DefaultConfig returns a Config with the defaults filled in.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		PollInterval: 100 * time.Millisecond,
		BufferSize:   1000,
	}
}

func (c *Config) normalize() error {
	if c.Path == "" {
		return errors.New("monitor: path is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	return nil
}

func (c Config) logger() zerolog.Logger {
	if c.Logger != nil {
		return *c.Logger
	}
	return zerolog.Nop()
}

// Stats is a snapshot of a monitor's counters.
type Stats struct {
	Path            string `json:"path"`
	Running         bool   `json:"running"`
	Offset          int64  `json:"offset"`        // bytes consumed from the file
	PendingBytes    int    `json:"pending_bytes"` // buffered incomplete line
	LinesRead       int64  `json:"lines_read"`
	EventsDelivered int64  `json:"events_delivered"`
	ParseFailures   int64  `json:"parse_failures"`
	Resets          int64  `json:"resets"` // truncation/rotation recoveries
	LastError       string `json:"last_error,omitempty"`
}

// Monitor tails one transcript file. All file reads and event deliveries
// happen on a single goroutine, so callers observe events in file order
// with no duplicates. A result event is delivered like any other and does
// not stop the monitor; sessions may continue past it. Only Stop, context
// cancellation, or stream cleanup ends monitoring.
type Monitor struct {
	path         string
	pollInterval time.Duration
	bufferSize   int
	log          zerolog.Logger

	fn EventFunc

	file    *os.File
	lineBuf stream.LineBuffer
	readBuf []byte
	offset  int64

	fsw *fsnotify.Watcher

	errorChan chan error
	doneChan  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	mu          sync.RWMutex
	started     bool
	closed      bool
	linesRead   int64
	delivered   int64
	parseFails  int64
	resets      int64
	lastError   error
	pendingSnap int
	offsetSnap  int64
}

// New creates a monitor. It does not touch the filesystem; Start does.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &Monitor{
		path:         filepath.Clean(cfg.Path),
		pollInterval: cfg.PollInterval,
		bufferSize:   cfg.BufferSize,
		log:          cfg.logger(),
		readBuf:      make([]byte, 32*1024),
		errorChan:    make(chan error, 10),
		doneChan:     make(chan struct{}),
	}, nil
}

// Start opens the file and begins monitoring. It fails immediately when the
// file cannot be opened; there is no silent retry at start. The existing
// content is delivered as backlog before any live events. Starting an
// already started monitor is a no-op.
func (m *Monitor) Start(ctx context.Context, fn EventFunc) error {
	if fn == nil {
		return errors.New("monitor: event callback is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	file, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if info, statErr := file.Stat(); statErr != nil || !info.Mode().IsRegular() {
		file.Close() //nolint:errcheck
		if statErr != nil {
			return fmt.Errorf("stat log file: %w", statErr)
		}
		return fmt.Errorf("open log file: %s is not a regular file", m.path)
	}

	// Watch the parent directory: rename and recreate of the target file
	// are only visible there. Failure degrades to pure polling.
	fsw, err := fsnotify.NewWatcher()
	if err == nil {
		if addErr := fsw.Add(filepath.Dir(m.path)); addErr != nil {
			fsw.Close() //nolint:errcheck
			fsw = nil
			m.log.Warn().Err(addErr).Str("file", m.path).Msg("fsnotify unavailable, falling back to polling")
		}
	} else {
		fsw = nil
		m.log.Warn().Err(err).Str("file", m.path).Msg("fsnotify unavailable, falling back to polling")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		file.Close() //nolint:errcheck
		if fsw != nil {
			fsw.Close() //nolint:errcheck
		}
		return ErrMonitorClosed
	}
	m.file = file
	m.fsw = fsw
	m.fn = fn
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.started = true
	m.mu.Unlock()

	m.log.Info().Str("file", m.path).Msg("Monitor started")
	go m.watch()

	return nil
}

// Stop halts monitoring and waits for the goroutine to exit. It is
// idempotent and safe to call from any goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	if !started {
		return
	}

	m.cancel()
	<-m.doneChan
	m.log.Info().Str("file", m.path).Int64("linesRead", m.LinesRead()).Msg("Monitor stopped")
}

// Errors returns the channel on which non-fatal runtime errors are
// reported. The channel is buffered; when full, errors are logged and
// dropped. It closes when the monitor stops.
func (m *Monitor) Errors() <-chan error {
	return m.errorChan
}

// Done returns a channel closed when the monitor goroutine has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.doneChan
}

// LinesRead reports how many complete lines the monitor has consumed.
func (m *Monitor) LinesRead() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linesRead
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Path:            m.path,
		Running:         m.started && !m.closed,
		Offset:          m.offsetSnap,
		PendingBytes:    m.pendingSnap,
		LinesRead:       m.linesRead,
		EventsDelivered: m.delivered,
		ParseFailures:   m.parseFails,
		Resets:          m.resets,
	}
	if m.lastError != nil {
		s.LastError = m.lastError.Error()
	}
	return s
}

func (m *Monitor) watch() {
	defer close(m.doneChan)
	defer func() {
		if m.file != nil {
			m.file.Close() //nolint:errcheck
		}
		if m.fsw != nil {
			m.fsw.Close() //nolint:errcheck
		}
	}()
	defer close(m.errorChan)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	// Backlog first: everything already in the file goes out before any
	// live event.
	m.consume()

	var fsEvents chan fsnotify.Event
	var fsErrors chan error
	if m.fsw != nil {
		fsEvents = m.fsw.Events
		fsErrors = m.fsw.Errors
	}

	for {
		select {
		case <-m.ctx.Done():
			return

		case fe, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			if m.concerns(fe) {
				m.consume()
			}

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			m.reportError(fmt.Errorf("fsnotify: %w", err))

		case <-ticker.C:
			// Resync tick: catches anything fsnotify missed and is the
			// sole trigger in polling mode. Reading at EOF is a no-op,
			// so spurious wakeups are harmless.
			m.consume()
		}
	}
}

// concerns reports whether a directory notification is about our file.
func (m *Monitor) concerns(fe fsnotify.Event) bool {
	if filepath.Clean(fe.Name) != m.path {
		return false
	}
	return fe.Op.Has(fsnotify.Write) || fe.Op.Has(fsnotify.Create) ||
		fe.Op.Has(fsnotify.Rename) || fe.Op.Has(fsnotify.Remove)
}

// consume resyncs against the path and reads every available byte from the
// current position, delivering each completed line.
func (m *Monitor) consume() {
	info, err := os.Stat(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Transiently gone, likely mid-rotation. The old handle is
			// drained so nothing written before the move is lost; the
			// next wakeup reopens whatever reappears.
			if m.file != nil {
				m.readAll()
				m.file.Close() //nolint:errcheck
				m.file = nil
				m.reportError(fmt.Errorf("log file removed: %s", m.path))
			}
			return
		}
		m.reportError(fmt.Errorf("stat log file: %w", err))
		return
	}

	if m.file == nil {
		if err := m.reopen("recreated"); err != nil {
			m.reportError(err)
			return
		}
	} else {
		handleInfo, err := m.file.Stat()
		if err != nil {
			m.reportError(fmt.Errorf("stat open handle: %w", err))
			return
		}

		switch {
		case !os.SameFile(info, handleInfo):
			// Path points at a new file: rotated. Drain the old one
			// first, then restart from the top of the new file.
			m.readAll()
			m.file.Close() //nolint:errcheck
			m.file = nil
			if err := m.reopen("rotated"); err != nil {
				m.reportError(err)
				return
			}

		case info.Size() < m.offset:
			// Truncated in place. The retained partial belongs to
			// content that no longer exists.
			if _, err := m.file.Seek(0, io.SeekStart); err != nil {
				m.reportError(fmt.Errorf("seek after truncation: %w", err))
				return
			}
			m.reset("truncated")
		}
	}

	m.readAll()
}

// reopen opens the path fresh and resets position state.
func (m *Monitor) reopen(reason string) error {
	file, err := os.Open(m.path)
	if err != nil {
		return fmt.Errorf("reopen log file: %w", err)
	}
	m.file = file
	m.reset(reason)
	return nil
}

// reset rewinds offset tracking and drops any buffered partial line.
func (m *Monitor) reset(reason string) {
	m.offset = 0
	m.lineBuf.Reset()

	m.mu.Lock()
	m.resets++
	m.offsetSnap = 0
	m.pendingSnap = 0
	m.mu.Unlock()

	m.log.Debug().Str("file", m.path).Str("reason", reason).Msg("Monitor reset to start of file")
}

// readAll pulls from the open handle until EOF, feeding the line buffer and
// delivering completed lines.
func (m *Monitor) readAll() {
	if m.file == nil {
		return
	}
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		n, err := m.file.Read(m.readBuf)
		if n > 0 {
			m.offset += int64(n)
			lines := m.lineBuf.Write(m.readBuf[:n])

			m.mu.Lock()
			m.offsetSnap = m.offset
			m.pendingSnap = m.lineBuf.Pending()
			m.mu.Unlock()

			for _, line := range lines {
				m.handleLine(line)
			}
		}
		if err != nil {
			if err != io.EOF {
				m.reportError(fmt.Errorf("read log file: %w", err))
			}
			return
		}
	}
}

func (m *Monitor) handleLine(line string) {
	m.mu.Lock()
	m.linesRead++
	m.mu.Unlock()

	if strings.TrimSpace(line) == "" {
		return
	}

	ev, err := event.ParseLine(line)
	if err != nil {
		m.mu.Lock()
		m.parseFails++
		m.mu.Unlock()
		m.log.Debug().Str("file", m.path).Err(err).Msg("Skipping unparseable line")
		return
	}

	m.mu.Lock()
	m.delivered++
	m.mu.Unlock()

	// Terminal result events pass through like any other; whether to stop
	// is the consumer's call.
	m.fn(ev)
}

func (m *Monitor) reportError(err error) {
	m.mu.Lock()
	m.lastError = err
	m.mu.Unlock()

	select {
	case m.errorChan <- err:
	default:
		m.log.Error().Err(err).Msg("Error channel full, dropping error")
	}
}

// Watch starts monitoring path with the default configuration, invoking fn
// for each event, and returns an idempotent cleanup function. This is the
// one-call face; use New/Start for configuration or stats.
func Watch(ctx context.Context, path string, fn EventFunc) (func(), error) {
	m, err := New(DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx, fn); err != nil {
		return nil, err
	}
	return m.Stop, nil
}
