// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noldarim/streamlog/internal/tui/feed"
	"github.com/noldarim/streamlog/pkg/event"
)

// eventMsg carries one monitored event into the program.
type eventMsg struct {
	event event.Event
}

// streamDoneMsg signals that the event stream has closed.
type streamDoneMsg struct{}

// streamErrMsg carries a monitor runtime error. These are reported in the
// footer, never fatal.
type streamErrMsg struct {
	err error
}

// sessionInfo is the header state accumulated from events as they arrive.
type sessionInfo struct {
	sessionID  string
	model      string
	cost       float64
	durationMS int64
	turns      int
}

// resultBanner is the terminal-event banner. The stream keeps running after
// a result; the banner reflects the most recent one.
type resultBanner struct {
	seen    bool
	failed  bool
	message string
}

// Model is the live session viewer: a header of session facts, a scrolling
// chunk feed, and a result banner once the session reports a terminal event.
type Model struct {
	path string

	info   sessionInfo
	banner resultBanner

	feed     feed.Model
	viewport viewport.Model
	spinner  spinner.Model

	eventCount int
	lastErr    string

	width  int
	height int
	ready  bool
	done   bool
}

// NewModel creates the viewer model for one transcript file.
func NewModel(path string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		path:     path,
		feed:     feed.New(),
		viewport: viewport.New(80, 20),
		spinner:  s,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// absorb folds one event into the viewer state: header facts from system,
// assistant, and result events; a feed entry when the event projects to a
// display chunk.
func (m *Model) absorb(ev event.Event) {
	m.eventCount++

	if m.info.sessionID == "" && ev.SessionID != "" {
		m.info.sessionID = ev.SessionID
	}

	switch ev.Type {
	case event.TypeSystem:
		if m.info.model == "" {
			m.info.model = ev.Model
		}

	case event.TypeAssistant:
		if m.info.model == "" && ev.Message != nil {
			m.info.model = ev.Message.Model
		}

	case event.TypeResult:
		if cost := ev.ResolvedCost(); cost != 0 {
			m.info.cost = cost
		}
		if ev.DurationMS != 0 {
			m.info.durationMS = ev.DurationMS
		}
		if ev.NumTurns != 0 {
			m.info.turns = ev.NumTurns
		}
		m.banner.seen = true
		m.banner.failed = ev.Subtype == event.SubtypeError
		m.banner.message = ev.ErrorMessage()
	}

	if chunk, ok := event.ChunkFromEvent(ev); ok {
		m.feed = m.feed.Append(chunk)
		m.refreshFeed()
	}
}

// refreshFeed pushes the feed into the viewport, following the tail unless
// the user has scrolled up.
func (m *Model) refreshFeed() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.feed.View())
	if follow {
		m.viewport.GotoBottom()
	}
}

// setSize lays the screen out: header and footer keep fixed rows, the
// viewport takes the rest.
func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height

	m.feed = m.feed.SetWidth(width)

	viewportHeight := height - m.chromeHeight()
	if viewportHeight < 3 {
		viewportHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = viewportHeight

	m.refreshFeed()
	m.ready = true
}

// chromeHeight counts the non-viewport rows: header block, footer, and the
// banner and error lines when present.
func (m Model) chromeHeight() int {
	h := 4 // two header lines, blank separator, footer
	if m.banner.seen {
		h++
	}
	if m.lastErr != "" {
		h++
	}
	return h
}
