// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case eventMsg:
		m.absorb(msg.event)
		// Banner or error lines change the layout, so re-derive it.
		if m.ready {
			m.setSize(m.width, m.height)
		}
		return m, nil

	case streamDoneMsg:
		m.done = true
		return m, nil

	case streamErrMsg:
		m.lastErr = msg.err.Error()
		if m.ready {
			m.setSize(m.width, m.height)
		}
		return m, nil

	case spinner.TickMsg:
		// The spinner only animates while waiting for the first event.
		if m.eventCount == 0 && !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}
