// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	pathStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	bannerOKStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("35"))
	bannerFailStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	if !m.ready {
		return "initializing..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")

	if m.feed.Len() == 0 {
		b.WriteString(m.waitingView())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	if m.banner.seen {
		b.WriteString(m.bannerView())
		b.WriteString("\n")
	}
	if m.lastErr != "" {
		b.WriteString(errLineStyle.Render("! monitor: " + m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString(m.footerView())
	return b.String()
}

// headerView renders the title line and the session facts line. Facts fill
// in as events carrying them arrive.
func (m Model) headerView() string {
	title := titleStyle.Render("streamlog") + " " + pathStyle.Render(m.path)

	var parts []string
	if m.info.sessionID != "" {
		parts = append(parts, "session "+m.info.sessionID)
	}
	if m.info.model != "" {
		parts = append(parts, m.info.model)
	}
	if m.info.cost != 0 {
		parts = append(parts, fmt.Sprintf("$%.4f", m.info.cost))
	}
	if m.info.turns != 0 {
		parts = append(parts, plural(m.info.turns, "turn"))
	}

	facts := "waiting for session info"
	if len(parts) > 0 {
		facts = strings.Join(parts, " · ")
	}
	return title + "\n" + dimStyle.Render(facts)
}

func (m Model) waitingView() string {
	if m.done {
		return dimStyle.Render("stream closed, no activity recorded")
	}
	if m.eventCount == 0 {
		return m.spinner.View() + " " + dimStyle.Render("waiting for events")
	}
	return dimStyle.Render("session active, no displayable output yet")
}

func (m Model) bannerView() string {
	if m.banner.failed {
		msg := m.banner.message
		if msg == "" {
			msg = "session failed"
		}
		return bannerFailStyle.Render("✗ " + msg)
	}

	duration := time.Duration(m.info.durationMS) * time.Millisecond
	return bannerOKStyle.Render(fmt.Sprintf("✓ session complete · $%.4f · %s · %s",
		m.info.cost, duration, plural(m.info.turns, "turn")))
}

func (m Model) footerView() string {
	hints := "q quit · ↑/↓ scroll"
	if m.done {
		hints = "stream closed · " + hints
	}
	return dimStyle.Render(hints)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
