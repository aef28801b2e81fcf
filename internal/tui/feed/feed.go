// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package feed renders display chunks as a styled terminal feed: assistant
// text, tool activity, and errors, one entry per chunk. It is shared by the
// live TUI viewer and the CLI watch command.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/noldarim/streamlog/pkg/event"
)

// previewLimit bounds tool input/output previews to keep entries on one line.
const previewLimit = 80

var (
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	toolStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	outputStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

// Model accumulates chunks and renders them oldest first.
type Model struct {
	chunks   []event.Chunk
	maxItems int
	width    int
}

// New creates an empty feed that renders every chunk it holds.
func New() Model {
	return Model{}
}

// SetMaxItems caps how many chunks View renders, dropping the oldest.
// Zero means no cap.
func (m Model) SetMaxItems(n int) Model {
	m.maxItems = n
	return m
}

// SetWidth sets the wrap width for content entries. Zero disables wrapping.
func (m Model) SetWidth(w int) Model {
	m.width = w
	return m
}

// Append adds a chunk to the feed.
func (m Model) Append(c event.Chunk) Model {
	m.chunks = append(m.chunks, c)
	return m
}

// Len returns the number of accumulated chunks.
func (m Model) Len() int {
	return len(m.chunks)
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the feed, one entry per chunk.
func (m Model) View() string {
	if len(m.chunks) == 0 {
		return ""
	}

	start := 0
	if m.maxItems > 0 && len(m.chunks) > m.maxItems {
		start = len(m.chunks) - m.maxItems
	}

	lines := make([]string, 0, len(m.chunks)-start)
	for _, c := range m.chunks[start:] {
		lines = append(lines, RenderChunk(c, m.width))
	}
	return strings.Join(lines, "\n")
}

// RenderChunk renders a single chunk as one styled feed entry. width wraps
// content text; zero disables wrapping.
func RenderChunk(c event.Chunk, width int) string {
	switch c.Kind {
	case event.ChunkContent:
		line := noteStyle.Render("◦") + " " + outputStyle.Render(strings.TrimSpace(c.Text))
		if width > 0 {
			return lipgloss.NewStyle().Width(width).Render(line)
		}
		return line

	case event.ChunkToolUse:
		icon := toolStyle.Render("▸")
		name := toolStyle.Render(c.ToolName)
		detail := ""
		if p := inputPreview(c.Event.Input); p != "" {
			detail = " " + dimStyle.Render(clip(flatten(p), previewLimit))
		}
		return fmt.Sprintf("%s %s%s", icon, name, detail)

	case event.ChunkToolResult:
		if c.Event.Failed() {
			msg := clip(flatten(c.Text), previewLimit)
			if msg == "" {
				msg = "tool failed"
			}
			return failStyle.Render("✗") + " " + failStyle.Render(msg)
		}
		out := clip(flatten(c.Text), previewLimit)
		if out == "" {
			out = "done"
		}
		return successStyle.Render("✓") + " " + dimStyle.Render(out)

	case event.ChunkError:
		return failStyle.Render("!") + " " + failStyle.Render(flatten(c.Text))
	}

	return dimStyle.Render(flatten(c.Text))
}

// inputPreview extracts a short human hint from a tool input payload: the
// first populated well-known field, else the raw JSON.
func inputPreview(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var fields struct {
		FilePath    string `json:"file_path"`
		Path        string `json:"path"`
		Command     string `json:"command"`
		Pattern     string `json:"pattern"`
		Description string `json:"description"`
		URL         string `json:"url"`
	}
	if err := json.Unmarshal(raw, &fields); err == nil {
		for _, s := range []string{fields.FilePath, fields.Path, fields.Command, fields.Pattern, fields.Description, fields.URL} {
			if s != "" {
				return s
			}
		}
	}
	return string(raw)
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
