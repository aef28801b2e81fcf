// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package feed

import (
	"strings"
	"testing"

	"github.com/noldarim/streamlog/pkg/event"
)

func chunkFromLine(t *testing.T, line string) event.Chunk {
	t.Helper()
	ev, err := event.ParseLine(line)
	if err != nil {
		t.Fatalf("parse line: %v", err)
	}
	c, ok := event.ChunkFromEvent(ev)
	if !ok {
		t.Fatalf("no chunk for line %q", line)
	}
	return c
}

func TestEmptyFeed(t *testing.T) {
	m := New()
	if view := m.View(); view != "" {
		t.Errorf("expected empty view, got %q", view)
	}
	if m.Len() != 0 {
		t.Errorf("expected length 0, got %d", m.Len())
	}
}

func TestAppendAndView(t *testing.T) {
	m := New()
	m = m.Append(chunkFromLine(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"first"}]}}`))
	m = m.Append(chunkFromLine(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"second"}]}}`))

	if m.Len() != 2 {
		t.Fatalf("expected 2 chunks, got %d", m.Len())
	}

	view := m.View()
	first := strings.Index(view, "first")
	second := strings.Index(view, "second")
	if first < 0 || second < 0 {
		t.Fatalf("expected both entries in view, got %q", view)
	}
	if first > second {
		t.Errorf("expected oldest entry first, got %q", view)
	}
}

func TestMaxItems(t *testing.T) {
	m := New().SetMaxItems(2)
	m = m.Append(chunkFromLine(t, `{"type":"assistant","message":{"role":"assistant","content":"one"}}`))
	m = m.Append(chunkFromLine(t, `{"type":"assistant","message":{"role":"assistant","content":"two"}}`))
	m = m.Append(chunkFromLine(t, `{"type":"assistant","message":{"role":"assistant","content":"three"}}`))

	view := m.View()
	if strings.Contains(view, "one") {
		t.Errorf("expected oldest entry dropped from view, got %q", view)
	}
	if !strings.Contains(view, "two") || !strings.Contains(view, "three") {
		t.Errorf("expected newest entries in view, got %q", view)
	}
}

func TestRenderChunk(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		contains []string
	}{
		{
			name:     "content",
			line:     `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"hello there"}]}}`,
			contains: []string{"◦", "hello there"},
		},
		{
			name:     "tool use with file path",
			line:     `{"type":"tool_use","tool_name":"Read","tool_input":{"file_path":"/tmp/a.go"}}`,
			contains: []string{"▸", "Read", "/tmp/a.go"},
		},
		{
			name:     "tool use with command",
			line:     `{"type":"tool_use","tool_name":"Bash","tool_input":{"command":"ls -la"}}`,
			contains: []string{"▸", "Bash", "ls -la"},
		},
		{
			name:     "tool result success",
			line:     `{"type":"tool_result","tool_name":"Bash","output":"3 files"}`,
			contains: []string{"✓", "3 files"},
		},
		{
			name:     "tool result success without output",
			line:     `{"type":"tool_result","tool_name":"Write"}`,
			contains: []string{"✓", "done"},
		},
		{
			name:     "tool result failure",
			line:     `{"type":"tool_result","tool_name":"Bash","output":"exit 1","is_error":true}`,
			contains: []string{"✗", "exit 1"},
		},
		{
			name:     "error",
			line:     `{"type":"error","error":"stream broke"}`,
			contains: []string{"!", "stream broke"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := RenderChunk(chunkFromLine(t, tt.line), 0)
			for _, want := range tt.contains {
				if !strings.Contains(entry, want) {
					t.Errorf("expected entry to contain %q, got %q", want, entry)
				}
			}
		})
	}
}

func TestRenderChunk_FlattensMultilineText(t *testing.T) {
	c := chunkFromLine(t, `{"type":"tool_result","tool_name":"Bash","output":"line one\nline two"}`)
	entry := RenderChunk(c, 0)
	if strings.Contains(entry, "\n") {
		t.Errorf("expected single-line entry, got %q", entry)
	}
	if !strings.Contains(entry, "line one line two") {
		t.Errorf("expected flattened output, got %q", entry)
	}
}

func TestRenderChunk_ClipsLongPreviews(t *testing.T) {
	long := strings.Repeat("x", 300)
	c := chunkFromLine(t, `{"type":"tool_result","tool_name":"Bash","output":"`+long+`"}`)
	entry := RenderChunk(c, 0)
	if strings.Contains(entry, long) {
		t.Errorf("expected long output clipped, got %d chars", len(entry))
	}
	if !strings.Contains(entry, "...") {
		t.Errorf("expected ellipsis on clipped output, got %q", entry)
	}
}

func TestInputPreview(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "file path wins",
			input:    `{"file_path":"/tmp/a.go","command":"ignored"}`,
			expected: "/tmp/a.go",
		},
		{
			name:     "command fallback",
			input:    `{"command":"go test ./..."}`,
			expected: "go test ./...",
		},
		{
			name:     "pattern fallback",
			input:    `{"pattern":"func main"}`,
			expected: "func main",
		},
		{
			name:     "unknown fields fall back to raw",
			input:    `{"query":"select 1"}`,
			expected: `{"query":"select 1"}`,
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inputPreview([]byte(tt.input))
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("expected %q unchanged, got %q", "short", got)
	}
	if got := clip("0123456789", 8); got != "01234..." {
		t.Errorf("expected clipped string, got %q", got)
	}
}
