// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logfile reads stream-json transcript files from disk: whole-file
// parsing into an aggregate ParsedLog, lazy line/event sequences for large
// files, constant-memory summaries, and a cheap validity sniff.
//
// Malformed content is never fatal anywhere in this package; only I/O
// failures are. A log being written concurrently parses fine, the trailing
// partial line is simply not an event yet.
package logfile

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/noldarim/streamlog/pkg/event"
)

// ParsedLog is the full aggregate view of one transcript file.
type ParsedLog struct {
	// Events holds every event that parsed, in file order. Unknown-type
	// events are included; invalid lines contribute nothing.
	Events []event.Event `json:"events"`

	// Chunks is the ordered display projection of Events.
	Chunks []event.Chunk `json:"chunks,omitempty"`

	// SessionID is resolved by class priority: the first non-empty id on a
	// system event wins, then assistant, then result, then anything else.
	SessionID string `json:"session_id,omitempty"`

	// Content is every assistant text, in order, joined with newlines.
	Content string `json:"content,omitempty"`

	// Messages holds one entry per assistant event that produced text.
	Messages []Message `json:"messages,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// Message is a display reconstruction of one assistant message. The wire
// format carries no timestamps, so Timestamp records when the file was
// parsed.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Metadata aggregates the session-level fields scattered across events.
type Metadata struct {
	// TotalCost is the last non-zero cost reported by a result event,
	// preferring the cumulative total over the per-turn figure.
	TotalCost float64 `json:"total_cost,omitempty"`

	// DurationMS is the last non-zero duration from a result event.
	DurationMS int64 `json:"duration_ms,omitempty"`

	// Turns is the last non-zero turn count from a result event.
	Turns int `json:"turns,omitempty"`

	// Model is the first model name seen, whether announced by the system
	// event or carried on an assistant message.
	Model string `json:"model,omitempty"`

	// ToolsUsed lists tool names in order of first use; nil when the
	// session used no tools.
	ToolsUsed []string `json:"tools_used,omitempty"`
}

// Summary is the constant-memory projection of a transcript: counters only,
// no events retained. Unlike ParsedLog, its session id is simply the first
// non-empty one in file order, with no class priority.
type Summary struct {
	SessionID         string  `json:"session_id,omitempty"`
	EventCount        int     `json:"event_count"`
	AssistantMessages int     `json:"assistant_messages"`
	HasErrors         bool    `json:"has_errors"`
	TotalCost         float64 `json:"total_cost,omitempty"`
	DurationMS        int64   `json:"duration_ms,omitempty"`
}

// accumulator folds events into a ParsedLog one at a time.
type accumulator struct {
	log      ParsedLog
	texts    []string
	tools    []string
	parsedAt time.Time

	sysSID, asstSID, resSID, anySID string
}

func newAccumulator() *accumulator {
	return &accumulator{parsedAt: time.Now()}
}

func (a *accumulator) add(ev event.Event) {
	a.log.Events = append(a.log.Events, ev)

	if chunk, ok := event.ChunkFromEvent(ev); ok {
		a.log.Chunks = append(a.log.Chunks, chunk)
	}

	if sid := ev.SessionID; sid != "" {
		switch ev.Type {
		case event.TypeSystem:
			if a.sysSID == "" {
				a.sysSID = sid
			}
		case event.TypeAssistant:
			if a.asstSID == "" {
				a.asstSID = sid
			}
		case event.TypeResult:
			if a.resSID == "" {
				a.resSID = sid
			}
		default:
			if a.anySID == "" {
				a.anySID = sid
			}
		}
	}

	switch ev.Type {
	case event.TypeSystem:
		if a.log.Metadata.Model == "" {
			a.log.Metadata.Model = ev.Model
		}

	case event.TypeAssistant:
		if ev.Message != nil && a.log.Metadata.Model == "" {
			a.log.Metadata.Model = ev.Message.Model
		}
		if text := ev.AssistantText(); text != "" {
			a.texts = append(a.texts, text)
			role := "assistant"
			if ev.Message != nil && ev.Message.Role != "" {
				role = ev.Message.Role
			}
			a.log.Messages = append(a.log.Messages, Message{
				Role:      role,
				Content:   text,
				SessionID: ev.SessionID,
				Timestamp: a.parsedAt,
			})
		}
		if ev.Message != nil {
			for _, block := range ev.Message.Content {
				if block.Type == "tool_use" && block.Name != "" {
					a.tools = append(a.tools, block.Name)
				}
			}
		}

	case event.TypeToolUse:
		if ev.ToolName != "" {
			a.tools = append(a.tools, ev.ToolName)
		}

	case event.TypeResult:
		if cost := ev.ResolvedCost(); cost != 0 {
			a.log.Metadata.TotalCost = cost
		}
		if ev.DurationMS != 0 {
			a.log.Metadata.DurationMS = ev.DurationMS
		}
		if ev.NumTurns != 0 {
			a.log.Metadata.Turns = ev.NumTurns
		}
	}
}

func (a *accumulator) finish() *ParsedLog {
	switch {
	case a.sysSID != "":
		a.log.SessionID = a.sysSID
	case a.asstSID != "":
		a.log.SessionID = a.asstSID
	case a.resSID != "":
		a.log.SessionID = a.resSID
	default:
		a.log.SessionID = a.anySID
	}

	a.log.Content = strings.Join(a.texts, "\n")
	if len(a.tools) > 0 {
		a.log.Metadata.ToolsUsed = lo.Uniq(a.tools)
	}
	return &a.log
}
