// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package event defines the wire model for the stream-json event protocol:
// newline-delimited JSON where each line is one event object discriminated by
// a top-level "type" field. This package is pure data and parsing; it has no
// dependencies beyond the standard library so it can be imported anywhere.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Type discriminates event variants on the wire.
type Type string

const (
	TypeSystem     Type = "system"      // session bootstrap: session id, model, available tools
	TypeAssistant  Type = "assistant"   // assistant message with content blocks
	TypeToolUse    Type = "tool_use"    // tool invocation
	TypeToolResult Type = "tool_result" // tool output
	TypeError      Type = "error"       // stream-level error
	TypeResult     Type = "result"      // terminal summary: cost, duration, turns
)

// Subtype values seen on system and result events.
const (
	SubtypeInit    = "init"
	SubtypeSuccess = "success"
	SubtypeError   = "error"
)

// Event is a single decoded stream-json line. It is a flat tagged union:
// Type selects the variant and the remaining fields are populated per
// variant, zero otherwise. Events with an unrecognized Type are preserved
// rather than rejected; Raw always carries the source line for passthrough.
type Event struct {
	Type      Type   `json:"type"`
	Subtype   string `json:"subtype,omitempty"`    // "init" on system, "success"/"error" on result
	SessionID string `json:"session_id,omitempty"` // optional on every variant

	// system
	Model string   `json:"model,omitempty"`
	Tools []string `json:"tools,omitempty"`
	CWD   string   `json:"cwd,omitempty"`

	// assistant
	Message *Message `json:"message,omitempty"`

	// tool_use / tool_result
	ToolName  string          `json:"tool_name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Input     json.RawMessage `json:"tool_input,omitempty"`
	Output    json.RawMessage `json:"output,omitempty"` // string or structured value
	IsError   bool            `json:"is_error,omitempty"`

	// error
	Error string `json:"error,omitempty"`

	// result
	Result     string  `json:"result,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	TotalCost  float64 `json:"total_cost,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	NumTurns   int     `json:"num_turns,omitempty"`

	// Raw is the trimmed source line, kept verbatim so unknown event types
	// and raw-mode consumers lose nothing in transit.
	Raw json.RawMessage `json:"-"`
}

// Message is an assistant message payload.
type Message struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type,omitempty"` // "message"
	Role       string         `json:"role,omitempty"`
	Model      string         `json:"model,omitempty"`
	Content    []ContentBlock `json:"-"` // custom unmarshaling handles both string and array
	StopReason *string        `json:"stop_reason,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
}

// UnmarshalJSON handles the variable content format: the wire value is
// either a plain string or an array of content blocks. A string decodes to
// a single text block.
func (m *Message) UnmarshalJSON(data []byte) error {
	// Alias avoids infinite recursion through this method.
	type MessageAlias Message
	type messageWithRawContent struct {
		MessageAlias
		Content json.RawMessage `json:"content"`
	}

	var raw messageWithRawContent
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}
	*m = Message(raw.MessageAlias)

	if len(raw.Content) == 0 || bytes.Equal(raw.Content, []byte("null")) {
		m.Content = nil
		return nil
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(raw.Content, &blocks); err == nil {
		m.Content = blocks
		return nil
	}

	var text string
	if err := json.Unmarshal(raw.Content, &text); err == nil {
		m.Content = []ContentBlock{{Type: "text", Text: text}}
		return nil
	}

	return fmt.Errorf("message content is neither array nor string: %s", truncate(raw.Content, 100))
}

// MarshalJSON re-emits Content under its wire name so messages round-trip.
func (m Message) MarshalJSON() ([]byte, error) {
	type MessageAlias Message
	return json.Marshal(struct {
		MessageAlias
		Content []ContentBlock `json:"content,omitempty"`
	}{MessageAlias(m), m.Content})
}

// ContentBlock is a single block inside an assistant message.
type ContentBlock struct {
	Type string `json:"type"` // "text", "tool_use", "tool_result", "thinking"

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"` // string or structured content
	IsError   bool            `json:"is_error,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`
}

// Usage contains token counts reported on assistant messages.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

// IsSystem reports whether the event is a session bootstrap event.
func (e Event) IsSystem() bool { return e.Type == TypeSystem }

// IsAssistant reports whether the event carries an assistant message.
func (e Event) IsAssistant() bool { return e.Type == TypeAssistant }

// IsToolUse reports whether the event is a tool invocation.
func (e Event) IsToolUse() bool { return e.Type == TypeToolUse }

// IsToolResult reports whether the event is a tool output.
func (e Event) IsToolResult() bool { return e.Type == TypeToolResult }

// IsErrorEvent reports whether the event is a stream-level error.
func (e Event) IsErrorEvent() bool { return e.Type == TypeError }

// IsResult reports whether the event is a terminal result summary.
func (e Event) IsResult() bool { return e.Type == TypeResult }

// IsTerminal reports whether the event marks the end of a session turn.
// Result events are terminal; a session may still continue past one, so
// consumers decide for themselves whether to stop.
func (e Event) IsTerminal() bool { return e.Type == TypeResult }

// KnownType reports whether Type is one of the six recognized variants.
func (e Event) KnownType() bool {
	switch e.Type {
	case TypeSystem, TypeAssistant, TypeToolUse, TypeToolResult, TypeError, TypeResult:
		return true
	}
	return false
}

// AssistantText returns the concatenation, in array order, of every text
// block in an assistant event's message. Empty for all other variants.
func (e Event) AssistantText() string {
	if e.Type != TypeAssistant || e.Message == nil {
		return ""
	}
	var buf bytes.Buffer
	for _, block := range e.Message.Content {
		if block.Type == "text" {
			buf.WriteString(block.Text)
		}
	}
	return buf.String()
}

// ErrorMessage returns the human-readable error carried by an error event,
// or the result text of a failed result event. Empty otherwise.
func (e Event) ErrorMessage() string {
	switch {
	case e.Type == TypeError:
		return e.Error
	case e.Type == TypeResult && e.Subtype == SubtypeError:
		if e.Result != "" {
			return e.Result
		}
		return "session ended with error"
	}
	return ""
}

// Failed reports whether the event represents an error condition: an error
// event, an errored result, or a tool result flagged as an error.
func (e Event) Failed() bool {
	switch e.Type {
	case TypeError:
		return true
	case TypeResult:
		return e.Subtype == SubtypeError
	case TypeToolResult:
		return e.IsError
	}
	return false
}

// ResolvedCost returns the cost a result event reports, preferring the
// cumulative total_cost over the per-turn cost_usd when both are present.
func (e Event) ResolvedCost() float64 {
	if e.TotalCost != 0 {
		return e.TotalCost
	}
	return e.CostUSD
}

// OutputText renders a tool_result's output for display: a JSON string
// decodes to itself, anything structured stays compact JSON.
func (e Event) OutputText() string {
	return rawToText(e.Output)
}

// rawToText converts a raw JSON value to display text. Used for tool
// outputs, which are a string or an arbitrary structured value.
func rawToText(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
