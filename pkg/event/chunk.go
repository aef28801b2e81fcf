// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

// ChunkKind classifies a display chunk.
type ChunkKind string

const (
	ChunkContent    ChunkKind = "content"
	ChunkError      ChunkKind = "error"
	ChunkToolUse    ChunkKind = "tool_use"
	ChunkToolResult ChunkKind = "tool_result"
)

// Chunk is the simplified projection of an Event for streaming display:
// assistant text and errors flattened to strings, tool activity passed
// through with the source event attached for consumers that want the
// full detail.
type Chunk struct {
	Kind      ChunkKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`

	// Event is the unmodified source event. Populated on the pass-through
	// kinds; not serialized, consumers on the wire get the event itself.
	Event Event `json:"-"`
}

// ChunkFromEvent projects an event to its display chunk. The second return
// is false when the event has no projection: system events, successful
// results, assistant messages with no text, and unknown types produce
// nothing. Deterministic, no I/O.
func ChunkFromEvent(e Event) (Chunk, bool) {
	switch e.Type {
	case TypeAssistant:
		text := e.AssistantText()
		if text == "" {
			return Chunk{}, false
		}
		c := Chunk{Kind: ChunkContent, Text: text, SessionID: e.SessionID}
		if e.Message != nil {
			c.MessageID = e.Message.ID
		}
		return c, true

	case TypeError:
		return Chunk{Kind: ChunkError, Text: e.Error, SessionID: e.SessionID}, true

	case TypeResult:
		if e.Subtype != SubtypeError {
			return Chunk{}, false
		}
		return Chunk{Kind: ChunkError, Text: e.ErrorMessage(), SessionID: e.SessionID}, true

	case TypeToolUse:
		return Chunk{Kind: ChunkToolUse, ToolName: e.ToolName, SessionID: e.SessionID, Event: e}, true

	case TypeToolResult:
		return Chunk{Kind: ChunkToolResult, ToolName: e.ToolName, Text: e.OutputText(), SessionID: e.SessionID, Event: e}, true
	}
	return Chunk{}, false
}
