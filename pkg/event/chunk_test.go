// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFromEvent_Content(t *testing.T) {
	ev := Event{
		Type:      TypeAssistant,
		SessionID: "s1",
		Message: &Message{
			ID:      "msg-1",
			Content: []ContentBlock{{Type: "text", Text: "hi there"}},
		},
	}

	chunk, ok := ChunkFromEvent(ev)
	require.True(t, ok)
	assert.Equal(t, ChunkContent, chunk.Kind)
	assert.Equal(t, "hi there", chunk.Text)
	assert.Equal(t, "s1", chunk.SessionID)
	assert.Equal(t, "msg-1", chunk.MessageID)
}

func TestChunkFromEvent_EmptyAssistantDropped(t *testing.T) {
	ev := Event{
		Type:    TypeAssistant,
		Message: &Message{Content: []ContentBlock{{Type: "tool_use", Name: "Bash"}}},
	}
	_, ok := ChunkFromEvent(ev)
	assert.False(t, ok)
}

func TestChunkFromEvent_Error(t *testing.T) {
	chunk, ok := ChunkFromEvent(Event{Type: TypeError, Error: "boom", SessionID: "s1"})
	require.True(t, ok)
	assert.Equal(t, ChunkError, chunk.Kind)
	assert.Equal(t, "boom", chunk.Text)
}

func TestChunkFromEvent_FailedResult(t *testing.T) {
	chunk, ok := ChunkFromEvent(Event{Type: TypeResult, Subtype: SubtypeError, Result: "limit hit"})
	require.True(t, ok)
	assert.Equal(t, ChunkError, chunk.Kind)
	assert.Equal(t, "limit hit", chunk.Text)
}

func TestChunkFromEvent_ToolPassThrough(t *testing.T) {
	use := Event{Type: TypeToolUse, ToolName: "Bash", Input: json.RawMessage(`{"command":"ls"}`)}
	chunk, ok := ChunkFromEvent(use)
	require.True(t, ok)
	assert.Equal(t, ChunkToolUse, chunk.Kind)
	assert.Equal(t, "Bash", chunk.ToolName)
	assert.Equal(t, use.Input, chunk.Event.Input)

	res := Event{Type: TypeToolResult, ToolName: "Bash", Output: json.RawMessage(`"ok"`)}
	chunk, ok = ChunkFromEvent(res)
	require.True(t, ok)
	assert.Equal(t, ChunkToolResult, chunk.Kind)
	assert.Equal(t, "ok", chunk.Text)
}

func TestChunkFromEvent_NoProjection(t *testing.T) {
	for _, ev := range []Event{
		{Type: TypeSystem, SessionID: "s1"},
		{Type: TypeResult, Subtype: SubtypeSuccess},
		{Type: "telemetry"},
	} {
		_, ok := ChunkFromEvent(ev)
		assert.False(t, ok, "type %s", ev.Type)
	}
}
