// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates_ExactlyOnePerKnownType(t *testing.T) {
	known := []Type{TypeSystem, TypeAssistant, TypeToolUse, TypeToolResult, TypeError, TypeResult}

	for _, typ := range known {
		ev := Event{Type: typ}
		require.True(t, ev.KnownType(), "type %s", typ)

		matches := 0
		for _, pred := range []bool{
			ev.IsSystem(), ev.IsAssistant(), ev.IsToolUse(),
			ev.IsToolResult(), ev.IsErrorEvent(), ev.IsResult(),
		} {
			if pred {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "type %s", typ)
	}

	unknown := Event{Type: "telemetry"}
	assert.False(t, unknown.KnownType())
	assert.False(t, unknown.IsSystem())
	assert.False(t, unknown.IsTerminal())
}

func TestAssistantText_SkipsNonTextBlocks(t *testing.T) {
	ev := Event{
		Type: TypeAssistant,
		Message: &Message{
			Role: "assistant",
			Content: []ContentBlock{
				{Type: "thinking", Thinking: "let me see"},
				{Type: "text", Text: "first"},
				{Type: "tool_use", Name: "Bash", Input: json.RawMessage(`{}`)},
				{Type: "text", Text: " second"},
			},
		},
	}
	assert.Equal(t, "first second", ev.AssistantText())
}

func TestAssistantText_EmptyCases(t *testing.T) {
	assert.Empty(t, Event{Type: TypeSystem}.AssistantText())
	assert.Empty(t, Event{Type: TypeAssistant}.AssistantText())
	assert.Empty(t, Event{Type: TypeAssistant, Message: &Message{}}.AssistantText())
	assert.Empty(t, Event{Type: TypeResult, Message: &Message{
		Content: []ContentBlock{{Type: "text", Text: "ignored"}},
	}}.AssistantText())
}

func TestErrorMessage_ResultWithoutText(t *testing.T) {
	ev := Event{Type: TypeResult, Subtype: SubtypeError}
	assert.Equal(t, "session ended with error", ev.ErrorMessage())

	ok := Event{Type: TypeResult, Subtype: SubtypeSuccess, Result: "done"}
	assert.Empty(t, ok.ErrorMessage())
}

func TestFailed_ToolResultFlag(t *testing.T) {
	assert.True(t, Event{Type: TypeToolResult, IsError: true}.Failed())
	assert.False(t, Event{Type: TypeToolResult}.Failed())
	assert.False(t, Event{Type: TypeAssistant}.Failed())
}

func TestOutputText_Cases(t *testing.T) {
	assert.Empty(t, Event{Type: TypeToolResult}.OutputText())
	assert.Empty(t, Event{Type: TypeToolResult, Output: json.RawMessage(`null`)}.OutputText())
	assert.Equal(t, "plain", Event{Type: TypeToolResult, Output: json.RawMessage(`"plain"`)}.OutputText())
	assert.Equal(t, `[1,2,3]`, Event{Type: TypeToolResult, Output: json.RawMessage(`[1, 2, 3]`)}.OutputText())
}

func TestEvent_RoundTrip(t *testing.T) {
	src := Event{
		Type:      TypeAssistant,
		SessionID: "session-123",
		Message: &Message{
			ID:    "msg-1",
			Role:  "assistant",
			Model: "claude-opus-4-5-20251101",
			Content: []ContentBlock{
				{Type: "text", Text: "hello"},
				{Type: "tool_use", ID: "t1", Name: "Bash", Input: json.RawMessage(`{"command":"ls"}`)},
			},
			Usage: &Usage{InputTokens: 10, OutputTokens: 5},
		},
	}

	data, err := json.Marshal(src)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, src.Type, back.Type)
	assert.Equal(t, src.SessionID, back.SessionID)
	require.NotNil(t, back.Message)
	assert.Equal(t, src.Message.ID, back.Message.ID)
	require.Len(t, back.Message.Content, 2)
	assert.Equal(t, "hello", back.Message.Content[0].Text)
	assert.Equal(t, "Bash", back.Message.Content[1].Name)
	require.NotNil(t, back.Message.Usage)
	assert.Equal(t, 10, back.Message.Usage.InputTokens)
}

func TestResultEvent_RoundTrip(t *testing.T) {
	src := Event{
		Type:       TypeResult,
		Subtype:    SubtypeSuccess,
		SessionID:  "s1",
		CostUSD:    0.001,
		TotalCost:  0.004,
		DurationMS: 1200,
		NumTurns:   2,
	}

	data, err := json.Marshal(src)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, src, back)
}
