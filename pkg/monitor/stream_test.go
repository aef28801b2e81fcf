// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/streamlog/pkg/event"
)

func fastConfig(path string) Config {
	cfg := DefaultConfig(path)
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func TestOpenStream_DeliversInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeFile(t, path, assistantLine(t, 0))

	s, err := OpenStream(context.Background(), fastConfig(path))
	require.NoError(t, err)
	defer s.Cleanup()

	events := collectN(t, s.Events(), 1, 2*time.Second)
	assert.Equal(t, "message 0", events[0].AssistantText())

	appendFile(t, path, assistantLine(t, 1), assistantLine(t, 2))
	events = collectN(t, s.Events(), 2, 2*time.Second)
	assert.Equal(t, "message 1", events[0].AssistantText())
	assert.Equal(t, "message 2", events[1].AssistantText())
}

func TestOpenStream_CleanupClosesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeFile(t, path, assistantLine(t, 0))

	s, err := OpenStream(context.Background(), fastConfig(path))
	require.NoError(t, err)

	collectN(t, s.Events(), 1, 2*time.Second)

	s.Cleanup()
	s.Cleanup() // second call is a no-op

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok, "events channel should be closed after cleanup")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close after cleanup")
	}

	assert.False(t, s.Stats().Running)
}

func TestOpenStream_ConsumerBreaksAfterResult(t *testing.T) {
	// The idiomatic consumption pattern: range until the terminal event,
	// break, then release the subscription with Cleanup.
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeFile(t, path,
		assistantLine(t, 0),
		eventLine(t, map[string]interface{}{
			"type": "result", "subtype": "success", "session_id": "session-1", "num_turns": 1,
		}),
	)

	s, err := OpenStream(context.Background(), fastConfig(path))
	require.NoError(t, err)
	defer s.Cleanup()

	var seen []event.Event
	deadline := time.After(3 * time.Second)
loop:
	for {
		select {
		case ev := <-s.Events():
			seen = append(seen, ev)
			if ev.IsTerminal() {
				break loop
			}
		case <-deadline:
			t.Fatal("terminal event never arrived")
		}
	}

	require.Len(t, seen, 2)
	s.Cleanup()

	// After cleanup the monitor is released even though more content
	// arrives.
	appendFile(t, path, assistantLine(t, 9))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, s.Stats().Running)
}

func TestOpenStream_MissingFile(t *testing.T) {
	_, err := OpenStream(context.Background(), fastConfig(filepath.Join(t.TempDir(), "absent.jsonl")))
	require.Error(t, err)
}

func TestOpenStream_SlowConsumerDoesNotLoseEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")

	// More lines than the stream buffer holds: the monitor must block and
	// resume rather than drop.
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = assistantLine(t, i)
	}
	writeFile(t, path, lines...)

	cfg := fastConfig(path)
	cfg.BufferSize = 4

	s, err := OpenStream(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Cleanup()

	var got []event.Event
	deadline := time.After(10 * time.Second)
	for len(got) < len(lines) {
		select {
		case ev := <-s.Events():
			got = append(got, ev)
			time.Sleep(2 * time.Millisecond) // lag behind the producer
		case <-deadline:
			t.Fatalf("timeout: got %d of %d events", len(got), len(lines))
		}
	}

	for i, ev := range got {
		assert.Equal(t, lines[i], string(ev.Raw), "event %d mismatched", i)
	}
}

func TestOpenChunkStream_ProjectsAndDrops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeFile(t, path,
		// No chunk projection: system and successful result produce nothing.
		eventLine(t, map[string]interface{}{"type": "system", "subtype": "init", "session_id": "s1"}),
		assistantLine(t, 0),
		eventLine(t, map[string]interface{}{"type": "tool_use", "tool_name": "Bash", "session_id": "s1"}),
		eventLine(t, map[string]interface{}{"type": "error", "error": "boom", "session_id": "s1"}),
		eventLine(t, map[string]interface{}{"type": "result", "subtype": "success", "session_id": "s1"}),
	)

	s, err := OpenChunkStream(context.Background(), fastConfig(path))
	require.NoError(t, err)
	defer s.Cleanup()

	var chunks []event.Chunk
	deadline := time.After(3 * time.Second)
	for len(chunks) < 3 {
		select {
		case c := <-s.Chunks():
			chunks = append(chunks, c)
		case <-deadline:
			t.Fatalf("timeout: got %d of 3 chunks", len(chunks))
		}
	}

	assert.Equal(t, event.ChunkContent, chunks[0].Kind)
	assert.Equal(t, "message 0", chunks[0].Text)
	assert.Equal(t, event.ChunkToolUse, chunks[1].Kind)
	assert.Equal(t, "Bash", chunks[1].ToolName)
	assert.Equal(t, event.ChunkError, chunks[2].Kind)
	assert.Equal(t, "boom", chunks[2].Text)

	select {
	case c := <-s.Chunks():
		t.Fatalf("unexpected extra chunk: %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOpenChunkStream_CleanupClosesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	writeFile(t, path, assistantLine(t, 0))

	s, err := OpenChunkStream(context.Background(), fastConfig(path))
	require.NoError(t, err)

	select {
	case <-s.Chunks():
	case <-time.After(2 * time.Second):
		t.Fatal("chunk never arrived")
	}

	s.Cleanup()
	s.Cleanup()

	select {
	case _, ok := <-s.Chunks():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("chunk channel did not close after cleanup")
	}
}
