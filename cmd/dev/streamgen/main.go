// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command streamgen writes a synthetic stream-json transcript, one event
// per line, for exercising the monitor, TUI, and server without running a
// real agent.
//
// Usage:
//
//	go run cmd/dev/streamgen/main.go --out /tmp/session.jsonl
//	go run cmd/dev/streamgen/main.go --out /tmp/session.jsonl --turns 10 --delay 200ms
//	go run cmd/dev/streamgen/main.go --out /tmp/session.jsonl --append --fail
//
// With --delay the file grows in real time, so a watcher sees a live
// session:
//
//	streamlog watch /tmp/session.jsonl
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/noldarim/streamlog/pkg/event"
)

func main() {
	out := flag.String("out", "", "Output file (default stdout)")
	turns := flag.Int("turns", 3, "Number of assistant/tool turns")
	delay := flag.Duration("delay", 0, "Pause between lines, to simulate a live session")
	sessionID := flag.String("session", "", "Session ID (default random)")
	model := flag.String("model", "claude-sonnet-4", "Model name for the init event")
	doFail := flag.Bool("fail", false, "End the session with an error result")
	appendMode := flag.Bool("append", false, "Append to the output file instead of truncating")

	flag.Parse()

	if *sessionID == "" {
		*sessionID = uuid.New().String()
	}

	w := os.Stdout
	if *out != "" {
		flags := os.O_CREATE | os.O_WRONLY
		if *appendMode {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(*out, flags, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	g := &generator{w: w, sessionID: *sessionID, delay: *delay}
	start := time.Now()

	g.emit(event.Event{
		Type:      event.TypeSystem,
		Subtype:   event.SubtypeInit,
		SessionID: *sessionID,
		Model:     *model,
		Tools:     []string{"Bash", "Read", "Write"},
		CWD:       "/workspace",
	})

	for i := 1; i <= *turns; i++ {
		g.assistant(fmt.Sprintf("Working on step %d of %d.", i, *turns))

		toolUseID := fmt.Sprintf("toolu_%03d", i)
		g.emit(event.Event{
			Type:      event.TypeToolUse,
			SessionID: *sessionID,
			ToolName:  "Bash",
			ToolUseID: toolUseID,
			Input:     mustJSON(map[string]string{"command": fmt.Sprintf("echo step-%d", i)}),
		})
		g.emit(event.Event{
			Type:      event.TypeToolResult,
			SessionID: *sessionID,
			ToolName:  "Bash",
			ToolUseID: toolUseID,
			Output:    mustJSON(fmt.Sprintf("step-%d", i)),
		})
	}

	result := event.Event{
		Type:       event.TypeResult,
		Subtype:    event.SubtypeSuccess,
		SessionID:  *sessionID,
		Result:     "All steps completed.",
		CostUSD:    0.0004 * float64(*turns),
		DurationMS: time.Since(start).Milliseconds() + 1,
		NumTurns:   *turns,
	}
	if *doFail {
		result.Subtype = event.SubtypeError
		result.Result = "synthetic failure requested"
	}
	g.emit(result)

	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d events to %s (session %s)\n", g.count, *out, *sessionID)
	}
}

type generator struct {
	w         *os.File
	sessionID string
	delay     time.Duration
	count     int
}

func (g *generator) assistant(text string) {
	g.emit(event.Event{
		Type:      event.TypeAssistant,
		SessionID: g.sessionID,
		Message: &event.Message{
			ID:      fmt.Sprintf("msg_%03d", g.count),
			Type:    "message",
			Role:    "assistant",
			Content: []event.ContentBlock{{Type: "text", Text: text}},
		},
	})
}

// emit writes one event as a JSON line, unbuffered so a live watcher sees
// it immediately.
func (g *generator) emit(ev event.Event) {
	line, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal event: %v\n", err)
		os.Exit(1)
	}
	if _, err := g.w.Write(append(line, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write event: %v\n", err)
		os.Exit(1)
	}
	g.count++

	if g.delay > 0 {
		time.Sleep(g.delay)
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
