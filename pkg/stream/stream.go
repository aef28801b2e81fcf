// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream provides lazy, composable transforms over event sequences.
// Everything is built on iter.Seq: no transform consumes input until its
// result is iterated, and stopping early (break, Take) stops pulling from
// upstream immediately. This keeps constant-memory pipelines over logs of
// any size.
package stream

import (
	"iter"

	"github.com/noldarim/streamlog/pkg/event"
)

// Parsed is the per-line outcome of EventsSafe: exactly one Parsed per
// input line, with Err set when the line did not parse.
type Parsed struct {
	Line  string
	Event event.Event
	Err   error
}

// Events parses each line into an event, silently dropping lines that fail.
// This is the permissive pipeline entry point; transcripts routinely contain
// blank lines and partial writes.
func Events(lines iter.Seq[string]) iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		for line := range lines {
			ev, ok := event.Parse(line)
			if !ok {
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// EventsSafe parses each line, preserving line-for-line correspondence:
// every input line yields one Parsed, with unparseable lines tagged by Err
// instead of dropped. Use it when diagnostics matter.
func EventsSafe(lines iter.Seq[string]) iter.Seq[Parsed] {
	return func(yield func(Parsed) bool) {
		for line := range lines {
			ev, err := event.ParseLine(line)
			if !yield(Parsed{Line: line, Event: ev, Err: err}) {
				return
			}
		}
	}
}

// Chunks projects events to display chunks, dropping events that have no
// projection.
func Chunks(events iter.Seq[event.Event]) iter.Seq[event.Chunk] {
	return func(yield func(event.Chunk) bool) {
		for ev := range events {
			chunk, ok := event.ChunkFromEvent(ev)
			if !ok {
				continue
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// FilterType keeps only events of type t.
func FilterType(events iter.Seq[event.Event], t event.Type) iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		for ev := range events {
			if ev.Type != t {
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Texts yields the non-empty assistant text of each event.
func Texts(events iter.Seq[event.Event]) iter.Seq[string] {
	return func(yield func(string) bool) {
		for ev := range events {
			text := ev.AssistantText()
			if text == "" {
				continue
			}
			if !yield(text) {
				return
			}
		}
	}
}

// Compose chains same-type transforms left to right: the first is applied
// to the input, the second to its output, and so on.
func Compose[T any](fns ...func(iter.Seq[T]) iter.Seq[T]) func(iter.Seq[T]) iter.Seq[T] {
	return func(seq iter.Seq[T]) iter.Seq[T] {
		for _, fn := range fns {
			seq = fn(seq)
		}
		return seq
	}
}

// Collect drains a sequence into a slice.
func Collect[T any](seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

// Take yields at most n elements. It pulls exactly as many as it yields:
// after the nth element nothing more is consumed from upstream, and n <= 0
// consumes nothing at all.
func Take[T any](seq iter.Seq[T], n int) iter.Seq[T] {
	return func(yield func(T) bool) {
		if n <= 0 {
			return
		}
		seen := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			seen++
			if seen >= n {
				return
			}
		}
	}
}

// FromSlice adapts a slice to a sequence.
func FromSlice[T any](s []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range s {
			if !yield(v) {
				return
			}
		}
	}
}
