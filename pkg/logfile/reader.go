// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logfile

import (
	"bufio"
	"bytes"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/noldarim/streamlog/pkg/event"
	"github.com/noldarim/streamlog/pkg/stream"
)

const (
	// Scanner sizing: transcripts carry whole tool outputs on one line.
	scannerInitialBuf = 64 * 1024
	scannerMaxLine    = 10 * 1024 * 1024

	// validSniffBytes bounds how much of a file Valid inspects.
	validSniffBytes = 1024
)

// ParseFile reads a transcript in one pass and aggregates it into a
// ParsedLog. Blank and malformed lines are skipped; an empty or fully
// invalid file yields an empty ParsedLog, not an error. Only I/O failures
// are returned.
func ParseFile(path string) (*ParsedLog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	acc := newAccumulator()
	scanner := newScanner(file)
	for scanner.Scan() {
		ev, err := event.ParseBytes(scanner.Bytes())
		if err != nil {
			continue // skip invalid lines
		}
		acc.add(ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log file: %w", err)
	}

	return acc.finish(), nil
}

// Lines returns a lazy sequence over the file's non-blank lines. The open
// error surfaces immediately; the file closes when the sequence is exhausted
// or abandoned with break. The sequence is single-use. A read error after
// open ends the sequence early; callers needing that distinction should use
// ParseFile or ReadSummary, which report scan errors.
func Lines(path string) (iter.Seq[string], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	seq := func(yield func(string) bool) {
		defer file.Close() //nolint:errcheck
		scanner := newScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}
	return seq, nil
}

// Stream returns a lazy event sequence: Lines composed with the permissive
// parser. Invalid lines are dropped as they are encountered; nothing is
// read ahead of the consumer.
func Stream(path string) (iter.Seq[event.Event], error) {
	lines, err := Lines(path)
	if err != nil {
		return nil, err
	}
	return stream.Events(lines), nil
}

// ReadSummary scans the file once keeping only counters, so memory stays
// constant however large the transcript is.
func ReadSummary(path string) (Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	var s Summary
	scanner := newScanner(file)
	for scanner.Scan() {
		ev, err := event.ParseBytes(scanner.Bytes())
		if err != nil {
			continue
		}

		s.EventCount++
		if s.SessionID == "" {
			s.SessionID = ev.SessionID
		}
		if ev.IsAssistant() && ev.AssistantText() != "" {
			s.AssistantMessages++
		}
		if ev.Failed() {
			s.HasErrors = true
		}
		if ev.IsResult() {
			if cost := ev.ResolvedCost(); cost != 0 {
				s.TotalCost = cost
			}
			if ev.DurationMS != 0 {
				s.DurationMS = ev.DurationMS
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("scan log file: %w", err)
	}

	return s, nil
}

// Valid sniffs whether path looks like a stream-json transcript: a regular
// file whose first kilobyte contains at least one line that parses to a
// recognized event type. It never returns an error; anything unreadable is
// simply not valid.
func Valid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close() //nolint:errcheck

	buf := make([]byte, validSniffBytes)
	n, _ := file.Read(buf)
	if n <= 0 {
		return false
	}

	// The window may cut the last line short; a cut line just fails to
	// parse, which is the right answer for a sniff.
	for _, line := range bytes.Split(buf[:n], []byte{'\n'}) {
		if ev, err := event.ParseBytes(line); err == nil && ev.KnownType() {
			return true
		}
	}
	return false
}

func newScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, scannerInitialBuf), scannerMaxLine)
	return scanner
}
