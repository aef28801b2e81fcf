// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Parse errors distinguished for callers that report per-line diagnostics.
var (
	ErrEmptyLine   = errors.New("empty line")
	ErrMissingType = errors.New("missing type field")
)

// ParseLine decodes one stream-json line into an Event. The line is trimmed
// first; an empty line, invalid JSON, or a missing/empty type field is an
// error. Unknown type values are not errors: the event is returned with its
// unrecognized Type and the full payload in Raw so callers can pass it
// through untouched. ParseLine never panics, whatever the input.
func ParseLine(line string) (Event, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Event{}, ErrEmptyLine
	}

	var ev Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil {
		return Event{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if ev.Type == "" {
		return Event{}, ErrMissingType
	}

	ev.Raw = json.RawMessage(trimmed)
	return ev, nil
}

// Parse is the total form of ParseLine: false instead of an error. Malformed
// lines are expected in transcript streams and most callers just skip them.
func Parse(line string) (Event, bool) {
	ev, err := ParseLine(line)
	return ev, err == nil
}

// ParseBytes decodes a raw line without the string conversion. Same
// semantics as ParseLine.
func ParseBytes(line []byte) (Event, error) {
	return ParseLine(string(line))
}
