// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"iter"
)

// LineBuffer reassembles lines from arbitrary byte fragments. Reads from a
// growing file land on no particular boundary; the buffer holds the trailing
// incomplete fragment until its newline arrives, so every line comes out
// exactly once, never torn.
type LineBuffer struct {
	buf []byte
}

// Write appends a fragment and returns the lines it completed, in order.
// Line terminators are stripped; a trailing CR (CRLF input) is trimmed.
func (b *LineBuffer) Write(p []byte) []string {
	b.buf = append(b.buf, p...)

	var lines []string
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(b.buf[:i], []byte("\r"))))
		b.buf = b.buf[i+1:]
	}
	if len(b.buf) == 0 {
		b.buf = nil
	}
	return lines
}

// Flush surrenders the retained incomplete fragment, if any. After Flush
// the buffer is empty.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.buf) == 0 {
		return "", false
	}
	rest := string(bytes.TrimSuffix(b.buf, []byte("\r")))
	b.buf = nil
	return rest, true
}

// Pending reports how many bytes are buffered awaiting a newline.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

// Reset discards any buffered fragment. Used when the underlying file is
// truncated and the retained bytes no longer belong to anything.
func (b *LineBuffer) Reset() {
	b.buf = nil
}

// CompleteLines lifts LineBuffer to a sequence transform: byte fragments in,
// whole lines out. A final unterminated fragment is yielded at end of input.
func CompleteLines(reads iter.Seq[[]byte]) iter.Seq[string] {
	return func(yield func(string) bool) {
		var lb LineBuffer
		for p := range reads {
			for _, line := range lb.Write(p) {
				if !yield(line) {
					return
				}
			}
		}
		if rest, ok := lb.Flush(); ok {
			yield(rest)
		}
	}
}
