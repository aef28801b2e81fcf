// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineBuffer_SingleWrite(t *testing.T) {
	var lb LineBuffer
	lines := lb.Write([]byte("one\ntwo\nthree\n"))
	assert.Equal(t, []string{"one", "two", "three"}, lines)
	assert.Zero(t, lb.Pending())
}

func TestLineBuffer_PartialRetained(t *testing.T) {
	var lb LineBuffer

	lines := lb.Write([]byte(`{"type": "assist`))
	assert.Empty(t, lines)
	assert.Equal(t, 16, lb.Pending())

	lines = lb.Write([]byte("ant\"}\n"))
	assert.Equal(t, []string{`{"type": "assistant"}`}, lines)
	assert.Zero(t, lb.Pending())
}

func TestLineBuffer_AnyFragmentationSameLines(t *testing.T) {
	input := []byte("alpha\nbeta\n{\"type\":\"result\"}\ngamma\n")
	want := []string{"alpha", "beta", `{"type":"result"}`, "gamma"}

	for cut := 0; cut <= len(input); cut++ {
		var lb LineBuffer
		var got []string
		got = append(got, lb.Write(input[:cut])...)
		got = append(got, lb.Write(input[cut:])...)
		assert.Equal(t, want, got, "cut at %d", cut)
		assert.Zero(t, lb.Pending(), "cut at %d", cut)
	}
}

func TestLineBuffer_ByteAtATime(t *testing.T) {
	input := "one\ntwo\n"
	var lb LineBuffer
	var got []string
	for i := 0; i < len(input); i++ {
		got = append(got, lb.Write([]byte{input[i]})...)
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestLineBuffer_CRLF(t *testing.T) {
	var lb LineBuffer
	lines := lb.Write([]byte("one\r\ntwo\r\n"))
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestLineBuffer_Flush(t *testing.T) {
	var lb LineBuffer
	lb.Write([]byte("complete\nincomplete"))

	rest, ok := lb.Flush()
	require.True(t, ok)
	assert.Equal(t, "incomplete", rest)

	_, ok = lb.Flush()
	assert.False(t, ok)
}

func TestLineBuffer_Reset(t *testing.T) {
	var lb LineBuffer
	lb.Write([]byte("stale partial"))
	lb.Reset()
	assert.Zero(t, lb.Pending())

	lines := lb.Write([]byte("fresh\n"))
	assert.Equal(t, []string{"fresh"}, lines)
}

func TestLineBuffer_EmptyLines(t *testing.T) {
	var lb LineBuffer
	lines := lb.Write([]byte("\n\na\n"))
	assert.Equal(t, []string{"", "", "a"}, lines)
}

func TestCompleteLines_FinalFragment(t *testing.T) {
	reads := [][]byte{
		[]byte("one\ntw"),
		[]byte("o\nthree"),
	}
	lines := Collect(CompleteLines(FromSlice(reads)))
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestCompleteLines_Lazy(t *testing.T) {
	var pulled int
	reads := func(yield func([]byte) bool) {
		for i := 0; i < 100; i++ {
			pulled++
			if !yield([]byte(fmt.Sprintf("line-%d\n", i))) {
				return
			}
		}
	}

	lines := Collect(Take(CompleteLines(iter.Seq[[]byte](reads)), 5))
	require.Len(t, lines, 5)
	assert.Equal(t, "line-4", lines[4])
	assert.Equal(t, 5, pulled)
}
