// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/streamlog/internal/config"
	"github.com/noldarim/streamlog/pkg/logfile"
	"github.com/noldarim/streamlog/pkg/monitor"
)

func testServer(t *testing.T) (*Server, *monitor.Manager) {
	t.Helper()

	manager := monitor.NewManager(monitor.Config{PollInterval: 10 * time.Millisecond})
	t.Cleanup(manager.Close)

	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: 0, MaxBodyBytes: 1 << 20}
	return New(cfg, manager), manager
}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func doRequest(t *testing.T, srv *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	raw := w.Body.Bytes()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), "body: %s", raw)
	return v
}

const (
	systemLine    = `{"type":"system","subtype":"init","session_id":"s1","model":"claude-3"}`
	assistantHi   = `{"type":"assistant","session_id":"s1","message":{"role":"assistant","content":[{"type":"text","text":"hi"}]}}`
	resultSuccess = `{"type":"result","subtype":"success","session_id":"s1","cost_usd":0.001,"duration_ms":500,"num_turns":1}`
)

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetLogSummary(t *testing.T) {
	srv, _ := testServer(t)
	path := writeTranscript(t, systemLine, assistantHi, resultSuccess, "not json")

	w := doRequest(t, srv, http.MethodGet, "/api/v1/logs/summary?path="+url.QueryEscape(path), nil)
	require.Equal(t, http.StatusOK, w.Code)

	summary := decodeBody[logfile.Summary](t, w)
	assert.Equal(t, "s1", summary.SessionID)
	assert.Equal(t, 3, summary.EventCount)
	assert.Equal(t, 1, summary.AssistantMessages)
	assert.False(t, summary.HasErrors)
	assert.Equal(t, 0.001, summary.TotalCost)
}

func TestGetLogSummary_BadRequests(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/logs/summary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/v1/logs/summary?path=relative.jsonl", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing := filepath.Join(t.TempDir(), "absent.jsonl")
	w = doRequest(t, srv, http.MethodGet, "/api/v1/logs/summary?path="+url.QueryEscape(missing), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseLog(t *testing.T) {
	srv, _ := testServer(t)
	path := writeTranscript(t, systemLine, assistantHi, resultSuccess)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/logs/parse?path="+url.QueryEscape(path), nil)
	require.Equal(t, http.StatusOK, w.Code)

	parsed := decodeBody[logfile.ParsedLog](t, w)
	assert.Len(t, parsed.Events, 3)
	assert.Equal(t, "s1", parsed.SessionID)
	assert.Equal(t, "hi", parsed.Content)
	assert.Equal(t, 0.001, parsed.Metadata.TotalCost)
	assert.Equal(t, int64(500), parsed.Metadata.DurationMS)
	assert.Equal(t, 1, parsed.Metadata.Turns)
}

func TestCheckLog(t *testing.T) {
	srv, _ := testServer(t)

	valid := writeTranscript(t, systemLine, assistantHi)
	w := doRequest(t, srv, http.MethodGet, "/api/v1/logs/valid?path="+url.QueryEscape(valid), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, true, body["valid"])

	invalid := filepath.Join(t.TempDir(), "notes.jsonl")
	require.NoError(t, os.WriteFile(invalid, []byte("plain text, not a transcript\n"), 0o644))
	w = doRequest(t, srv, http.MethodGet, "/api/v1/logs/valid?path="+url.QueryEscape(invalid), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody[map[string]interface{}](t, w)
	assert.Equal(t, false, body["valid"])
}

func TestWatchLifecycle(t *testing.T) {
	srv, _ := testServer(t)
	path := writeTranscript(t, systemLine, assistantHi)

	// Empty list at the start.
	w := doRequest(t, srv, http.MethodGet, "/api/v1/watches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[watchListResponse](t, w)
	assert.Empty(t, list.Watches)

	// Create.
	body, _ := json.Marshal(createWatchRequest{Path: path})
	w = doRequest(t, srv, http.MethodPost, "/api/v1/watches", body)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	created := decodeBody[monitor.WatchInfo](t, w)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, path, created.Path)

	// The same path returns the same id.
	w = doRequest(t, srv, http.MethodPost, "/api/v1/watches", body)
	require.Equal(t, http.StatusOK, w.Code)
	again := decodeBody[monitor.WatchInfo](t, w)
	assert.Equal(t, created.ID, again.ID)

	// List and lookup see it.
	w = doRequest(t, srv, http.MethodGet, "/api/v1/watches", nil)
	list = decodeBody[watchListResponse](t, w)
	require.Len(t, list.Watches, 1)

	w = doRequest(t, srv, http.MethodGet, "/api/v1/watches/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Delete stops it; a second delete is a 404.
	w = doRequest(t, srv, http.MethodDelete, "/api/v1/watches/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, http.MethodDelete, "/api/v1/watches/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, srv, http.MethodGet, "/api/v1/watches/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateWatch_Validation(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/v1/watches", []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/v1/watches", []byte(`{"path":""}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/v1/watches", []byte(`{"path":"relative.jsonl"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	missing := filepath.Join(t.TempDir(), "absent.jsonl")
	body, _ := json.Marshal(createWatchRequest{Path: missing})
	w = doRequest(t, srv, http.MethodPost, "/api/v1/watches", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketReceivesWatchEvents(t *testing.T) {
	srv, manager := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.broadcaster.Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	path := writeTranscript(t, assistantHi)
	id, err := manager.Watch(path)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var envelope wsOutMessage
	require.NoError(t, conn.ReadJSON(&envelope))

	assert.Equal(t, "event", envelope.Type)
	assert.Equal(t, id, envelope.WatchID)
	require.NotNil(t, envelope.Event)
	assert.Equal(t, "hi", envelope.Event.AssistantText())
}

func TestWebSocketSubscribeFilters(t *testing.T) {
	srv, manager := testServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.broadcaster.Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Only result events pass the filter.
	require.NoError(t, conn.WriteJSON(wsMessage{Type: "subscribe", EventTypes: []string{"result"}}))
	time.Sleep(100 * time.Millisecond) // let the filter land before events flow

	path := writeTranscript(t, assistantHi, resultSuccess)
	_, err = manager.Watch(path)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var envelope wsOutMessage
	require.NoError(t, conn.ReadJSON(&envelope))

	require.NotNil(t, envelope.Event)
	assert.Equal(t, "result", string(envelope.Event.Type), "assistant event should have been filtered out")
}

func TestCORSPreflightAndRequestID(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/watches", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	// Client-supplied request ids survive when well formed.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-id-123")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "test-id-123", w.Header().Get("X-Request-ID"))

	// Malformed ones are replaced.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces!")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	got := w.Header().Get("X-Request-ID")
	assert.NotEmpty(t, got)
	assert.NotEqual(t, "bad id with spaces!", got)
}

func TestMaxBodySize(t *testing.T) {
	manager := monitor.NewManager(monitor.Config{PollInterval: 10 * time.Millisecond})
	t.Cleanup(manager.Close)

	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: 0, MaxBodyBytes: 64}
	srv := New(cfg, manager)

	big := fmt.Sprintf(`{"path":"/tmp/%s.jsonl"}`, strings.Repeat("x", 256))
	w := doRequest(t, srv, http.MethodPost, "/api/v1/watches", []byte(big))

	// MaxBytesReader makes the decode fail, surfacing as a bad request.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
