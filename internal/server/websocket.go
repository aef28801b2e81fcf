// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noldarim/streamlog/pkg/event"
	"github.com/noldarim/streamlog/pkg/monitor"
)

const (
	// WebSocket limits
	maxMessageSize = 4096
	maxFilters     = 50
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	maxClients     = 1000
)

// newUpgrader creates a WebSocket upgrader that respects the configured allowed
// origins. When allowedOrigins is empty the upgrader accepts any origin
// (localhost development mode). When set, only those origins are permitted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			return ok
		},
	}
}

// SubscriptionFilter determines which watch events a WebSocket client
// receives. Empty fields match everything; a populated field must match.
type SubscriptionFilter struct {
	WatchIDs   []string `json:"watch_ids,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
}

func (f SubscriptionFilter) matches(we monitor.WatchEvent) bool {
	if len(f.WatchIDs) > 0 && !slices.Contains(f.WatchIDs, we.WatchID) {
		return false
	}
	if len(f.EventTypes) > 0 && !slices.Contains(f.EventTypes, string(we.Event.Type)) {
		return false
	}
	if f.SessionID != "" && f.SessionID != we.Event.SessionID {
		return false
	}
	return true
}

func (f SubscriptionFilter) equal(other SubscriptionFilter) bool {
	return slices.Equal(f.WatchIDs, other.WatchIDs) &&
		slices.Equal(f.EventTypes, other.EventTypes) &&
		f.SessionID == other.SessionID
}

// wsClient represents a single connected WebSocket client.
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	filters []SubscriptionFilter
	mu      sync.RWMutex
}

// ClientRegistry manages all connected WebSocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewClientRegistry creates a new client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast sends a watch event to all clients whose filters match.
func (r *ClientRegistry) Broadcast(we monitor.WatchEvent) {
	data, err := marshalWatchEvent(we)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal event for WebSocket broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.clients {
		if c.matchesAny(we) {
			select {
			case c.send <- data:
			default:
				// client too slow, skip
				getLog().Warn().Msg("Dropping event for slow WebSocket client")
			}
		}
	}
}

func (r *ClientRegistry) add(c *wsClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= maxClients {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

func (r *ClientRegistry) remove(c *wsClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

// matchesAny returns true if the event matches any of the client's filters,
// or if the client has no filters (receives everything).
func (c *wsClient) matchesAny(we monitor.WatchEvent) bool {
	c.mu.RLock()
	if len(c.filters) == 0 {
		c.mu.RUnlock()
		return true
	}
	// Copy to avoid reading from a slice that could be modified after unlock
	filters := make([]SubscriptionFilter, len(c.filters))
	copy(filters, c.filters)
	c.mu.RUnlock()

	for _, f := range filters {
		if f.matches(we) {
			return true
		}
	}
	return false
}

// wsMessage is the envelope for client → server WebSocket messages.
type wsMessage struct {
	Type       string   `json:"type"` // "subscribe" or "unsubscribe"
	WatchIDs   []string `json:"watch_ids,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
}

func (m wsMessage) filter() SubscriptionFilter {
	return SubscriptionFilter{WatchIDs: m.WatchIDs, EventTypes: m.EventTypes, SessionID: m.SessionID}
}

// wsOutMessage is the envelope for server → client WebSocket messages.
type wsOutMessage struct {
	Type    string       `json:"type"` // "event" or "error"
	WatchID string       `json:"watch_id,omitempty"`
	Event   *event.Event `json:"event,omitempty"`
	Message string       `json:"message,omitempty"`
}

func marshalWatchEvent(we monitor.WatchEvent) ([]byte, error) {
	out := wsOutMessage{
		Type:    "event",
		WatchID: we.WatchID,
		Event:   &we.Event,
	}
	return json.Marshal(out)
}

// HandleWebSocket upgrades an HTTP connection and manages the client lifecycle.
func HandleWebSocket(registry *ClientRegistry, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			getLog().Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan []byte, 64),
		}
		if !registry.add(client) {
			getLog().Warn().Msg("WebSocket connection limit reached")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
			conn.Close()
			return
		}
		getLog().Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

		go client.writePump()
		client.readPump(registry)
	}
}

func (c *wsClient) readPump(registry *ClientRegistry) {
	defer func() {
		registry.remove(c)
		close(c.send) // signals writePump to exit
		c.conn.Close()
		getLog().Info().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				getLog().Error().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			getLog().Warn().Err(err).Msg("Invalid WebSocket message")
			continue
		}

		c.mu.Lock()
		switch msg.Type {
		case "subscribe":
			if len(c.filters) >= maxFilters {
				getLog().Warn().Msg("WebSocket client hit max filter limit")
			} else {
				c.filters = append(c.filters, msg.filter())
				getLog().Debug().
					Strs("watch_ids", msg.WatchIDs).
					Strs("event_types", msg.EventTypes).
					Str("session_id", msg.SessionID).
					Msg("WebSocket client subscribed")
			}
		case "unsubscribe":
			c.filters = removeFilter(c.filters, msg.filter())
			getLog().Debug().Msg("WebSocket client unsubscribed")
		}
		c.mu.Unlock()
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by readPump, send close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Error().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func removeFilter(filters []SubscriptionFilter, target SubscriptionFilter) []SubscriptionFilter {
	result := make([]SubscriptionFilter, 0, len(filters))
	for _, f := range filters {
		if f.equal(target) {
			continue
		}
		result = append(result, f)
	}
	return result
}
