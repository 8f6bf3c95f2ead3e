// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/metrics"
)

// Message types for WebSocket communication
const (
	MessageTypeFixtures    = "fixtures_update"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeSelectDate  = "select_date"
	MessageTypeStatsUpdate = "stats_update"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// DateSelector receives the date and league filter a client navigated
// to; the coordinator uses them to center its prefetch sweep.
type DateSelector interface {
	SetSelectedDate(dateKey, filterKey string)
}

// Hub maintains the set of active clients and broadcasts fixture
// updates to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	selector   DateSelector
	mu         sync.RWMutex
}

// NewHub creates a new Hub. selector may be nil when date selection
// should not drive prefetching.
func NewHub(selector DateSelector) *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		selector:   selector,
	}
}

// Broadcast queues a message for delivery to every connected client.
// Drops the message when the queue is full rather than blocking the
// caller.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		logging.Warn().Str("type", msg.Type).Msg("websocket broadcast queue full, message dropped")
	}
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs the hub until ctx is cancelled, then closes all clients.
// It satisfies suture.Service.
//
// Lifecycle events are drained before broadcasts so client state is
// always consistent when a message fans out. Go's select picks randomly
// among ready channels; the staged non-blocking checks impose the
// ordering instead.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String names the service in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// selectDate forwards a client's date and filter selection to the
// coordinator.
func (h *Hub) selectDate(dateKey, filterKey string) {
	if h.selector == nil || dateKey == "" {
		return
	}
	h.selector.SetSelectedDate(dateKey, filterKey)
}

// broadcastToClients sends a message to all connected clients in client
// ID order so delivery order is reproducible. Clients with a full send
// queue are dropped; a client that cannot keep up must reconnect rather
// than stall the hub.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(float64(len(h.clients)))
	metrics.WebSocketBroadcasts.Inc()
}

// shutdown closes all clients and logs the reason. Context errors are
// expected here and not logged as errors.
func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.WebSocketClients.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}
