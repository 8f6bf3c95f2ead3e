// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

/*
Package websocket provides real-time fixture update fan-out to connected
clients.

It implements a hub-and-spoke pattern over gorilla/websocket: the Hub
manages client connections and broadcasts, each Client runs a read and a
write goroutine, and the Bridge subscribes to the in-process pub/sub
topic the fixture cache publishes on and forwards every event to the
hub.

Message Types:

  - fixtures_update: a date entry changed (date_key, filter_key, count)
  - select_date: client -> server, centers the prefetch sweep
  - ping / pong: application-level keepalive
  - stats_update: cache statistics changed

Clients that cannot keep up with the broadcast rate are disconnected
rather than allowed to stall the hub; the frontend reconnects and
refetches.

Connection Lifecycle:

 1. Client connects via HTTP upgrade (internal/api's /ws handler)
 2. Hub registers client
 3. Client starts read/write goroutines
 4. Hub broadcasts fixture updates to all clients
 5. Client disconnects; hub unregisters and cleans up
*/
package websocket
