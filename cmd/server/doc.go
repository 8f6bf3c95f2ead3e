// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Command server runs the Golazod daemon: a caching proxy in front of
// the api-football.com v3 API that keeps a rolling window of fixture
// data warm, prefetches around the selected date, resolves and caches
// team, league and player images, and pushes fixture updates to
// WebSocket clients.
//
// Configuration is loaded from defaults, an optional YAML file and
// GOLAZO_ environment variables, in that order. See internal/config.
package main
