// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/datacache"
	"github.com/golazo-live/golazod/internal/football"
	"github.com/golazo-live/golazod/internal/imagecache"
	"github.com/golazo-live/golazod/internal/logging"
	ws "github.com/golazo-live/golazod/internal/websocket"
)

// Handler holds the dependencies for all HTTP endpoints.
type Handler struct {
	coordinator *datacache.Coordinator
	images      *imagecache.Cache
	wsHub       *ws.Hub
	cfg         *config.Config
	startedAt   time.Time
}

// NewHandler creates the endpoint handler.
func NewHandler(coordinator *datacache.Coordinator, images *imagecache.Cache, hub *ws.Hub, cfg *config.Config) *Handler {
	return &Handler{
		coordinator: coordinator,
		images:      images,
		wsHub:       hub,
		cfg:         cfg,
		startedAt:   time.Now(),
	}
}

// Fixtures serves fixtures for a date, from cache when fresh.
//
// GET /api/v1/fixtures?date=2025-06-01&league=premier-league
func (h *Handler) Fixtures(w http.ResponseWriter, r *http.Request) {
	dateKey, ok := dateParam(w, r)
	if !ok {
		return
	}
	filterKey := r.URL.Query().Get("league")
	if filterKey != "" && filterKey != "all" {
		if _, known := football.LeagueByKey(filterKey); !known {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown league key", nil)
			return
		}
	}

	cachedBefore := h.coordinator.Peek(dateKey, filterKey)
	start := time.Now()
	fixtures, err := h.coordinator.GetData(r.Context(), dateKey, filterKey, datacache.PriorityNormal)
	if err != nil {
		status, code := upstreamStatus(err)
		respondError(w, status, code, "failed to fetch fixtures", err)
		return
	}

	cached := cachedBefore.Valid(h.cfg.Cache.TTL, start)
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"date":     dateKey,
			"league":   filterKey,
			"count":    len(fixtures),
			"fixtures": fixtures,
		},
		Metadata: Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      cached,
		},
	})
}

// RefreshFixtures forces a refetch of a date regardless of freshness.
//
// POST /api/v1/fixtures/refresh?date=2025-06-01&league=all
func (h *Handler) RefreshFixtures(w http.ResponseWriter, r *http.Request) {
	dateKey, ok := dateParam(w, r)
	if !ok {
		return
	}
	filterKey := r.URL.Query().Get("league")

	fixtures, err := h.coordinator.RefreshDate(r.Context(), dateKey, filterKey)
	if err != nil {
		status, code := upstreamStatus(err)
		respondError(w, status, code, "failed to refresh fixtures", err)
		return
	}
	respondSuccess(w, map[string]interface{}{
		"date":     dateKey,
		"count":    len(fixtures),
		"fixtures": fixtures,
	}, false)
}

// Prefetch centers a prefetch sweep on the given date and league
// filter and returns immediately; the sweep runs in the background.
//
// POST /api/v1/fixtures/prefetch?date=2025-06-01&league=premier-league
func (h *Handler) Prefetch(w http.ResponseWriter, r *http.Request) {
	dateKey, ok := dateParam(w, r)
	if !ok {
		return
	}
	filterKey := r.URL.Query().Get("league")
	if filterKey != "" && filterKey != "all" {
		if _, known := football.LeagueByKey(filterKey); !known {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown league key", nil)
			return
		}
	}
	h.coordinator.SetSelectedDate(dateKey, filterKey)
	respondJSON(w, http.StatusAccepted, &APIResponse{
		Status:   "success",
		Data:     map[string]string{"date": dateKey, "league": filterKey, "state": "scheduled"},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// CacheStats reports fixture cache counters.
//
// GET /api/v1/cache/stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, h.coordinator.Stats(), false)
}

// ClearCache drops all cached fixtures, memory and store.
//
// DELETE /api/v1/cache
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.coordinator.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to clear cache", err)
		return
	}
	respondSuccess(w, map[string]string{"state": "cleared"}, false)
}

// Leagues lists the registered leagues.
//
// GET /api/v1/leagues
func (h *Handler) Leagues(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]interface{}{
		"count":   len(football.Leagues),
		"leagues": football.Leagues,
	}, true)
}

// ResolveImage resolves one image identity to a URL.
//
// GET /api/v1/images/resolve?kind=team&id=42&name=Arsenal
func (h *Handler) ResolveImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := imagecache.Identity{
		Kind:      imagecache.Kind(q.Get("kind")),
		ID:        int64(getIntParam(r, "id", 0)),
		Name:      q.Get("name"),
		TeamID:    int64(getIntParam(r, "team_id", 0)),
		DirectURL: q.Get("url"),
	}
	if !id.Valid() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "kind plus id, name or url is required", nil)
		return
	}

	url, err := h.images.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, imagecache.ErrCoolingDown) {
			respondError(w, http.StatusNotFound, "COOLING_DOWN", "identity recently failed to resolve", nil)
			return
		}
		if errors.Is(err, imagecache.ErrOffline) {
			respondError(w, http.StatusServiceUnavailable, "OFFLINE", "upstream image resolution is disabled", nil)
			return
		}
		respondError(w, http.StatusNotFound, "NOT_FOUND", "image could not be resolved", err)
		return
	}
	respondSuccess(w, map[string]string{"url": url}, false)
}

// preWarmRequest is the POST body for image pre-warming.
type preWarmRequest struct {
	Identities []imagecache.Identity `json:"identities" validate:"required,max=200"`
}

// PreWarmImages admits a batch of identities that carry their own URLs.
// Entries without a URL resolve lazily on first read.
//
// POST /api/v1/images/prewarm
func (h *Handler) PreWarmImages(w http.ResponseWriter, r *http.Request) {
	var req preWarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if len(req.Identities) == 0 || len(req.Identities) > 200 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "identities must hold 1 to 200 entries", nil)
		return
	}

	admitted := h.images.PreWarm(req.Identities)
	respondJSON(w, http.StatusAccepted, &APIResponse{
		Status:   "success",
		Data:     map[string]int{"admitted": admitted, "received": len(req.Identities)},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

// ImageStats reports image cache counters.
//
// GET /api/v1/images/stats
func (h *Handler) ImageStats(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, h.images.Stats(), false)
}

// ClearImages drops all cached image resolutions.
//
// DELETE /api/v1/images
func (h *Handler) ClearImages(w http.ResponseWriter, r *http.Request) {
	if err := h.images.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "failed to clear image cache", err)
		return
	}
	respondSuccess(w, map[string]string{"state": "cleared"}, false)
}

// Health reports liveness plus basic cache state.
//
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cache":          h.coordinator.Stats(),
		"images":         h.images.Stats(),
	}, false)
}

// HealthLive is the bare liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]string{"status": "alive"}, false)
}

// HealthReady reports readiness; the service is ready once the fixture
// cache finished hydrating.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, map[string]string{"status": "ready"}, false)
}

// WebSocket upgrades the connection and registers the client with the hub.
//
// GET /api/v1/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browser
// WebSockets always send Origin; an empty header means a non-browser
// client bypassing CORS, so it is rejected.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if h.cfg == nil {
		return true
	}
	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// dateParam extracts and validates the required date query parameter.
func dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	dateKey := r.URL.Query().Get("date")
	if dateKey == "" {
		dateKey = time.Now().UTC().Format("2006-01-02")
		return dateKey, true
	}
	if _, err := time.Parse("2006-01-02", dateKey); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", err)
		return "", false
	}
	return dateKey, true
}

// upstreamStatus maps fetch errors to HTTP status and error code.
func upstreamStatus(err error) (int, string) {
	if errors.Is(err, football.ErrRateLimited) {
		return http.StatusServiceUnavailable, "RATE_LIMITED"
	}
	return http.StatusBadGateway, "UPSTREAM_ERROR"
}
