// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/datacache"
	"github.com/golazo-live/golazod/internal/football"
	"github.com/golazo-live/golazod/internal/imagecache"
	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/store"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

type fakeSource struct{}

func (fakeSource) FixturesByDate(ctx context.Context, date string, _ []int64, _ []int, _ string) ([]football.RawFixture, error) {
	var f football.RawFixture
	f.Fixture.ID = 1001
	f.Fixture.Status.Short = "NS"
	f.Teams.Home.Name = "Home"
	f.Teams.Away.Name = "Away"
	return []football.RawFixture{f}, nil
}

func (s fakeSource) FixturesForLeague(ctx context.Context, leagueID int64, season int, date, tz string) ([]football.RawFixture, error) {
	return s.FixturesByDate(ctx, date, nil, nil, tz)
}

type fakeImages struct{}

func (fakeImages) TeamLogo(ctx context.Context, teamID int64, name string) (string, error) {
	return fmt.Sprintf("https://media.example/teams/%d.png", teamID), nil
}

func (fakeImages) LeagueLogo(ctx context.Context, leagueID int64, name string) (string, error) {
	return fmt.Sprintf("https://media.example/leagues/%d.png", leagueID), nil
}

func (fakeImages) PlayerPhoto(ctx context.Context, playerID int64, name string, teamID int64) (string, error) {
	return fmt.Sprintf("https://media.example/players/%d.png", playerID), nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Server.RateLimitReqs = 10000
	cfg.Server.RateLimitWindow = time.Minute
	cfg.Cache = config.CacheConfig{
		TTL: 30 * time.Minute, MaxEntries: 30,
		PrefetchRadius: 1, PrefetchBatch: 3,
		PrefetchDelay: time.Millisecond, PrefetchDebounce: time.Millisecond,
		PersistDebounce:  10 * time.Millisecond,
		FastLoadCount:    8, BackgroundLoadDelay: time.Millisecond,
		TodayFreshWindow: 20 * time.Minute, TodayCheckPeriod: time.Minute,
		OthersSyncInterval: 24 * time.Hour, OthersSyncRadius: 2, OthersSyncDelay: time.Millisecond,
	}
	cfg.Images = config.ImageCacheConfig{
		TTL: 30 * 24 * time.Hour, CoolDown: 4 * time.Hour,
		StartConcurrency: 4, MinConcurrency: 3, MaxConcurrency: 12,
		AdaptEvery: 15, HighWaterWait: 250 * time.Millisecond, LowWaterWait: 60 * time.Millisecond,
		SizeCap: 1000, PersistDebounce: 10 * time.Millisecond,
	}
	return cfg
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	coordinator := datacache.New(fakeSource{}, store.NewMemoryStore(), cfg.Cache, nil)
	images := imagecache.New(fakeImages{}, nil, cfg.Images)
	handler := NewHandler(coordinator, images, nil, cfg)
	return NewRouter(handler, cfg).Setup()
}

func doRequest(t *testing.T, h http.Handler, method, target string, body []byte) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return rec, &resp
}

func TestFixturesEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/fixtures?date=2025-06-01", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" {
		t.Errorf("response status = %q", resp.Status)
	}
	data := resp.Data.(map[string]interface{})
	if data["count"].(float64) != 1 {
		t.Errorf("count = %v, want 1", data["count"])
	}
	if data["date"] != "2025-06-01" {
		t.Errorf("date = %v", data["date"])
	}

	// Second read is a cache hit.
	_, resp2 := doRequest(t, h, http.MethodGet, "/api/v1/fixtures?date=2025-06-01", nil)
	if !resp2.Metadata.Cached {
		t.Error("second read not marked cached")
	}
}

func TestFixturesRejectsBadDate(t *testing.T) {
	h := newTestServer(t)
	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/fixtures?date=junk", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestFixturesRejectsUnknownLeague(t *testing.T) {
	h := newTestServer(t)
	rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/fixtures?date=2025-06-01&league=no-such-league", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFixturesDefaultsToToday(t *testing.T) {
	h := newTestServer(t)
	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/fixtures", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["date"] != time.Now().UTC().Format("2006-01-02") {
		t.Errorf("defaulted date = %v", data["date"])
	}
}

func TestRefreshEndpoint(t *testing.T) {
	h := newTestServer(t)
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/fixtures/refresh?date=2025-06-02", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" {
		t.Errorf("response status = %q", resp.Status)
	}
}

func TestPrefetchEndpointAccepted(t *testing.T) {
	h := newTestServer(t)
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/fixtures/prefetch?date=2025-06-03", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["state"] != "scheduled" {
		t.Errorf("state = %v", data["state"])
	}
}

func TestPrefetchEndpointCarriesLeague(t *testing.T) {
	h := newTestServer(t)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/fixtures/prefetch?date=2025-06-03&league=premier-league", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if data["league"] != "premier-league" {
		t.Errorf("league = %v, want premier-league", data["league"])
	}

	rec, _ = doRequest(t, h, http.MethodPost, "/api/v1/fixtures/prefetch?date=2025-06-03&league=no-such-league", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown league status = %d, want 400", rec.Code)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	h := newTestServer(t)

	doRequest(t, h, http.MethodGet, "/api/v1/fixtures?date=2025-06-01", nil)
	_, resp := doRequest(t, h, http.MethodGet, "/api/v1/cache/stats", nil)
	data := resp.Data.(map[string]interface{})
	if data["entries"].(float64) != 1 {
		t.Errorf("entries = %v, want 1", data["entries"])
	}

	rec, _ := doRequest(t, h, http.MethodDelete, "/api/v1/cache", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rec.Code)
	}
	_, resp = doRequest(t, h, http.MethodGet, "/api/v1/cache/stats", nil)
	data = resp.Data.(map[string]interface{})
	if data["entries"].(float64) != 0 {
		t.Errorf("entries after clear = %v", data["entries"])
	}
}

func TestLeaguesEndpoint(t *testing.T) {
	h := newTestServer(t)
	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/leagues", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := resp.Data.(map[string]interface{})
	if int(data["count"].(float64)) != len(football.Leagues) {
		t.Errorf("count = %v, want %d", data["count"], len(football.Leagues))
	}
}

func TestResolveImageEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/images/resolve?kind=team&id=42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	if data["url"] != "https://media.example/teams/42.png" {
		t.Errorf("url = %v", data["url"])
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/images/resolve", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing identity status = %d, want 400", rec.Code)
	}
}

func TestPreWarmEndpoint(t *testing.T) {
	h := newTestServer(t)

	body, _ := json.Marshal(preWarmRequest{Identities: []imagecache.Identity{
		{Kind: imagecache.KindTeam, ID: 1, DirectURL: "https://payload.example/1.png"},
		{Kind: imagecache.KindTeam, ID: 2, DirectURL: "https://payload.example/2.png"},
		{Kind: imagecache.KindTeam, ID: 3}, // no URL, resolves lazily
	}})
	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/images/prewarm", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	data := resp.Data.(map[string]interface{})
	if data["admitted"].(float64) != 2 {
		t.Errorf("admitted = %v, want 2", data["admitted"])
	}
	if data["received"].(float64) != 3 {
		t.Errorf("received = %v, want 3", data["received"])
	}

	rec, _ = doRequest(t, h, http.MethodPost, "/api/v1/images/prewarm", []byte(`{"identities":[]}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t)
	for _, path := range []string{"/api/v1/health/", "/api/v1/health/live", "/api/v1/health/ready"} {
		rec, resp := doRequest(t, h, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if resp.Status != "success" {
			t.Errorf("%s response status = %q", path, resp.Status)
		}
	}
}

func TestWebSocketUnavailableWithoutHub(t *testing.T) {
	h := newTestServer(t)
	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/ws", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leagues", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRateLimitRejects(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimitReqs = 2
	coordinator := datacache.New(fakeSource{}, nil, cfg.Cache, nil)
	images := imagecache.New(fakeImages{}, nil, cfg.Images)
	h := NewRouter(NewHandler(coordinator, images, nil, cfg), cfg).Setup()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/leagues", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("fixture_cache")) {
		t.Error("fixture cache metrics not exposed")
	}
}
