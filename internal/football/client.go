// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package football provides the api-football.com v3 client used as the
// remote data source for the fixture and image caches, plus the fixture
// models and the league registry.
//
// The client layers three protections in front of the upstream API:
// a token-bucket request limiter, a process-wide backoff window armed by
// HTTP 429 responses, and (via NewBreakerSource) a circuit breaker.
package football

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/golazo-live/golazod/internal/config"
	"github.com/golazo-live/golazod/internal/logging"
	"github.com/golazo-live/golazod/internal/metrics"
)

// ErrRateLimited is returned while the process-wide backoff window armed
// by an upstream 429 is still open. Callers treat it as a transient
// failure and keep whatever data they already have.
var ErrRateLimited = errors.New("football: rate limit backoff active")

// Source is the remote data source contract consumed by the fixture
// cache coordinator. Implementations must be safe to call repeatedly
// with the same arguments (idempotent reads) and should tolerate partial
// failures by returning whatever succeeded.
type Source interface {
	// FixturesByDate fetches fixtures for one date across a set of
	// leagues and seasons (the "all" filter).
	FixturesByDate(ctx context.Context, date string, leagueIDs []int64, seasons []int, tz string) ([]RawFixture, error)

	// FixturesForLeague fetches fixtures for one date, league and season.
	FixturesForLeague(ctx context.Context, leagueID int64, season int, date, tz string) ([]RawFixture, error)
}

// ImageSource resolves team/league crests and player photos to URLs for
// the image resolution cache.
type ImageSource interface {
	TeamLogo(ctx context.Context, teamID int64, name string) (string, error)
	LeagueLogo(ctx context.Context, leagueID int64, name string) (string, error)
	PlayerPhoto(ctx context.Context, playerID int64, name string, teamID int64) (string, error)
}

// bulkWorkers bounds concurrent upstream requests inside one bulk fetch.
const bulkWorkers = 5

// Client talks to api-football.com v3.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timezone   string
	limiter    *rate.Limiter

	// backoff window state, armed on HTTP 429
	mu             sync.Mutex
	limitedUntil   time.Time
	backoffDefault time.Duration
}

// NewClient creates an api-football client from configuration.
func NewClient(cfg *config.FootballConfig) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		timezone:       cfg.Timezone,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		backoffDefault: cfg.BackoffDefault,
	}
}

// envelope is the api-football v3 response wrapper.
type envelope struct {
	Response json.RawMessage `json:"response"`
}

// rateLimited reports whether the backoff window is open.
func (c *Client) rateLimited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Before(c.limitedUntil)
}

// armBackoff opens the process-wide backoff window, honoring the
// Retry-After header when present.
func (c *Client) armBackoff(retryAfter string) {
	delay := c.backoffDefault
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
	}
	c.mu.Lock()
	c.limitedUntil = time.Now().Add(delay)
	c.mu.Unlock()
	logging.Warn().Dur("backoff", delay).Msg("upstream rate limited, backing off")
}

// get performs one API request and returns the raw "response" array.
func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if c.rateLimited() {
		metrics.RateLimitRejections.Inc()
		return nil, ErrRateLimited
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-apisports-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.armBackoff(resp.Header.Get("Retry-After"))
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response %s: %w", path, err)
	}
	return env.Response, nil
}

// fixtures runs one /fixtures query.
func (c *Client) fixtures(ctx context.Context, params url.Values) ([]RawFixture, error) {
	raw, err := c.get(ctx, "/fixtures", params)
	if err != nil {
		return nil, err
	}
	var rows []RawFixture
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return rows, nil
}

// FixturesForLeague fetches fixtures for a single (league, season, date).
func (c *Client) FixturesForLeague(ctx context.Context, leagueID int64, season int, date, tz string) ([]RawFixture, error) {
	if tz == "" {
		tz = c.timezone
	}
	params := url.Values{}
	params.Set("league", strconv.FormatInt(leagueID, 10))
	params.Set("season", strconv.Itoa(season))
	params.Set("date", date)
	params.Set("timezone", tz)
	return c.fixtures(ctx, params)
}

// FixturesByDate fans out over (season x league) queries with bounded
// concurrency and merges the results. Individual query failures are
// logged and skipped so one bad league does not lose the whole date;
// only a fully failed sweep (or an open backoff window) returns an error.
func (c *Client) FixturesByDate(ctx context.Context, date string, leagueIDs []int64, seasons []int, tz string) ([]RawFixture, error) {
	if c.rateLimited() {
		metrics.RateLimitRejections.Inc()
		return nil, ErrRateLimited
	}

	type task struct {
		leagueID int64
		season   int
	}
	tasks := make(chan task)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rows     []RawFixture
		failures int
		total    int
	)

	for range bulkWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				got, err := c.FixturesForLeague(ctx, t.leagueID, t.season, date, tz)
				mu.Lock()
				if err != nil {
					failures++
					if !errors.Is(err, ErrRateLimited) && !errors.Is(err, context.Canceled) {
						logging.Warn().Err(err).
							Int64("league", t.leagueID).
							Int("season", t.season).
							Str("date", date).
							Msg("bulk fixture query failed")
					}
				} else {
					rows = append(rows, got...)
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, season := range seasons {
		for _, id := range leagueIDs {
			select {
			case tasks <- task{leagueID: id, season: season}:
				total++
			case <-ctx.Done():
				break feed
			}
		}
	}
	close(tasks)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if total > 0 && failures == total {
		if c.rateLimited() {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("football: all %d fixture queries failed for %s", total, date)
	}
	return rows, nil
}

// namedURL is a (name, url) result from a lookup endpoint.
type namedURL struct {
	Name string
	URL  string
}

// pickByName returns the URL whose name matches wanted exactly
// (case-insensitive), else the first row's URL.
func pickByName(rows []namedURL, wanted string) string {
	if len(rows) == 0 {
		return ""
	}
	wantedLC := strings.ToLower(strings.TrimSpace(wanted))
	for _, r := range rows {
		if strings.ToLower(strings.TrimSpace(r.Name)) == wantedLC {
			return r.URL
		}
	}
	return rows[0].URL
}

// TeamLogo resolves a team crest URL by ID, else by name search.
func (c *Client) TeamLogo(ctx context.Context, teamID int64, name string) (string, error) {
	params := url.Values{}
	switch {
	case teamID != 0:
		params.Set("id", strconv.FormatInt(teamID, 10))
	case name != "":
		params.Set("search", name)
	default:
		return "", nil
	}

	raw, err := c.get(ctx, "/teams", params)
	if err != nil {
		return "", err
	}
	var rows []struct {
		Team struct {
			Name string `json:"name"`
			Logo string `json:"logo"`
		} `json:"team"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return "", fmt.Errorf("decode teams: %w", err)
	}
	candidates := make([]namedURL, len(rows))
	for i, r := range rows {
		candidates[i] = namedURL{Name: r.Team.Name, URL: r.Team.Logo}
	}
	return pickByName(candidates, name), nil
}

// LeagueLogo resolves a league crest URL by ID, else by name.
func (c *Client) LeagueLogo(ctx context.Context, leagueID int64, name string) (string, error) {
	params := url.Values{}
	switch {
	case leagueID != 0:
		params.Set("id", strconv.FormatInt(leagueID, 10))
	case name != "":
		params.Set("name", name)
	default:
		return "", nil
	}

	raw, err := c.get(ctx, "/leagues", params)
	if err != nil {
		return "", err
	}
	var rows []struct {
		League struct {
			Name string `json:"name"`
			Logo string `json:"logo"`
		} `json:"league"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return "", fmt.Errorf("decode leagues: %w", err)
	}
	candidates := make([]namedURL, len(rows))
	for i, r := range rows {
		candidates[i] = namedURL{Name: r.League.Name, URL: r.League.Logo}
	}
	return pickByName(candidates, name), nil
}

// PlayerPhoto resolves a player photo URL by ID, else by name search
// optionally scoped to a team.
func (c *Client) PlayerPhoto(ctx context.Context, playerID int64, name string, teamID int64) (string, error) {
	params := url.Values{}
	params.Set("season", strconv.Itoa(Seasons[0]))
	switch {
	case playerID != 0:
		params.Set("id", strconv.FormatInt(playerID, 10))
	case name != "":
		params.Set("search", name)
		if teamID != 0 {
			params.Set("team", strconv.FormatInt(teamID, 10))
		}
	default:
		return "", nil
	}

	raw, err := c.get(ctx, "/players", params)
	if err != nil {
		return "", err
	}
	var rows []struct {
		Player struct {
			Name  string `json:"name"`
			Photo string `json:"photo"`
		} `json:"player"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return "", fmt.Errorf("decode players: %w", err)
	}
	candidates := make([]namedURL, len(rows))
	for i, r := range rows {
		candidates[i] = namedURL{Name: r.Player.Name, URL: r.Player.Photo}
	}
	return pickByName(candidates, name), nil
}
