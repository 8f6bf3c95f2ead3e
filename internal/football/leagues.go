// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package football

// League identifies a competition tracked by Golazod (api-football v3 IDs).
type League struct {
	Key  string `json:"key"`
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Category distinguishes cups and internationals from regular
	// league play; empty means domestic league.
	Category string `json:"category,omitempty"`

	// Season pins competitions that only ran in a specific season.
	Season int `json:"season,omitempty"`
}

// Leagues is the registry of competitions fetched by the fixture cache.
// Editing this list is enough; everything downstream keys off it.
var Leagues = []League{
	{Key: "premier-league", ID: 39, Name: "Premier League"},
	{Key: "la-liga", ID: 140, Name: "La Liga"},
	{Key: "serie-a", ID: 135, Name: "Serie A"},
	{Key: "bundesliga", ID: 78, Name: "Bundesliga"},
	{Key: "ligue-1", ID: 61, Name: "Ligue 1"},
	{Key: "saudi-pro-league", ID: 307, Name: "Saudi Pro League"},

	{Key: "ucl", ID: 2, Name: "UEFA Champions League"},
	{Key: "uel", ID: 3, Name: "UEFA Europa League"},
	{Key: "ucl-w", ID: 525, Name: "UCL Women"},

	{Key: "mls", ID: 253, Name: "MLS"},
	{Key: "mls-next-pro", ID: 909, Name: "MLS Next Pro"},
	{Key: "liga-mx", ID: 262, Name: "Liga MX"},
	{Key: "liga-profesional-argentina", ID: 128, Name: "Liga Profesional Argentina"},
	{Key: "colombia-primera-a", ID: 239, Name: "Colombia Primera A"},
	{Key: "copa-argentina", ID: 130, Name: "Copa Argentina", Category: "cup", Season: 2024},
	{Key: "copa-colombia", ID: 241, Name: "Copa Colombia", Category: "cup", Season: 2024},

	{Key: "brasil-serie-a", ID: 71, Name: "Brazil Serie A"},
	{Key: "aut-bundesliga", ID: 218, Name: "Austrian Bundesliga"},

	{Key: "world-cup", ID: 1, Name: "FIFA World Cup", Category: "international", Season: 2022},
	{Key: "club-world-cup", ID: 15, Name: "FIFA Club World Cup"},

	{Key: "euro-2024", ID: 4, Name: "UEFA Euro 2024", Category: "international", Season: 2024},
	{Key: "afcon-2025", ID: 6, Name: "Africa Cup of Nations 2025", Category: "international", Season: 2025},
	{Key: "asian-cup-2023", ID: 7, Name: "AFC Asian Cup 2023", Category: "international", Season: 2023},
	{Key: "fifa-intercontinental-2024", ID: 1168, Name: "FIFA Intercontinental Cup 2024", Category: "international", Season: 2024},
	{Key: "copa-america-2024", ID: 9, Name: "Copa America 2024", Category: "international", Season: 2024},
}

// Seasons lists the seasons queried for fixtures, newest first so the
// current season gets fetch priority.
var Seasons = []int{2025, 2024, 2023, 2022}

// DefaultTimezone is sent to the upstream API unless configured otherwise.
const DefaultTimezone = "UTC"

// LeagueByKey returns the league for a filter key, or false when unknown.
func LeagueByKey(key string) (League, bool) {
	for _, l := range Leagues {
		if l.Key == key {
			return l, true
		}
	}
	return League{}, false
}

// LeagueIDs returns the IDs of all registered leagues.
func LeagueIDs() []int64 {
	ids := make([]int64, len(Leagues))
	for i, l := range Leagues {
		ids[i] = l.ID
	}
	return ids
}

// LeagueIDsForFilter resolves a filter key to the league IDs it covers.
// An empty key or "all" selects every registered league; an unknown key
// selects nothing.
func LeagueIDsForFilter(filterKey string) []int64 {
	if filterKey == "" || filterKey == "all" {
		return LeagueIDs()
	}
	if l, ok := LeagueByKey(filterKey); ok {
		return []int64{l.ID}
	}
	return nil
}
