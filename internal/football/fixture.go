// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package football

import (
	"fmt"
	"time"
)

// RawFixture mirrors one element of the api-football v3 /fixtures
// response array. Only the fields the cache keys and merges on are
// decoded; the rest of the payload is dropped.
type RawFixture struct {
	Fixture struct {
		ID     int64     `json:"id"`
		Date   time.Time `json:"date"`
		Status struct {
			Short   string `json:"short"`
			Elapsed int    `json:"elapsed"`
		} `json:"status"`
		Venue struct {
			Name string `json:"name"`
		} `json:"venue"`
		Referee string `json:"referee"`
	} `json:"fixture"`
	League struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Round string `json:"round"`
		Logo  string `json:"logo"`
	} `json:"league"`
	Teams struct {
		Home RawTeam `json:"home"`
		Away RawTeam `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
}

// RawTeam is one side of a raw fixture.
type RawTeam struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo"`
	Winner *bool  `json:"winner"`
}

// Fixture is the processed fixture card cached and served to UI clients.
type Fixture struct {
	ID          int64     `json:"id"`
	Kickoff     time.Time `json:"kickoff"`
	LeagueID    int64     `json:"leagueId"`
	LeagueName  string    `json:"leagueName"`
	LeagueRound string    `json:"leagueRound,omitempty"`
	LeagueLogo  string    `json:"leagueLogo,omitempty"`
	Home        TeamSide  `json:"home"`
	Away        TeamSide  `json:"away"`
	Score       Score     `json:"score"`
	StatusShort string    `json:"statusShort"`
	Minute      string    `json:"minute"`
	Venue       string    `json:"venue,omitempty"`
	Referee     string    `json:"referee,omitempty"`
}

// TeamSide describes one team in a fixture card.
type TeamSide struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Logo   string `json:"logo,omitempty"`
	Winner *bool  `json:"winner,omitempty"`
}

// Score holds the current goal tally; nil means not started.
type Score struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// MapFixture converts a raw API fixture into the cached card shape.
func MapFixture(raw RawFixture) Fixture {
	return Fixture{
		ID:          raw.Fixture.ID,
		Kickoff:     raw.Fixture.Date,
		LeagueID:    raw.League.ID,
		LeagueName:  raw.League.Name,
		LeagueRound: raw.League.Round,
		LeagueLogo:  raw.League.Logo,
		Home: TeamSide{
			ID:     raw.Teams.Home.ID,
			Name:   raw.Teams.Home.Name,
			Logo:   raw.Teams.Home.Logo,
			Winner: raw.Teams.Home.Winner,
		},
		Away: TeamSide{
			ID:     raw.Teams.Away.ID,
			Name:   raw.Teams.Away.Name,
			Logo:   raw.Teams.Away.Logo,
			Winner: raw.Teams.Away.Winner,
		},
		Score: Score{
			Home: raw.Goals.Home,
			Away: raw.Goals.Away,
		},
		StatusShort: raw.Fixture.Status.Short,
		Minute:      minuteLabel(raw.Fixture.Status.Short, raw.Fixture.Status.Elapsed),
		Venue:       raw.Fixture.Venue.Name,
		Referee:     raw.Fixture.Referee,
	}
}

// minuteLabel derives the display minute from the short status code.
func minuteLabel(statusShort string, elapsed int) string {
	switch statusShort {
	case "1H", "2H", "ET", "LIVE":
		return fmt.Sprintf("%d'", elapsed)
	case "HT":
		return "HT"
	case "FT":
		return "FT"
	default:
		return statusShort
	}
}

// DedupeFixtures removes duplicate fixture IDs, keeping the first
// occurrence. Duplicates arise when the same match appears in multiple
// season or league queries.
func DedupeFixtures(list []RawFixture) []RawFixture {
	seen := make(map[int64]struct{}, len(list))
	out := make([]RawFixture, 0, len(list))
	for _, f := range list {
		id := f.Fixture.ID
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, f)
	}
	return out
}

// ProcessFixtures dedupes raw records and maps them to fixture cards.
func ProcessFixtures(rows []RawFixture) []Fixture {
	deduped := DedupeFixtures(rows)
	cards := make([]Fixture, len(deduped))
	for i, r := range deduped {
		cards[i] = MapFixture(r)
	}
	return cards
}
