// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package imagecache

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Kind is the image subject type.
type Kind string

const (
	KindTeam   Kind = "team"
	KindLeague Kind = "league"
	KindPlayer Kind = "player"
)

// Identity names an image subject. Either ID or Name (or both) must be
// set; DirectURL optionally carries a candidate URL from the caller's
// payload that short-circuits the API lookup.
type Identity struct {
	Kind Kind   `json:"kind"`
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	// TeamID narrows player photo searches by name.
	TeamID int64 `json:"team_id,omitempty"`

	// DirectURL bypasses the API lookup when set and valid.
	DirectURL string `json:"-"`
}

// Valid reports whether the identity carries enough to resolve.
func (id Identity) Valid() bool {
	return id.Kind != "" && (id.ID != 0 || id.Name != "" || id.DirectURL != "")
}

// Provided reports whether the identity carries its own URL.
func (id Identity) Provided() bool {
	return id.DirectURL != ""
}

// CacheKey builds the deterministic hashed key for an identity. The
// logical fields are canonicalized (lowercased, trimmed name) and
// FNV-1a hashed so names with unicode or punctuation never leak into
// store keys. The provided flag is part of the identity: a payload
// that supplies its own URL caches separately from an API-resolved
// subject.
func (id Identity) CacheKey() string {
	canonical := fmt.Sprintf("%s|%d|%s|%d|%t",
		id.Kind, id.ID, strings.ToLower(strings.TrimSpace(id.Name)), id.TeamID, id.Provided())
	h := fnv.New64a()
	h.Write([]byte(canonical))
	return fmt.Sprintf("%s:%016x", id.Kind, h.Sum64())
}

// String is the human-readable form used in logs.
func (id Identity) String() string {
	if id.Name != "" {
		return fmt.Sprintf("%s/%s(%d)", id.Kind, id.Name, id.ID)
	}
	return fmt.Sprintf("%s/%d", id.Kind, id.ID)
}
