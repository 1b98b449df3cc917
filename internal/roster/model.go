// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

// Package roster defines the canonical roster model and the tolerant
// parser that maps heterogeneous upstream payload shapes onto it.
package roster

// UnknownPlayerName is the sentinel used when no name field can be
// extracted from an upstream player record.
const UnknownPlayerName = "Unknown Player"

// DefaultPosition is the roster-slot code used when the upstream record
// carries no recognizable position.
const DefaultPosition = "BN"

// Player is one normalized roster entry. Instances are immutable once
// produced by the parser; a new parse produces a new list.
type Player struct {
	// Name is never empty; it falls back to UnknownPlayerName.
	Name string `json:"name"`

	// Team is the upstream pro-team abbreviation, or empty.
	Team string `json:"team,omitempty"`

	// Position is the roster-slot code (e.g. "QB", "BN").
	Position string `json:"position"`

	// Status is an optional injury/availability code (e.g. "Q", "IR").
	Status string `json:"status,omitempty"`

	// Points is always a finite number; absent or unparseable upstream
	// values normalize to 0.
	Points float64 `json:"points"`
}

// Roster is the canonical payload served by the gateway.
type Roster struct {
	Players []Player `json:"players"`

	// ResolvedWeek is the scoring period actually served. Zero means the
	// upstream default/current window, which may differ from the week the
	// caller requested when a fallback path variant was used.
	ResolvedWeek int `json:"resolved_week"`
}
