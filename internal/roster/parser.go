// Rosterline - Fantasy Roster Read-Through Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rosterline

package roster

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Parser diagnostics. An empty diagnostic means at least one player was
// extracted. The two non-empty values are distinct on purpose: "empty"
// is a structurally valid payload with zero players (e.g. pre-draft),
// "shape_unrecognized" means the payload did not match any known format.
const (
	DiagEmpty             = "empty"
	DiagShapeUnrecognized = "shape_unrecognized"
)

// containerPath is the fixed nesting path from the payload root to the
// container holding player entries. Each link tolerates the upstream's
// habit of wrapping objects in fragment arrays.
var containerPath = []string{"fantasy_content", "team", "roster", "players"}

// fieldSource is one tagged candidate location for a player field.
// Sources are tried in priority order; the first hit wins. New upstream
// shape variants are added here, not as nested conditionals.
type fieldSource struct {
	tag     string
	extract func(record map[string]interface{}) (string, bool)
}

var (
	nameSources = []fieldSource{
		{tag: "name.full", extract: stringAt("name", "full")},
		{tag: "full_name", extract: stringAt("full_name")},
		{tag: "name.first+last", extract: composedName([]string{"name", "first"}, []string{"name", "last"})},
		{tag: "first+last", extract: composedName([]string{"first_name"}, []string{"last_name"})},
		{tag: "name", extract: stringAt("name")},
	}

	teamSources = []fieldSource{
		{tag: "editorial_team_abbr", extract: stringAt("editorial_team_abbr")},
		{tag: "team_abbr", extract: stringAt("team_abbr")},
		{tag: "team", extract: stringAt("team")},
	}

	positionSources = []fieldSource{
		{tag: "selected_position.position", extract: stringAt("selected_position", "position")},
		{tag: "selected_position", extract: stringAt("selected_position")},
		{tag: "display_position", extract: stringAt("display_position")},
		{tag: "primary_position", extract: stringAt("primary_position")},
	}

	statusSources = []fieldSource{
		{tag: "status", extract: stringAt("status")},
		{tag: "injury_status", extract: stringAt("injury_status")},
	}

	pointsSources = []fieldSource{
		{tag: "player_points.total", extract: rawAt("player_points", "total")},
		{tag: "points.total", extract: rawAt("points", "total")},
		{tag: "total_points", extract: rawAt("total_points")},
		{tag: "points", extract: rawAt("points")},
	}
)

// Parse maps a raw upstream payload to canonical players plus a
// diagnostic. It never fails: structural surprises degrade to an empty
// list with a non-empty diagnostic, never to an error or partial
// garbage. Parsing the same payload twice yields identical results.
func Parse(raw []byte) (players []Player, diagnostic string) {
	// A malformed payload must never take down a request; any panic in
	// the traversal maps to the shape diagnostic.
	defer func() {
		if r := recover(); r != nil {
			players = nil
			diagnostic = DiagShapeUnrecognized
		}
	}()

	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, DiagShapeUnrecognized
	}

	container, ok := locateContainer(root)
	if !ok {
		return nil, DiagShapeUnrecognized
	}

	records, ok := enumerateEntries(container)
	if !ok {
		return nil, DiagShapeUnrecognized
	}

	players = make([]Player, 0, len(records))
	for _, record := range records {
		players = append(players, extractPlayer(record))
	}

	if len(players) == 0 {
		return nil, DiagEmpty
	}
	return players, ""
}

// locateContainer walks containerPath from the root. Any missing or
// mistyped link aborts the walk.
func locateContainer(root interface{}) (interface{}, bool) {
	node := root
	for _, key := range containerPath {
		node = step(node, key)
		if node == nil {
			return nil, false
		}
	}
	return node, true
}

// step resolves one path link. Array nodes are fragment lists and are
// shallow-merged before the key lookup.
func step(node interface{}, key string) interface{} {
	switch v := node.(type) {
	case map[string]interface{}:
		return v[key]
	case []interface{}:
		return mergeFragments(v)[key]
	default:
		return nil
	}
}

// enumerateEntries lists the player records inside the container in a
// stable order. Map containers use the upstream convention of
// numeric-string keys with sentinel siblings (such as "count") that are
// metadata, not entries. Returns false if the container itself is not a
// recognizable collection.
func enumerateEntries(container interface{}) ([]map[string]interface{}, bool) {
	switch v := container.(type) {
	case map[string]interface{}:
		indices := make([]int, 0, len(v))
		for key := range v {
			if idx, err := strconv.Atoi(key); err == nil {
				indices = append(indices, idx)
			}
		}
		sort.Ints(indices)

		records := make([]map[string]interface{}, 0, len(indices))
		for _, idx := range indices {
			if record := entryRecord(v[strconv.Itoa(idx)]); record != nil {
				records = append(records, record)
			}
		}
		return records, true

	case []interface{}:
		records := make([]map[string]interface{}, 0, len(v))
		for _, entry := range v {
			if record := entryRecord(entry); record != nil {
				records = append(records, record)
			}
		}
		return records, true

	default:
		return nil, false
	}
}

// entryRecord flattens one container entry into a single record.
// Entries arrive either as {"player": <fragments>} wrappers, as bare
// fragment arrays, or as plain objects.
func entryRecord(entry interface{}) map[string]interface{} {
	if m, ok := entry.(map[string]interface{}); ok {
		if inner, found := m["player"]; found {
			entry = inner
		}
	}

	switch v := entry.(type) {
	case []interface{}:
		merged := mergeFragments(v)
		if len(merged) == 0 {
			return nil
		}
		return merged
	case map[string]interface{}:
		return v
	default:
		return nil
	}
}

// mergeFragments shallow-merges a fragment array into one record.
// First-seen wins: the upstream puts the most specific data first, so
// later fragments never overwrite fields already set. Nested fragment
// groups are flattened.
func mergeFragments(fragments []interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, fragment := range fragments {
		switch v := fragment.(type) {
		case map[string]interface{}:
			for key, value := range v {
				if _, seen := merged[key]; !seen {
					merged[key] = value
				}
			}
		case []interface{}:
			for key, value := range mergeFragments(v) {
				if _, seen := merged[key]; !seen {
					merged[key] = value
				}
			}
		}
	}
	return merged
}

// extractPlayer builds one canonical Player from a merged record using
// the per-field source priority lists.
func extractPlayer(record map[string]interface{}) Player {
	player := Player{
		Name:     firstMatch(record, nameSources, UnknownPlayerName),
		Team:     firstMatch(record, teamSources, ""),
		Position: firstMatch(record, positionSources, DefaultPosition),
		Status:   firstMatch(record, statusSources, ""),
	}
	player.Points = safeFloat(firstMatch(record, pointsSources, ""))
	return player
}

// firstMatch returns the first source that yields a non-empty value, or
// the fallback.
func firstMatch(record map[string]interface{}, sources []fieldSource, fallback string) string {
	for _, source := range sources {
		if value, ok := source.extract(record); ok && value != "" {
			return value
		}
	}
	return fallback
}

// stringAt returns an extractor for a string value at the given path.
func stringAt(path ...string) func(map[string]interface{}) (string, bool) {
	return func(record map[string]interface{}) (string, bool) {
		value := valueAt(record, path)
		s, ok := value.(string)
		return strings.TrimSpace(s), ok
	}
}

// rawAt returns an extractor that stringifies whatever scalar sits at
// the given path, for fields that arrive as either numbers or strings.
func rawAt(path ...string) func(map[string]interface{}) (string, bool) {
	return func(record map[string]interface{}) (string, bool) {
		switch v := valueAt(record, path).(type) {
		case string:
			return strings.TrimSpace(v), true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case json.Number:
			return v.String(), true
		default:
			return "", false
		}
	}
}

// composedName returns an extractor joining first and last name parts.
func composedName(firstPath, lastPath []string) func(map[string]interface{}) (string, bool) {
	return func(record map[string]interface{}) (string, bool) {
		first, _ := valueAt(record, firstPath).(string)
		last, _ := valueAt(record, lastPath).(string)
		full := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
		return full, full != ""
	}
}

// valueAt descends a path inside a record, tolerating fragment arrays
// at every level.
func valueAt(record map[string]interface{}, path []string) interface{} {
	var node interface{} = record
	for _, key := range path {
		node = step(node, key)
		if node == nil {
			return nil
		}
	}
	return node
}

// safeFloat coerces a stringified numeric to a finite float64. Anything
// unparseable, NaN or infinite normalizes to 0.
func safeFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
