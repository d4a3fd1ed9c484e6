// Package confidence models extracted scoreboard values as (value, confidence)
// pairs. Confidence is advisory: it drives review-step highlighting and never
// blocks submission. A user edit resolves a value to full trust, and Strip
// removes all tags to produce the submission-ready record.
package confidence

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Level is the extraction engine's trust in a single value.
type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"

	// LevelResolved marks a value the user has confirmed or edited.
	// It never arrives from the engine.
	LevelResolved Level = "resolved"
)

// Value is a scalar paired with its extraction confidence.
type Value[T any] struct {
	Value      T     `json:"value"`
	Confidence Level `json:"confidence"`
}

// Resolved wraps a user-supplied value with full trust.
func Resolved[T any](v T) Value[T] {
	return Value[T]{Value: v, Confidence: LevelResolved}
}

// Uncertain reports whether the value should be highlighted for review.
func (v Value[T]) Uncertain() bool {
	return v.Confidence == Low || v.Confidence == Medium
}

// Metadata is the match-level extraction result: map, game mode, both team
// names, and both scores, each tagged with provenance confidence until the
// user confirms or edits it.
type Metadata struct {
	Map      Value[string] `json:"map"`
	Mode     Value[string] `json:"mode"`
	TeamOne  Value[string] `json:"team_one"`
	TeamTwo  Value[string] `json:"team_two"`
	ScoreOne Value[int]    `json:"score_one"`
	ScoreTwo Value[int]    `json:"score_two"`
}

// StatMap holds one player's statistics keyed by stat name (e.g. "kills").
// The key set depends on the game mode.
type StatMap map[string]Value[int]

// ApplyEdit overwrites a single stat's value and marks it resolved. Other
// stats in the map are untouched.
func (m StatMap) ApplyEdit(statKey string, newValue int) {
	m[statKey] = Resolved(newValue)
}

// RawPlayer is one entry of the engine's per-player result array: a plain
// name plus stat fields as (value, confidence) pairs. The stat field set is
// open-ended because it varies by game mode.
type RawPlayer struct {
	Name  string
	Stats StatMap
}

// UnmarshalJSON decodes a player object of the form
//
//	{"name": "Dashy", "kills": {"value": 21, "confidence": "low"}, ...}
//
// treating every field other than "name" as a tagged stat.
func (p *RawPlayer) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	p.Stats = make(StatMap, len(fields))
	for key, raw := range fields {
		if key == "name" {
			if err := json.Unmarshal(raw, &p.Name); err != nil {
				return fmt.Errorf("player name: %w", err)
			}
			continue
		}
		var v Value[int]
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("player stat %q: %w", key, err)
		}
		p.Stats[key] = v
	}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON, flattening the stat map back
// alongside the name field.
func (p RawPlayer) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(p.Stats)+1)
	fields["name"] = p.Name
	for key, v := range p.Stats {
		fields[key] = v
	}
	return json.Marshal(fields)
}

// ExtractedData is the engine's completed-task payload.
type ExtractedData struct {
	Metadata Metadata    `json:"metadata"`
	Players  []RawPlayer `json:"players"`
}

// Initialize converts the engine's player array into the workflow's internal
// mapping, preserving each stat's (value, confidence) pairing. Entries with
// no name are dropped rather than promoted into the confirmed set; a
// duplicated name keeps the first occurrence.
func Initialize(raw []RawPlayer) map[string]StatMap {
	players := make(map[string]StatMap, len(raw))
	for _, p := range raw {
		if p.Name == "" {
			log.Warn().Int("stats", len(p.Stats)).Msg("Dropping extracted player with no name")
			continue
		}
		if _, exists := players[p.Name]; exists {
			log.Warn().Str("player", p.Name).Msg("Dropping duplicate extracted player entry")
			continue
		}

		stats := make(StatMap, len(p.Stats))
		for key, v := range p.Stats {
			stats[key] = v
		}
		players[p.Name] = stats
	}
	return players
}

// Strip produces the submission-ready mapping with all confidence tags
// removed, for every stat of every player. It is a pure function of the
// values: stripping an already-edited mapping yields the same result as
// stripping the original with the same values.
func Strip(players map[string]StatMap) map[string]map[string]int {
	plain := make(map[string]map[string]int, len(players))
	for name, stats := range players {
		entry := make(map[string]int, len(stats))
		for key, v := range stats {
			entry[key] = v.Value
		}
		plain[name] = entry
	}
	return plain
}
