// Package engine extracts scoreboard data from screenshots for the dev
// server. Two implementations exist: a deterministic fixture for offline
// development, and a Gemini-vision extractor for realistic end-to-end runs.
// Both produce the same confidence-tagged result shape the workflow reviews.
package engine

import (
	"context"

	"scorelens/internal/confidence"
)

// Extractor turns a screenshot into confidence-tagged scoreboard data.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*confidence.ExtractedData, error)
}

// Stat keys shared by every game mode.
var baseStatKeys = []string{"kills", "deaths", "assists"}

// StatKeysForMode returns the stat columns a scoreboard carries for the
// given game mode. Unknown modes get the shared base set.
func StatKeysForMode(mode string) []string {
	keys := make([]string, len(baseStatKeys), len(baseStatKeys)+2)
	copy(keys, baseStatKeys)
	switch mode {
	case "hardpoint":
		return append(keys, "hill_time")
	case "search":
		return append(keys, "plants", "defuses")
	case "control":
		return append(keys, "captures")
	}
	return keys
}
