package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"scorelens/internal/confidence"
)

// parseExtraction decodes a model reply into scoreboard data. Model output is
// not trusted to be bare JSON: markdown fences and surrounding prose are
// stripped before decoding, and a result with no usable players is rejected
// so the task fails loudly instead of presenting an empty review.
func parseExtraction(raw string) (*confidence.ExtractedData, error) {
	text := stripFences(raw)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response (length %d)", len(raw))
	}

	var data confidence.ExtractedData
	if err := json.Unmarshal([]byte(text[start:end+1]), &data); err != nil {
		preview := text[start : end+1]
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}

	named := 0
	for _, p := range data.Players {
		if p.Name != "" {
			named++
		}
	}
	if named == 0 {
		return nil, fmt.Errorf("extraction contained no named players")
	}
	return &data, nil
}

// stripFences removes a ```json ... ``` or ``` ... ``` wrapper if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}
	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}
