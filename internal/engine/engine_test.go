package engine

import (
	"context"
	"strings"
	"testing"

	"scorelens/internal/confidence"
)

func TestStatKeysForMode(t *testing.T) {
	cases := []struct {
		mode string
		want []string
	}{
		{"hardpoint", []string{"kills", "deaths", "assists", "hill_time"}},
		{"search", []string{"kills", "deaths", "assists", "plants", "defuses"}},
		{"control", []string{"kills", "deaths", "assists", "captures"}},
		{"unknown", []string{"kills", "deaths", "assists"}},
	}
	for _, tc := range cases {
		t.Run(tc.mode, func(t *testing.T) {
			got := StatKeysForMode(tc.mode)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("key[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestFixtureMatchesModeSchema(t *testing.T) {
	data, err := NewFixture().Extract(context.Background(), []byte("png bytes"), "image/png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(data.Players) == 0 {
		t.Fatal("fixture has no players")
	}

	keys := StatKeysForMode(data.Metadata.Mode.Value)
	for _, p := range data.Players {
		if p.Name == "" {
			t.Error("fixture player with no name")
		}
		if len(p.Stats) != len(keys) {
			t.Errorf("player %s has %d stats, want %d", p.Name, len(p.Stats), len(keys))
		}
		for _, key := range keys {
			v, ok := p.Stats[key]
			if !ok {
				t.Errorf("player %s missing stat %q", p.Name, key)
				continue
			}
			switch v.Confidence {
			case confidence.High, confidence.Medium, confidence.Low:
			default:
				t.Errorf("player %s stat %s has confidence %q", p.Name, key, v.Confidence)
			}
		}
	}
}

func TestFixtureFlagsSomethingUncertain(t *testing.T) {
	data, err := NewFixture().Extract(context.Background(), nil, "image/png")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	uncertain := data.Metadata.ScoreTwo.Uncertain() || data.Metadata.TeamTwo.Uncertain()
	for _, p := range data.Players {
		for _, v := range p.Stats {
			if v.Uncertain() {
				uncertain = true
			}
		}
	}
	if !uncertain {
		t.Error("fixture carries nothing for the review flow to flag")
	}
}

const sampleExtraction = `{
  "metadata": {
    "map": {"value": "Karachi", "confidence": "high"},
    "mode": {"value": "hardpoint", "confidence": "high"},
    "team_one": {"value": "OpTic Texas", "confidence": "high"},
    "team_two": {"value": "Atlanta FaZe", "confidence": "medium"},
    "score_one": {"value": 250, "confidence": "high"},
    "score_two": {"value": 198, "confidence": "low"}
  },
  "players": [
    {"name": "Dashy", "kills": {"value": 28, "confidence": "high"}}
  ]
}`

func TestParseExtraction(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bare json", sampleExtraction},
		{"fenced", "```json\n" + sampleExtraction + "\n```"},
		{"fenced no language", "```\n" + sampleExtraction + "\n```"},
		{"prose wrapped", "Here is the scoreboard:\n\n" + sampleExtraction + "\n\nLet me know if you need anything else."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := parseExtraction(tc.raw)
			if err != nil {
				t.Fatalf("parseExtraction: %v", err)
			}
			if got := data.Metadata.Map.Value; got != "Karachi" {
				t.Errorf("map = %q, want Karachi", got)
			}
			if len(data.Players) != 1 || data.Players[0].Name != "Dashy" {
				t.Errorf("players = %+v", data.Players)
			}
			if got := data.Players[0].Stats["kills"].Value; got != 28 {
				t.Errorf("kills = %d, want 28", got)
			}
		})
	}
}

func TestParseExtractionRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"no json", "I could not read the scoreboard."},
		{"truncated", `{"metadata": {"map": {"value": "Kara`},
		{"no players", `{"metadata": {}, "players": []}`},
		{"nameless players", `{"metadata": {}, "players": [{"kills": {"value": 3, "confidence": "high"}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseExtraction(tc.raw); err == nil {
				t.Error("parseExtraction accepted bad input")
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	if got := stripFences("```json\n{\"a\":1}\n```"); strings.TrimSpace(got) != `{"a":1}` {
		t.Errorf("stripFences = %q", got)
	}
	if got := stripFences(`{"a":1}`); got != `{"a":1}` {
		t.Errorf("stripFences altered unfenced text: %q", got)
	}
}
