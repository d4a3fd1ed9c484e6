package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"scorelens/internal/confidence"
)

// DefaultModelName is the Gemini model used for extraction unless overridden
// via the GEMINI_MODEL environment variable.
const DefaultModelName = "gemini-3-flash-preview"

// ModelName resolves the Gemini model to use.
func ModelName() string {
	if env := os.Getenv("GEMINI_MODEL"); env != "" {
		return env
	}
	return DefaultModelName
}

const extractionSystemPrompt = `You read esports scoreboard screenshots and return their contents as JSON.

Return ONLY a JSON object with this exact shape, no prose:

{
  "metadata": {
    "map":       {"value": "<map name>",       "confidence": "<high|medium|low>"},
    "mode":      {"value": "<game mode>",      "confidence": "<high|medium|low>"},
    "team_one":  {"value": "<left team>",      "confidence": "<high|medium|low>"},
    "team_two":  {"value": "<right team>",     "confidence": "<high|medium|low>"},
    "score_one": {"value": <left score>,       "confidence": "<high|medium|low>"},
    "score_two": {"value": <right score>,      "confidence": "<high|medium|low>"}
  },
  "players": [
    {"name": "<player>", "kills": {"value": <n>, "confidence": "..."}, ...}
  ]
}

Game mode is one of: hardpoint, search, control. Every player object carries
"name" plus one {"value", "confidence"} pair per stat column visible on the
scoreboard (kills, deaths, assists, and the mode's objective stat such as
hill_time, plants/defuses, or captures). Use "low" confidence for any value
that is occluded, blurry, or partially cut off rather than guessing silently.`

// Gemini extracts scoreboard data by sending the screenshot to the Gemini
// vision API and parsing the model's JSON reply.
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a Gemini-backed extractor.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini extraction")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = ModelName()
	}
	return &Gemini{client: client, modelName: modelName}, nil
}

func (g *Gemini) Extract(ctx context.Context, image []byte, mimeType string) (*confidence.ExtractedData, error) {
	start := time.Now()

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: extractionSystemPrompt}},
		},
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			{Text: "Extract this scoreboard."},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Gemini extraction call: %w", err)
	}
	if resp == nil || resp.Text() == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	log.Debug().
		Str("model", g.modelName).
		Int("response_length", len(resp.Text())).
		Dur("duration", time.Since(start)).
		Msg("Gemini extraction response received")

	data, err := parseExtraction(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("parse Gemini response: %w", err)
	}
	return data, nil
}
