package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"scorelens/internal/confidence"
)

// Fixture is the offline extractor: it ignores the image bytes and returns a
// fixed hardpoint scoreboard with a realistic mix of confidence levels, so
// the review flow always has something uncertain to flag.
type Fixture struct{}

// NewFixture returns the canned extractor.
func NewFixture() *Fixture {
	return &Fixture{}
}

func (f *Fixture) Extract(_ context.Context, image []byte, _ string) (*confidence.ExtractedData, error) {
	log.Debug().Int("bytes", len(image)).Msg("Fixture extraction requested")

	return &confidence.ExtractedData{
		Metadata: confidence.Metadata{
			Map:      confidence.Value[string]{Value: "Karachi", Confidence: confidence.High},
			Mode:     confidence.Value[string]{Value: "hardpoint", Confidence: confidence.High},
			TeamOne:  confidence.Value[string]{Value: "OpTic Texas", Confidence: confidence.High},
			TeamTwo:  confidence.Value[string]{Value: "Atlanta FaZe", Confidence: confidence.Medium},
			ScoreOne: confidence.Value[int]{Value: 250, Confidence: confidence.High},
			ScoreTwo: confidence.Value[int]{Value: 198, Confidence: confidence.Low},
		},
		Players: []confidence.RawPlayer{
			{Name: "Dashy", Stats: confidence.StatMap{
				"kills":     {Value: 28, Confidence: confidence.High},
				"deaths":    {Value: 19, Confidence: confidence.High},
				"assists":   {Value: 7, Confidence: confidence.High},
				"hill_time": {Value: 94, Confidence: confidence.Low},
			}},
			{Name: "Shotzzy", Stats: confidence.StatMap{
				"kills":     {Value: 24, Confidence: confidence.Medium},
				"deaths":    {Value: 22, Confidence: confidence.High},
				"assists":   {Value: 11, Confidence: confidence.High},
				"hill_time": {Value: 121, Confidence: confidence.High},
			}},
			{Name: "Kenny", Stats: confidence.StatMap{
				"kills":     {Value: 21, Confidence: confidence.High},
				"deaths":    {Value: 20, Confidence: confidence.High},
				"assists":   {Value: 9, Confidence: confidence.Medium},
				"hill_time": {Value: 67, Confidence: confidence.High},
			}},
			{Name: "Pred", Stats: confidence.StatMap{
				"kills":     {Value: 30, Confidence: confidence.High},
				"deaths":    {Value: 18, Confidence: confidence.High},
				"assists":   {Value: 4, Confidence: confidence.High},
				"hill_time": {Value: 58, Confidence: confidence.Medium},
			}},
			{Name: "Simp", Stats: confidence.StatMap{
				"kills":     {Value: 26, Confidence: confidence.High},
				"deaths":    {Value: 21, Confidence: confidence.Low},
				"assists":   {Value: 8, Confidence: confidence.High},
				"hill_time": {Value: 103, Confidence: confidence.High},
			}},
		},
	}, nil
}
