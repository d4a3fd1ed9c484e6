package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"scorelens/internal/confidence"
	"scorelens/internal/workflow"
)

// gameDataFields fixes the review order of the metadata fields.
var gameDataFields = []struct {
	key   string
	label string
}{
	{workflow.FieldMap, "Map"},
	{workflow.FieldMode, "Mode"},
	{workflow.FieldTeamOne, "Team one"},
	{workflow.FieldTeamTwo, "Team two"},
	{workflow.FieldScoreOne, "Score one"},
	{workflow.FieldScoreTwo, "Score two"},
}

func confidenceTag(level confidence.Level) string {
	switch level {
	case confidence.Low:
		return "LOW - please check"
	case confidence.Medium:
		return "medium - please check"
	case confidence.LevelResolved:
		return "confirmed"
	default:
		return string(level)
	}
}

func metadataField(meta *confidence.Metadata, key string) (string, confidence.Level) {
	switch key {
	case workflow.FieldMap:
		return meta.Map.Value, meta.Map.Confidence
	case workflow.FieldMode:
		return meta.Mode.Value, meta.Mode.Confidence
	case workflow.FieldTeamOne:
		return meta.TeamOne.Value, meta.TeamOne.Confidence
	case workflow.FieldTeamTwo:
		return meta.TeamTwo.Value, meta.TeamTwo.Confidence
	case workflow.FieldScoreOne:
		return fmt.Sprintf("%d", meta.ScoreOne.Value), meta.ScoreOne.Confidence
	case workflow.FieldScoreTwo:
		return fmt.Sprintf("%d", meta.ScoreTwo.Value), meta.ScoreTwo.Confidence
	}
	return "", ""
}

// reviewGameData walks the map/mode/teams/scores screen: enter keeps a
// value, anything else replaces it.
func reviewGameData(ctrl *workflow.Controller, snap workflow.State) {
	fmt.Println("\n--- Game data ---")
	fmt.Println("Enter keeps the shown value, \"b\" starts over, \"q\" closes.")

	for _, field := range gameDataFields {
		value, level := metadataField(snap.Metadata, field.key)
		input, ok := promptLine(fmt.Sprintf("  %-10s %-18s [%s]: ", field.label, value, confidenceTag(level)))
		if !ok {
			ctrl.RequestClose()
			return
		}
		if strings.EqualFold(input, "b") {
			if err := ctrl.BackToIdle(); err == nil {
				fmt.Println("Back to the start; the upload is kept.")
			}
			return
		}
		if input == "" {
			continue
		}
		if err := ctrl.EditMetadata(field.key, input); err != nil {
			fmt.Printf("    %s\n", err)
		}
	}

	if err := ctrl.ConfirmGameData(); err != nil {
		fmt.Printf("\n  %s\n", err)
		printFieldErrors(ctrl.Snapshot().FieldErrors)
	}
}

// reviewScoreboard shows the stat table, then accepts edits as
// "player stat value" lines until the user confirms.
func reviewScoreboard(ctrl *workflow.Controller, snap workflow.State) {
	fmt.Println("\n--- Scoreboard ---")
	printStatTable(snap.PlayerStats)
	fmt.Println("Edit with \"<player> <stat> <value>\". Enter confirms, \"b\" goes back, \"q\" closes.")

	for {
		input, ok := promptLine("  > ")
		if !ok {
			ctrl.RequestClose()
			return
		}
		if strings.EqualFold(input, "b") {
			ctrl.BackToGameData()
			return
		}
		if input == "" {
			if err := ctrl.ConfirmScoreboard(); err != nil {
				fmt.Printf("  %s\n", err)
				printFieldErrors(ctrl.Snapshot().FieldErrors)
				continue
			}
			return
		}

		parts := strings.Fields(input)
		if len(parts) != 3 {
			fmt.Println("  expected: <player> <stat> <value>")
			continue
		}
		if err := ctrl.EditPlayerStat(parts[0], parts[1], parts[2]); err != nil {
			fmt.Printf("  %s\n", err)
			continue
		}
		printStatTable(ctrl.Snapshot().PlayerStats)
	}
}

// reviewFinal collects title, tournament, and date, then submits.
func reviewFinal(ctx context.Context, ctrl *workflow.Controller, snap workflow.State) {
	fmt.Println("\n--- Finalize ---")

	prompts := []struct {
		label   string
		current string
		set     func(string)
	}{
		{"Title", snap.Title, ctrl.SetTitle},
		{"Tournament", snap.Tournament, ctrl.SetTournament},
		{"Played (YYYY-MM-DD)", snap.PlayedAt, ctrl.SetPlayedAt},
	}
	for _, p := range prompts {
		label := p.label
		if p.current != "" {
			label += " [" + p.current + "]"
		}
		input, ok := promptLine("  " + label + ": ")
		if !ok {
			ctrl.RequestClose()
			return
		}
		if strings.EqualFold(input, "b") {
			ctrl.BackToScoreboard()
			return
		}
		if input != "" {
			p.set(input)
		}
	}

	if !promptYes("Submit this analysis?") {
		ctrl.RequestClose()
		return
	}
	if err := ctrl.Submit(ctx); err != nil {
		fmt.Printf("  %s\n", err)
		printFieldErrors(ctrl.Snapshot().FieldErrors)
		return
	}
	fmt.Println("Submitting...")

	// Block until the submission lands one way or the other.
	for {
		current := ctrl.Snapshot()
		if current.Closed || current.LastError != "" {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func printStatTable(players map[string]confidence.StatMap) {
	names := make([]string, 0, len(players))
	for name := range players {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := players[name]
		keys := make([]string, 0, len(stats))
		for key := range stats {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Printf("  %-12s", name)
		for _, key := range keys {
			v := stats[key]
			marker := ""
			if v.Uncertain() {
				marker = "?"
			}
			fmt.Printf(" %s=%d%s", key, v.Value, marker)
		}
		fmt.Println()
	}
	fmt.Println("  (? marks values the engine was unsure about)")
}

func printFieldErrors(fieldErrors map[string]string) {
	fields := make([]string, 0, len(fieldErrors))
	for field := range fieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Printf("    %s: %s\n", field, fieldErrors[field])
	}
}
