// Package main is the interactive ingestion client: pick a scoreboard
// screenshot, upload it, wait for extraction, review the confidence-tagged
// results field by field, and submit the finished analysis.
//
// Typing "q" at any prompt asks to close; with unsaved edits a confirmation
// follows, and declining it resumes exactly where the workflow was.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"scorelens/internal/api"
	"scorelens/internal/imagecheck"
	"scorelens/internal/logging"
	"scorelens/internal/workflow"
)

var (
	fileFlag   string
	serverFlag string
)

var rootCmd = &cobra.Command{
	Use:   "scorelens",
	Short: "Ingest an esports scoreboard screenshot into an analysis",
	Long: `Scorelens uploads a scoreboard screenshot, has the engine read it, and walks
you through confirming the extracted game data and player stats before the
analysis is saved.

Screenshots must be 1920x1080 JPEG or PNG. Values the engine was unsure
about are flagged for review; everything can be corrected inline.

Examples:
  scorelens                                  # file picker
  scorelens --file ~/captures/map3.png
  scorelens --server http://localhost:9090`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "Screenshot to ingest (default: file picker)")
	rootCmd.Flags().StringVar(&serverFlag, "server", "", "API base URL (default: SCORELENS_API_BASE or http://localhost:8080)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var stdin = bufio.NewReader(os.Stdin)

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	baseURL := serverFlag
	if baseURL == "" {
		baseURL = logging.EnvOrDefault("SCORELENS_API_BASE", "http://localhost:8080")
	}

	ctrl := workflow.New(api.NewClient(baseURL))
	ctx := context.Background()

	path := fileFlag
	if path == "" {
		picked, err := pickScreenshot()
		if err != nil {
			if errors.Is(err, zenity.ErrCanceled) {
				fmt.Println("No file selected.")
				return
			}
			log.Fatal().Err(err).Msg("File picker failed")
		}
		path = picked
	}

	for {
		if err := ctrl.SelectFile(path); err != nil {
			fmt.Printf("\n  %s\n\n", err)
			picked, pickErr := pickScreenshot()
			if pickErr != nil {
				return
			}
			path = picked
			continue
		}
		break
	}

	snap := ctrl.Snapshot()
	fmt.Printf("\nSelected %s (%dx%d %s)\n", path, snap.SelectedFile.Width, snap.SelectedFile.Height, snap.SelectedFile.Format)
	if preview := writePreview(path); preview != "" {
		fmt.Printf("Preview: %s\n", preview)
	}
	if !promptYes("Upload and process this screenshot?") {
		return
	}

	if err := ctrl.StartProcessing(ctx); err != nil {
		log.Fatal().Err(err).Msg("Could not start processing")
	}
	fmt.Println("\nUploading and processing...")

	runDialog(ctx, ctrl)
}

// runDialog drives the controller until the workflow closes.
func runDialog(ctx context.Context, ctrl *workflow.Controller) {
	for {
		snap := waitForSettled(ctrl)
		if snap.Closed {
			if snap.SubmittedID != "" {
				fmt.Printf("\nAnalysis saved: %s\n", snap.SubmittedID)
			} else {
				fmt.Println("\nDiscarded.")
			}
			return
		}
		if snap.LastError != "" {
			fmt.Printf("\n  %s\n", snap.LastError)
			ctrl.DismissError()
			if snap.Step == workflow.StepIdle {
				if snap.SelectedFile != nil && promptYes("Try again?") {
					if err := ctrl.StartProcessing(ctx); err != nil {
						fmt.Printf("  %s\n", err)
						return
					}
					fmt.Println("\nUploading and processing...")
					continue
				}
				return
			}
		}

		switch snap.Step {
		case workflow.StepReviewGameData:
			reviewGameData(ctrl, snap)
		case workflow.StepReviewScoreboard:
			reviewScoreboard(ctrl, snap)
		case workflow.StepReviewFinal:
			reviewFinal(ctx, ctrl, snap)
		case workflow.StepClosing:
			if promptYes("Discard the in-progress ingestion?") {
				ctrl.ConfirmClose()
			} else {
				ctrl.CancelClose()
				fmt.Println("Resuming...")
			}
		}
	}
}

// waitForSettled blocks until the controller is out of its transient steps
// (uploading, processing) or has something to show.
func waitForSettled(ctrl *workflow.Controller) workflow.State {
	for {
		snap := ctrl.Snapshot()
		if snap.Closed || snap.LastError != "" {
			return snap
		}
		switch snap.Step {
		case workflow.StepUploading, workflow.StepProcessing:
			time.Sleep(200 * time.Millisecond)
		default:
			return snap
		}
	}
}

// writePreview drops a small JPEG rendering of the screenshot in the temp
// directory so the user can eyeball what is about to be uploaded. Preview
// failures are not worth interrupting the flow for.
func writePreview(path string) string {
	thumb, err := imagecheck.Thumbnail(path, 480)
	if err != nil {
		log.Debug().Err(err).Msg("Preview generation failed")
		return ""
	}
	out := filepath.Join(os.TempDir(), "scorelens-preview.jpg")
	if err := os.WriteFile(out, thumb, 0o644); err != nil {
		log.Debug().Err(err).Msg("Preview write failed")
		return ""
	}
	return out
}

func pickScreenshot() (string, error) {
	return zenity.SelectFile(
		zenity.Title("Select scoreboard screenshot"),
		zenity.FileFilters{
			{Name: "Screenshots", Patterns: []string{"*.png", "*.jpg", "*.jpeg"}, CaseFold: true},
		},
	)
}

// promptLine reads one line of input. "q" requests close and returns false
// in the second value.
func promptLine(label string) (string, bool) {
	fmt.Print(label)
	input, err := stdin.ReadString('\n')
	if err != nil {
		return "", false
	}
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "q") {
		return "", false
	}
	return input, true
}

func promptYes(question string) bool {
	input, ok := promptLine(question + " [y/N]: ")
	if !ok {
		return false
	}
	return strings.EqualFold(input, "y") || strings.EqualFold(input, "yes")
}
