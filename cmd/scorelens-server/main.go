// Package main runs the local dev server for the scoreboard ingestion
// client: upload-URL issuer, extraction engine, and analysis persistence in
// one process.
//
// By default everything is in-process: uploads land in memory and extraction
// returns a canned scoreboard, so the full ingestion flow runs offline. Real
// backends are opt-in per concern:
//
//	scorelens-server                          # all in-process
//	scorelens-server --bucket score-shots     # pre-signed S3 uploads
//	scorelens-server --table scorelens-tasks  # DynamoDB task store
//	scorelens-server --gemini                 # Gemini-vision extraction
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"scorelens/internal/engine"
	"scorelens/internal/logging"
	"scorelens/internal/server"
	"scorelens/internal/store"
)

var (
	portFlag   int
	bucketFlag string
	tableFlag  string
	geminiFlag bool
	modelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "scorelens-server",
	Short: "Dev server for the scoreboard ingestion client",
	Long: `Scorelens Server hosts the HTTP contracts the ingestion client talks to:
the upload-URL issuer, the processing engine, and the analysis API.

Examples:
  scorelens-server
  scorelens-server --port 9090
  scorelens-server --bucket score-shots --table scorelens-tasks
  scorelens-server --gemini --model gemini-3-flash-preview`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&bucketFlag, "bucket", "", "S3 bucket for uploads (empty: in-memory)")
	rootCmd.Flags().StringVar(&tableFlag, "table", "", "DynamoDB table for tasks (empty: in-memory)")
	rootCmd.Flags().BoolVar(&geminiFlag, "gemini", false, "Extract with Gemini vision instead of the fixture")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model (default: "+engine.DefaultModelName+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	initStart := time.Now()
	ctx := context.Background()

	cfg := server.Config{}

	if geminiFlag {
		extractor, err := engine.NewGemini(ctx, os.Getenv("GEMINI_API_KEY"), modelFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini extractor")
		}
		cfg.Extractor = extractor
	} else {
		cfg.Extractor = engine.NewFixture()
	}

	if bucketFlag != "" || tableFlag != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load AWS config")
		}
		if bucketFlag != "" {
			client := s3.NewFromConfig(awsCfg)
			cfg.Bucket = bucketFlag
			cfg.S3 = client
			cfg.Presigner = s3.NewPresignClient(client)
		}
		if tableFlag != "" {
			cfg.Store = store.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), tableFlag)
		}
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}

	logging.NewStartupLogger("scorelens-server").
		S3Bucket("uploads", bucketFlag).
		DynamoTable("tasks", tableFlag).
		Feature("gemini", geminiFlag).
		Config("port", fmt.Sprintf("%d", portFlag)).
		InitDuration(time.Since(initStart)).
		Log()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", portFlag),
		Handler:      server.New(cfg).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Int("port", portFlag).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
