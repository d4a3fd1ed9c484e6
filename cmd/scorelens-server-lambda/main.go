// Package main is the Lambda deployment of the scorelens server. The same
// handler runs behind API Gateway via the HTTP adapter; S3 holds the
// uploads, DynamoDB holds the tasks, and extraction runs synchronously
// inside the request since Lambda freezes background goroutines between
// invocations.
//
// Environment:
//
//	UPLOAD_BUCKET   S3 bucket for screenshot uploads (required)
//	TASKS_TABLE     DynamoDB task table (required)
//	GEMINI_API_KEY  enables Gemini-vision extraction; fixture otherwise
//	GEMINI_MODEL    overrides the extraction model
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"scorelens/internal/engine"
	"scorelens/internal/lambdaboot"
	"scorelens/internal/logging"
	"scorelens/internal/server"
)

var srv *server.Server

func init() {
	initStart := time.Now()
	logging.Init()

	awsCfg := lambdaboot.InitAWS()
	s3Clients := lambdaboot.InitS3(awsCfg, "UPLOAD_BUCKET")
	taskStore := lambdaboot.InitTaskStore(awsCfg, "TASKS_TABLE")

	cfg := server.Config{
		Store:          taskStore,
		Bucket:         s3Clients.Bucket,
		S3:             s3Clients.Client,
		Presigner:      s3Clients.Presigner,
		SyncProcessing: true,
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey != "" {
		extractor, err := engine.NewGemini(context.Background(), apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini extractor")
		}
		cfg.Extractor = extractor
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, using fixture extraction")
		cfg.Extractor = engine.NewFixture()
	}

	srv = server.New(cfg)

	lambdaboot.StartupLog("scorelens-server-lambda", initStart).
		S3Bucket("uploads", s3Clients.Bucket).
		DynamoTable("tasks", os.Getenv("TASKS_TABLE")).
		Feature("gemini", apiKey != "").
		Log()
}

func main() {
	adapter := httpadapter.NewV2(srv.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
