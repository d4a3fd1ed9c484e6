// Package lambdaboot holds the Lambda cold-start bootstrap helpers: AWS
// config, S3 clients, and the DynamoDB task store, so the Lambda entry
// point's init is a short composition instead of repeated SDK wiring.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"scorelens/internal/logging"
	"scorelens/internal/store"
)

// S3Clients holds the S3 client, presigner, and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// InitAWS loads the default AWS config. Fatals on failure: a Lambda without
// AWS access cannot serve anything.
func InitAWS() aws.Config {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return cfg
}

// InitS3 creates the S3 client and presigner, reading the bucket name from
// the given environment variable. Fatals if the env var is empty.
func InitS3(cfg aws.Config, bucketEnvVar string) S3Clients {
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Fatal().Str("envVar", bucketEnvVar).Msg("Bucket environment variable is required")
	}
	client := s3.NewFromConfig(cfg)
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// InitTaskStore creates the DynamoDB task store from the given config and
// table name environment variable. Fatals if the env var is empty.
func InitTaskStore(cfg aws.Config, tableEnvVar string) *store.DynamoStore {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Fatal().Str("envVar", tableEnvVar).Msg("DynamoDB table environment variable is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
