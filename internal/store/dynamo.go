package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"scorelens/internal/confidence"
)

// TaskTTL is the TTL for task records. Tasks only matter while a client is
// polling, so records expire a few hours after creation.
const TaskTTL = 4 * time.Hour

// taskRecord is the DynamoDB shape of a Task. The extraction result is
// stored as serialized JSON: its stat maps carry custom JSON marshaling that
// attributevalue would bypass.
type taskRecord struct {
	Status     string `dynamodbav:"status"`
	ObjectKey  string `dynamodbav:"objectKey"`
	ResultJSON string `dynamodbav:"resultJson,omitempty"`
	Error      string `dynamodbav:"error,omitempty"`
	CreatedAt  int64  `dynamodbav:"createdAt"`
}

// DynamoStore persists tasks in a DynamoDB table keyed by task ID, with a
// TTL attribute so finished tasks age out on their own.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func taskExpiresAt() int64 {
	return time.Now().Add(TaskTTL).Unix()
}

func (s *DynamoStore) Create(ctx context.Context, task *Task) error {
	record := taskRecord{
		Status:    task.Status,
		ObjectKey: task.ObjectKey,
		Error:     task.Error,
		CreatedAt: task.CreatedAt.Unix(),
	}
	if task.Result != nil {
		data, err := json.Marshal(task.Result)
		if err != nil {
			return fmt.Errorf("marshal task result: %w", err)
		}
		record.ResultJSON = string(data)
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal task record: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: task.ID}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(taskExpiresAt(), 10)}

	start := time.Now()
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem task %s: %w", task.ID, err)
	}
	log.Debug().Str("task_id", task.ID).Str("status", task.Status).Dur("duration", time.Since(start)).Msg("Task persisted")
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, id string) (*Task, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem task %s: %w", id, err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var record taskRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}

	task := &Task{
		ID:        id,
		ObjectKey: record.ObjectKey,
		Status:    record.Status,
		Error:     record.Error,
		CreatedAt: time.Unix(record.CreatedAt, 0),
	}
	if record.ResultJSON != "" {
		if err := json.Unmarshal([]byte(record.ResultJSON), &task.Result); err != nil {
			return nil, fmt.Errorf("unmarshal task %s result: %w", id, err)
		}
	}
	return task, nil
}

func (s *DynamoStore) SetResult(ctx context.Context, id string, result *confidence.ExtractedData) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}
	return s.update(ctx, id, StatusCompleted, string(data), "")
}

func (s *DynamoStore) SetFailed(ctx context.Context, id string, message string) error {
	return s.update(ctx, id, StatusFailed, "", message)
}

func (s *DynamoStore) update(ctx context.Context, id, status, resultJSON, errMsg string) error {
	expr := "SET #status = :status, resultJson = :result, #error = :error"
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String(expr),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
			"#error":  "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
			":result": &types.AttributeValueMemberS{Value: resultJSON},
			":error":  &types.AttributeValueMemberS{Value: errMsg},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrNotFound
		}
		return fmt.Errorf("UpdateItem task %s: %w", id, err)
	}
	log.Debug().Str("task_id", id).Str("status", status).Msg("Task updated")
	return nil
}
