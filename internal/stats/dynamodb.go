package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	MAX_BATCH_SIZE     = 25
	MAX_BATCH_RETRIES  = 3
	INITIAL_BATCH_WAIT = 500 * time.Millisecond
)

type DynamoAPI interface {
	dynamodb.ScanAPIClient
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

type userItem struct {
	UserID    int64  `dynamodbav:"user_id"`
	Total     int    `dynamodbav:"total"`
	Positive  int    `dynamodbav:"positive"`
	Negative  int    `dynamodbav:"negative"`
	Neutral   int    `dynamodbav:"neutral"`
	StartTime string `dynamodbav:"start_time"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

// DynamoPersister keeps one item per user, keyed by user_id.
type DynamoPersister struct {
	client  DynamoAPI
	table   string
	backoff time.Duration
}

func NewDynamoPersister(client DynamoAPI, table string) *DynamoPersister {
	return &DynamoPersister{client: client, table: table, backoff: INITIAL_BATCH_WAIT}
}

func (d *DynamoPersister) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Users: map[int64]UserCounters{}}

	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName: aws.String(d.table),
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return snap, fmt.Errorf("[DynamoDB] Scan for user stats failed: %w", err)
		}
		var page []userItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal user stats page", slog.String("error", err.Error()))
			return snap, err
		}
		for _, item := range page {
			start, _ := parseStartTime(item.StartTime)
			snap.Users[item.UserID] = UserCounters{
				Total:     item.Total,
				Positive:  item.Positive,
				Negative:  item.Negative,
				Neutral:   item.Neutral,
				StartTime: start,
			}
		}
	}

	slog.Info("[DynamoDB] Loaded user stats",
		slog.String("table", d.table),
		slog.Int("users", len(snap.Users)))
	return snap, nil
}

func (d *DynamoPersister) Save(ctx context.Context, snap Snapshot) error {
	now := time.Now().Unix()

	writeRequests := make([]types.WriteRequest, 0, len(snap.Users))
	for id, u := range snap.Users {
		item, err := attributevalue.MarshalMap(userItem{
			UserID:    id,
			Total:     u.Total,
			Positive:  u.Positive,
			Negative:  u.Negative,
			Neutral:   u.Neutral,
			StartTime: formatStartTime(u.StartTime),
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to marshal user %d: %w", id, err)
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for i := 0; i < len(writeRequests); i += MAX_BATCH_SIZE {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := i + MAX_BATCH_SIZE
		if end > len(writeRequests) {
			end = len(writeRequests)
		}
		if err := d.writeBatch(ctx, writeRequests[i:end]); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Successfully stored user stats",
		slog.String("table", d.table),
		slog.Int("users", len(snap.Users)))
	return nil
}

func (d *DynamoPersister) writeBatch(ctx context.Context, batch []types.WriteRequest) error {
	out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{d.table: batch},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write user stats: %w", err)
	}

	retryCount := 0
	backoff := d.backoff
	for len(out.UnprocessedItems) > 0 && retryCount < MAX_BATCH_RETRIES {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed user stats...",
			slog.Int("attempt", retryCount+1),
			slog.Int("remaining", len(out.UnprocessedItems[d.table])))

		out, err = d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Retry error: %w", err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[d.table]); remaining > 0 {
		return fmt.Errorf("[DynamoDB] %d user stats items not written after retries", remaining)
	}
	return nil
}
