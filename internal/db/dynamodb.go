package db

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/spacesedan/feedbackflow/internal/utils"
)

const (
	DEFAULT_RESULTS_TABLE = "FeedbackResults"
	MAX_BATCH_WRITE_SIZE  = 25
	RESULT_TTL            = 30 * 24 * time.Hour
)

// DynamoDBAPI is the part of the DynamoDB client the result store uses.
type DynamoDBAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ResultRecord is one stored comment result. The table is keyed by run_id
// (partition) and comment_id (sort).
type ResultRecord struct {
	RunID      string             `dynamodbav:"run_id" json:"run_id"`
	CommentID  string             `dynamodbav:"comment_id" json:"comment_id"`
	Index      int                `dynamodbav:"idx" json:"index"`
	Status     string             `dynamodbav:"status" json:"status"`
	Sentiment  string             `dynamodbav:"sentiment_label,omitempty" json:"sentiment,omitempty"`
	Score      float64            `dynamodbav:"sentiment_score" json:"score"`
	Confidence float64            `dynamodbav:"confidence" json:"confidence"`
	Themes     []string           `dynamodbav:"themes,omitempty" json:"themes,omitempty"`
	Emotions   map[string]float64 `dynamodbav:"emotions,omitempty" json:"emotions,omitempty"`
	Source     string             `dynamodbav:"source,omitempty" json:"source,omitempty"`
	Error      string             `dynamodbav:"error,omitempty" json:"error,omitempty"`
	Text       string             `dynamodbav:"text,omitempty" json:"text,omitempty"`
	Language   string             `dynamodbav:"language,omitempty" json:"language,omitempty"`
	CreatedAt  int64              `dynamodbav:"created_at" json:"created_at"`
}

type ResultStore struct {
	client       DynamoDBAPI
	table        string
	ttl          time.Duration
	retryBackoff time.Duration
	now          func() time.Time
}

func NewResultStore(client DynamoDBAPI, table string) *ResultStore {
	if table == "" {
		table = DEFAULT_RESULTS_TABLE
	}
	return &ResultStore{
		client:       client,
		table:        table,
		ttl:          RESULT_TTL,
		retryBackoff: 500 * time.Millisecond,
		now:          time.Now,
	}
}

// StoreRun writes every result of the run, 25 items per BatchWriteItem call.
// comments must be the sequence the run was computed over; it may be nil.
func (s *ResultStore) StoreRun(ctx context.Context, run *models.Run, comments []models.Comment) error {
	buffer := utils.NewBatchBuffer[types.WriteRequest](MAX_BATCH_WRITE_SIZE)
	stored := 0

	flush := func() error {
		if !buffer.HasData() {
			return nil
		}
		buffer.LogBatchProcessing("dynamodb_results")
		batch := buffer.GetAndClear()
		if err := s.batchWrite(ctx, batch); err != nil {
			return err
		}
		stored += len(batch)
		return nil
	}

	for i, result := range run.Results {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		var comment *models.Comment
		if i < len(comments) {
			comment = &comments[i]
		}
		buffer.Add(types.WriteRequest{
			PutRequest: &types.PutRequest{Item: s.ResultToDynamoDBItem(run.ID, result, comment)},
		})
		if buffer.Full() {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("[DynamoDB] Successfully stored run results",
		slog.String("run_id", run.ID),
		slog.Int("count", stored))
	return nil
}

func (s *ResultStore) batchWrite(ctx context.Context, writeRequests []types.WriteRequest) error {
	out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{
			s.table: writeRequests,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to batch write results: %v", models.ErrResource, err)
	}

	// Retry writing unprocessed results
	retryCount := 0
	backoff := s.retryBackoff
	for len(out.UnprocessedItems) > 0 && retryCount < 3 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[s.table])))

		out, err = s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("%w: failed to retry batch write: %v", models.ErrResource, err)
		}
		retryCount++
	}

	if remaining := len(out.UnprocessedItems[s.table]); remaining > 0 {
		slog.Error("[DynamoDB] Some items were not written even after retries",
			slog.Int("remaining_items", remaining))
		return fmt.Errorf("%w: %d results were not written", models.ErrResource, remaining)
	}
	return nil
}

// GetRunResults returns the stored results of one run ordered by comment ID.
func (s *ResultStore) GetRunResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("run_id = :run"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":run": &types.AttributeValueMemberS{Value: runID},
		},
	}

	var records []ResultRecord
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: query for run results failed: %v", models.ErrResource, err)
		}
		var page []ResultRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal result page", slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: %v", models.ErrProcessing, err)
		}
		records = append(records, page...)
	}

	slog.Info("[DynamoDB] Successfully retrieved run results",
		slog.String("run_id", runID),
		slog.Int("count", len(records)))
	return records, nil
}

func (s *ResultStore) ResultToDynamoDBItem(runID string, result models.AnalysisResult, comment *models.Comment) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue)
	now := s.now()

	// Required fields (snake_case keys)
	item["run_id"] = &types.AttributeValueMemberS{Value: runID}
	item["comment_id"] = &types.AttributeValueMemberS{Value: result.CommentID}
	item["idx"] = &types.AttributeValueMemberN{Value: strconv.Itoa(result.Index)}
	item["status"] = &types.AttributeValueMemberS{Value: string(result.Status)}
	item["sentiment_score"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", result.Score)}
	item["confidence"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", result.Confidence)}
	item["created_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())}
	item["ttl"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Add(s.ttl).Unix())}

	// Optional fields
	if result.Sentiment != "" {
		item["sentiment_label"] = &types.AttributeValueMemberS{Value: string(result.Sentiment)}
	}
	if len(result.Themes) > 0 {
		themes := make([]types.AttributeValue, 0, len(result.Themes))
		for _, t := range result.Themes {
			themes = append(themes, &types.AttributeValueMemberS{Value: t})
		}
		item["themes"] = &types.AttributeValueMemberL{Value: themes}
	}
	if len(result.Emotions) > 0 {
		emotions := make(map[string]types.AttributeValue, len(result.Emotions))
		for name, v := range result.Emotions {
			emotions[name] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", v)}
		}
		item["emotions"] = &types.AttributeValueMemberM{Value: emotions}
	}
	if result.Source != "" {
		item["source"] = &types.AttributeValueMemberS{Value: result.Source}
	}
	if result.Error != "" {
		item["error"] = &types.AttributeValueMemberS{Value: result.Error}
	}
	if comment != nil {
		item["text"] = &types.AttributeValueMemberS{Value: comment.Text}
		if comment.Language != "" {
			item["language"] = &types.AttributeValueMemberS{Value: string(comment.Language)}
		}
	}

	return item
}
