package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"curiosity/internal/domain"
)

const (
	pkPrefix    = "EXCHANGE#"
	skPrefix    = "AT#"
	ttlDuration = 30 * 24 * time.Hour
)

var tracer = otel.Tracer("curiosity/internal/repository")

// dynamodbAPI is the slice of *dynamodb.Client used by ExchangeLog.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ExchangeLog appends one item per answered question. It is never read by
// the request pipeline.
type ExchangeLog struct {
	api       dynamodbAPI
	tableName string
}

func New(api dynamodbAPI, tableName string) (*ExchangeLog, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &ExchangeLog{api: api, tableName: tableName}, nil
}

func exchangePK(id string) string {
	return pkPrefix + id
}

func exchangeSK(at time.Time) string {
	return skPrefix + at.UTC().Format(time.RFC3339Nano)
}

// Record writes ex once; a second write for the same key fails the condition.
func (l *ExchangeLog) Record(ctx context.Context, ex domain.Exchange) error {
	if strings.TrimSpace(ex.ID) == "" {
		return errors.New("repository: Record: exchange id is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}

	ctx, span := tracer.Start(ctx, "repository.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("db.table", l.tableName),
	)

	_, err := l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                exchangeItem(ex),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put item")
		var conflict *types.ConditionalCheckFailedException
		if errors.As(err, &conflict) {
			return fmt.Errorf("repository: Record: exchange %q already recorded: %w", ex.ID, err)
		}
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

func exchangeItem(ex domain.Exchange) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":              &types.AttributeValueMemberS{Value: exchangePK(ex.ID)},
		"SK":              &types.AttributeValueMemberS{Value: exchangeSK(ex.CreatedAt)},
		"correlationId":   &types.AttributeValueMemberS{Value: ex.CorrelationID},
		"questionPreview": &types.AttributeValueMemberS{Value: ex.QuestionPreview},
		"usedSearch":      &types.AttributeValueMemberBOOL{Value: ex.UsedSearch},
		"sourceCount":     numberAttr(int64(ex.SourceCount)),
		"answerLength":    numberAttr(int64(ex.AnswerLength)),
		"createdAt":       &types.AttributeValueMemberS{Value: ex.CreatedAt.UTC().Format(time.RFC3339)},
		"ttl":             numberAttr(ex.CreatedAt.Add(ttlDuration).Unix()),
	}
}

func numberAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
