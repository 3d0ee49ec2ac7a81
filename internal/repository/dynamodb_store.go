package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"health-assistant/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	// Fixed-width nanoseconds keep sort keys in chronological order.
	sortKeyTime = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps one partition per user and language.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newID     func() string
}

func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{
		api:       api,
		tableName: tableName,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

func historyPK(userID string, lang domain.Language) string {
	return "USER#" + userID + "#LANG#" + string(lang)
}

func msgSK(ts time.Time, id string) string {
	return skPrefixMsg + ts.UTC().Format(sortKeyTime) + "#" + id
}

func (s *DynamoStore) Append(ctx context.Context, userID string, lang domain.Language, msg domain.Message) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("repository: Append: user id is required")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                messageItem(userID, lang, msg, s.newID()),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

func (s *DynamoStore) List(ctx context.Context, userID string, lang domain.Language) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: historyPK(userID, lang)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var msgs []domain.Message
	pages := dynamodb.NewQueryPaginator(s.api, in)
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: List query: %w", err)
		}
		for _, item := range out.Items {
			msg, err := itemToMessage(item)
			if err != nil {
				return nil, fmt.Errorf("repository: List unmarshal: %w", err)
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

func messageItem(userID string, lang domain.Language, msg domain.Message, id string) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: historyPK(userID, lang)},
		"SK":        &types.AttributeValueMemberS{Value: msgSK(msg.CreatedAt, id)},
		"userId":    &types.AttributeValueMemberS{Value: userID},
		"language":  &types.AttributeValueMemberS{Value: string(lang)},
		"role":      &types.AttributeValueMemberS{Value: string(msg.Role)},
		"content":   &types.AttributeValueMemberS{Value: msg.Content},
		"createdAt": &types.AttributeValueMemberS{Value: msg.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
	if msg.ImageURL != "" {
		item["imageUrl"] = &types.AttributeValueMemberS{Value: msg.ImageURL}
	}
	return item
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Message{}, err
	}
	imageURL, _ := strAttr(item, "imageUrl") // optional
	msg := domain.Message{Role: domain.Role(role), Content: content, ImageURL: imageURL}

	if raw, err := strAttr(item, "createdAt"); err == nil {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.Message{}, fmt.Errorf("repository: parse attribute %q: %w", "createdAt", err)
		}
		msg.CreatedAt = ts
	}
	return msg, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
