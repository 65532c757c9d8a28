package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dmitrijs2005/showroom/internal/server/kvstore"
	"github.com/dmitrijs2005/showroom/internal/server/models"
)

type entry struct {
	PK        string `dynamodbav:"pk"`
	Payload   []byte `dynamodbav:"payload"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoCache shares the key-value table with the attempt ledger.
type DynamoCache struct {
	client    kvstore.API
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

func NewDynamoCache(client kvstore.API, tableName string, ttl time.Duration) *DynamoCache {
	return &DynamoCache{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (c *DynamoCache) Get(ctx context.Context, code string) (models.Timeline, bool, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            kvstore.Key(key(code)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	var e entry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal: %w", err)
	}
	if e.ExpiresAt <= c.now().Unix() {
		return nil, false, nil
	}

	t, err := decode(e.Payload)
	if err != nil {
		return nil, false, err
	}

	return t, true, nil
}

func (c *DynamoCache) Set(ctx context.Context, code string, t models.Timeline) error {
	payload, err := encode(t)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(entry{
		PK:        key(code),
		Payload:   payload,
		ExpiresAt: c.now().Add(c.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}

	return nil
}

func (c *DynamoCache) Delete(ctx context.Context, codes ...string) error {
	for _, code := range codes {
		_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.tableName),
			Key:       kvstore.Key(key(code)),
		})
		if err != nil {
			return fmt.Errorf("cache delete %s: %w", code, err)
		}
	}
	return nil
}
