package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmitrijs2005/showroom/internal/server/kvstore"
)

// maxIncrementRounds bounds the increment/open-window retry loop. Each round
// loses only to a concurrent writer that just opened or expired the window.
const maxIncrementRounds = 3

var ErrContention = errors.New("ledger: too much contention on failure counter")

type record struct {
	PK        string `dynamodbav:"pk"`
	Failures  int    `dynamodbav:"failures,omitempty"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoLedger keeps counters and lockouts as TTL items of one table.
type DynamoLedger struct {
	client    kvstore.API
	tableName string
	settings  Settings
	now       func() time.Time
}

func NewDynamoLedger(client kvstore.API, tableName string, s Settings) *DynamoLedger {
	return &DynamoLedger{
		client:    client,
		tableName: tableName,
		settings:  s,
		now:       time.Now,
	}
}

func ttlSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

func (l *DynamoLedger) get(ctx context.Context, pk string) (*record, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.tableName),
		Key:            kvstore.Key(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger get: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("ledger unmarshal: %w", err)
	}

	if r.ExpiresAt <= l.now().Unix() {
		return nil, nil
	}

	return &r, nil
}

func (l *DynamoLedger) IsLocked(ctx context.Context, ip, code string) (bool, error) {
	r, err := l.get(ctx, lockKey(ip, code))
	if err != nil {
		return false, err
	}
	return r != nil, nil
}

func (l *DynamoLedger) Failures(ctx context.Context, ip, code string) (int, error) {
	r, err := l.get(ctx, failKey(ip, code))
	if err != nil || r == nil {
		return 0, err
	}
	return r.Failures, nil
}

// putIfAbsent writes r unless a live item with the same key exists.
func (l *DynamoLedger) putIfAbsent(ctx context.Context, r record, now int64) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("ledger marshal: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String(kvstore.CondAbsentOrExpired),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": kvstore.Number(now),
		},
	})
	return err
}

// RecordFailure increments a live counter in place. When there is none it
// opens a new window with count 1. A lost race on either step retries.
func (l *DynamoLedger) RecordFailure(ctx context.Context, ip, code string) (int, error) {
	pk := failKey(ip, code)

	for range maxIncrementRounds {
		now := l.now().Unix()

		out, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(l.tableName),
			Key:                 kvstore.Key(pk),
			UpdateExpression:    aws.String("ADD failures :one"),
			ConditionExpression: aws.String(kvstore.CondLive),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one": kvstore.Number(1),
				":now": kvstore.Number(now),
			},
			ReturnValues: types.ReturnValueUpdatedNew,
		})
		if err == nil {
			var r record
			if err := attributevalue.UnmarshalMap(out.Attributes, &r); err != nil {
				return 0, fmt.Errorf("ledger unmarshal: %w", err)
			}
			return r.Failures, nil
		}
		if !kvstore.IsConditionFailed(err) {
			return 0, fmt.Errorf("ledger increment: %w", err)
		}

		err = l.putIfAbsent(ctx, record{
			PK:        pk,
			Failures:  1,
			ExpiresAt: now + ttlSeconds(l.settings.Window),
		}, now)
		if err == nil {
			return 1, nil
		}
		if !kvstore.IsConditionFailed(err) {
			return 0, fmt.Errorf("ledger open window: %w", err)
		}
	}

	return 0, ErrContention
}

func (l *DynamoLedger) Lock(ctx context.Context, ip, code string) error {
	now := l.now().Unix()

	err := l.putIfAbsent(ctx, record{
		PK:        lockKey(ip, code),
		ExpiresAt: now + ttlSeconds(l.settings.Lockout),
	}, now)
	if err != nil && !kvstore.IsConditionFailed(err) {
		return fmt.Errorf("ledger lock: %w", err)
	}

	return nil
}

func (l *DynamoLedger) Reset(ctx context.Context, ip, code string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key:       kvstore.Key(failKey(ip, code)),
	})
	if err != nil {
		return fmt.Errorf("ledger reset: %w", err)
	}
	return nil
}
