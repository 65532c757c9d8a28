// Package kvstoretest provides an in-process stand-in for the DynamoDB
// table used by the kvstore-backed stores.
package kvstoretest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmitrijs2005/showroom/internal/server/kvstore"
)

// Table understands exactly the expressions the stores issue and fails
// loudly on anything else. Expired items are never reaped, mirroring the
// lazy TTL deletion of the real service.
type Table struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue

	// Errs makes the named operation ("GetItem", "PutItem", "UpdateItem",
	// "DeleteItem") fail with the given error.
	Errs  map[string]error
	Calls map[string]int
}

var _ kvstore.API = (*Table)(nil)

func NewTable() *Table {
	return &Table{
		items: make(map[string]map[string]types.AttributeValue),
		Errs:  make(map[string]error),
		Calls: make(map[string]int),
	}
}

// Item returns a copy of the stored item or nil.
func (t *Table) Item(pk string) map[string]types.AttributeValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clone(t.items[pk])
}

// Len returns the number of stored items, expired ones included.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *Table) enter(op string) error {
	t.Calls[op]++
	return t.Errs[op]
}

func (t *Table) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("GetItem"); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: clone(t.items[pk(in.Key)])}, nil
}

func (t *Table) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("PutItem"); err != nil {
		return nil, err
	}

	key := pk(in.Item)
	if cond := aws.ToString(in.ConditionExpression); cond != "" {
		ok, err := t.check(cond, t.items[key], in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}

	t.items[key] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (t *Table) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("UpdateItem"); err != nil {
		return nil, err
	}

	key := pk(in.Key)
	item := t.items[key]
	if cond := aws.ToString(in.ConditionExpression); cond != "" {
		ok, err := t.check(cond, item, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}

	// Only "ADD <attr> :<value>" is supported.
	fields := strings.Fields(aws.ToString(in.UpdateExpression))
	if len(fields) != 3 || fields[0] != "ADD" {
		return nil, fmt.Errorf("kvstoretest: unsupported update expression %q", aws.ToString(in.UpdateExpression))
	}
	attr, placeholder := fields[1], fields[2]
	delta, err := number(in.ExpressionAttributeValues[placeholder])
	if err != nil {
		return nil, err
	}

	if item == nil {
		item = map[string]types.AttributeValue{"pk": &types.AttributeValueMemberS{Value: key}}
		t.items[key] = item
	}
	cur, _ := number(item[attr])
	item[attr] = kvstore.Number(cur + delta)

	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{attr: item[attr]}}, nil
}

func (t *Table) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("DeleteItem"); err != nil {
		return nil, err
	}
	delete(t.items, pk(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (t *Table) check(cond string, item map[string]types.AttributeValue, values map[string]types.AttributeValue) (bool, error) {
	now, err := number(values[":now"])
	if err != nil {
		return false, err
	}
	var expiresAt int64
	if item != nil {
		expiresAt, _ = number(item["expires_at"])
	}

	switch cond {
	case kvstore.CondAbsentOrExpired:
		return item == nil || expiresAt <= now, nil
	case kvstore.CondLive:
		return item != nil && expiresAt > now, nil
	default:
		return false, fmt.Errorf("kvstoretest: unsupported condition %q", cond)
	}
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func pk(m map[string]types.AttributeValue) string {
	if s, ok := m["pk"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func number(v types.AttributeValue) (int64, error) {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("kvstoretest: expected number attribute, got %T", v)
	}
	return strconv.ParseInt(n.Value, 10, 64)
}

func clone(m map[string]types.AttributeValue) map[string]types.AttributeValue {
	if m == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
