package kvstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newDynamoClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newDynamoClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		return aws.Config{}, nil
	}

	var endpoint string
	newDynamoClientFromConfig = func(cfg aws.Config, optFns ...func(*dynamodb.Options)) *dynamodb.Client {
		var o dynamodb.Options
		for _, fn := range optFns {
			fn(&o)
		}
		if o.BaseEndpoint != nil {
			endpoint = *o.BaseEndpoint
		}
		return &dynamodb.Client{}
	}

	c, err := NewClient(context.Background(), "eu-central-1", "http://localhost:8000")
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, "http://localhost:8000", endpoint)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewClient(context.Background(), "eu-central-1", "")
	assert.EqualError(t, err, "load-fail")
}

func TestIsConditionFailed(t *testing.T) {
	ccf := &types.ConditionalCheckFailedException{Message: aws.String("nope")}
	assert.True(t, IsConditionFailed(ccf))
	assert.True(t, IsConditionFailed(fmt.Errorf("put: %w", ccf)))
	assert.False(t, IsConditionFailed(errors.New("ConditionalCheckFailedException")))
	assert.False(t, IsConditionFailed(nil))
}

func TestKeyAndNumber(t *testing.T) {
	k := Key("fail#ABCD#1.2.3.4")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "fail#ABCD#1.2.3.4"}, k["pk"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "-7"}, Number(-7))
}
