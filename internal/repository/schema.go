package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// VerifySchema checks that both tables exist with the key layout the
// repository relies on: messages keyed by (room_id, sort) and users keyed by
// user_id with a name-index on name. It never creates or alters tables.
func (c *Client) VerifySchema(ctx context.Context) error {
	messages, err := c.describe(ctx, c.tables.Messages)
	if err != nil {
		return err
	}
	if err := verifyKeySchema(messages, attrRoomID, attrSort); err != nil {
		return err
	}

	users, err := c.describe(ctx, c.tables.Users)
	if err != nil {
		return err
	}
	if err := verifyKeySchema(users, attrUserID, ""); err != nil {
		return err
	}
	if err := verifyNameIndex(users); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "table schema verified", "messages_table", c.tables.Messages, "users_table", c.tables.Users)
	return nil
}

func (c *Client) describe(ctx context.Context, table string) (*types.TableDescription, error) {
	out, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("repository: table %s does not exist", table)
		}
		return nil, storageError("describe_table", fmt.Errorf("repository: describe table %s: %w", table, err))
	}
	if out == nil || out.Table == nil {
		return nil, fmt.Errorf("repository: table %s has no description", table)
	}
	return out.Table, nil
}

// verifyKeySchema checks the primary key. An empty sortKey expects a simple
// (partition only) key.
func verifyKeySchema(table *types.TableDescription, partitionKey, sortKey string) error {
	name := aws.ToString(table.TableName)
	if len(table.KeySchema) < 1 {
		return fmt.Errorf("repository: table %s has no key schema", name)
	}
	if got := aws.ToString(table.KeySchema[0].AttributeName); got != partitionKey {
		return fmt.Errorf("repository: table %s has partition key %s, expected %s", name, got, partitionKey)
	}
	if sortKey == "" {
		if len(table.KeySchema) != 1 {
			return fmt.Errorf("repository: table %s has a composite key, expected %s only", name, partitionKey)
		}
		return nil
	}
	if len(table.KeySchema) < 2 {
		return fmt.Errorf("repository: table %s has a simple primary key, expected composite", name)
	}
	if got := aws.ToString(table.KeySchema[1].AttributeName); got != sortKey {
		return fmt.Errorf("repository: table %s has sort key %s, expected %s", name, got, sortKey)
	}
	return nil
}

func verifyNameIndex(table *types.TableDescription) error {
	name := aws.ToString(table.TableName)
	for _, index := range table.GlobalSecondaryIndexes {
		if aws.ToString(index.IndexName) != nameIndex {
			continue
		}
		if len(index.KeySchema) < 1 || aws.ToString(index.KeySchema[0].AttributeName) != attrName {
			return fmt.Errorf("repository: index %s on table %s is not keyed by %s", nameIndex, name, attrName)
		}
		if index.IndexStatus != "" && index.IndexStatus != types.IndexStatusActive {
			return fmt.Errorf("repository: index %s on table %s is not active (status: %s)", nameIndex, name, index.IndexStatus)
		}
		return nil
	}
	return fmt.Errorf("repository: table %s has no %s index", name, nameIndex)
}
