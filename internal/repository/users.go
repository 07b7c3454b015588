package repository

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chat-api/internal/domain"
)

// CreateUser stores a user. Name uniqueness is checked by callers through
// UserExists before creating.
func (c *Client) CreateUser(ctx context.Context, userID, name string) (domain.User, error) {
	if err := validateID(attrUserID, userID); err != nil {
		return domain.User{}, err
	}
	if name == "" {
		return domain.User{}, &domain.Error{Kind: domain.ErrorValidation, Reason: "empty user name", Field: attrName}
	}

	user := domain.User{ID: userID, Name: name}
	item, err := userToItem(user)
	if err != nil {
		return domain.User{}, err
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tables.Users),
		Item:      item,
	})
	if err != nil {
		return domain.User{}, storageError("put_user", fmt.Errorf("repository: CreateUser: %w", err))
	}
	return user, nil
}

func (c *Client) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	if err := validateID(attrUserID, userID); err != nil {
		return domain.User{}, err
	}

	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(c.tables.Users),
		Key:                      userKey(userID),
		ProjectionExpression:     aws.String("user_id, #n"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
	})
	if err != nil {
		return domain.User{}, storageError("get_user", fmt.Errorf("repository: GetUserByID: %w", err))
	}
	if out == nil || len(out.Item) == 0 {
		return domain.User{}, domain.NewError(domain.ErrorNotFound, "user does not exist", nil)
	}

	user, err := itemToUser(out.Item)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUserByID decode: %w", err)
	}
	return user, nil
}

// GetUserByName resolves a user through the name index. Names are unique, so
// anything other than exactly one match is an error.
func (c *Client) GetUserByName(ctx context.Context, name string) (domain.User, error) {
	if name == "" {
		return domain.User{}, &domain.Error{Kind: domain.ErrorValidation, Reason: "empty user name", Field: attrName}
	}

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                aws.String(c.tables.Users),
		IndexName:                aws.String(nameIndex),
		KeyConditionExpression:   aws.String("#n = :n"),
		ProjectionExpression:     aws.String("user_id, #n"),
		ExpressionAttributeNames: map[string]string{"#n": attrName},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: name},
		},
		// Two rows are enough to detect a duplicate name.
		Limit: aws.Int32(2),
	})
	if err != nil {
		return domain.User{}, storageError("query_user_name", fmt.Errorf("repository: GetUserByName: %w", err))
	}

	switch len(out.Items) {
	case 0:
		return domain.User{}, domain.NewError(domain.ErrorNotFound, "user does not exist", nil)
	case 1:
	default:
		c.logger.ErrorContext(ctx, "user name is not unique", "name", name, "matches", len(out.Items))
		return domain.User{}, domain.NewError(domain.ErrorAmbiguousResult, "user name matches more than one user", nil)
	}

	user, err := itemToUser(out.Items[0])
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: GetUserByName decode: %w", err)
	}
	return user, nil
}

// UserExists reports whether name is taken. A name shared by several users is
// taken too.
func (c *Client) UserExists(ctx context.Context, name string) (bool, error) {
	_, err := c.GetUserByName(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case domain.IsKind(err, domain.ErrorNotFound):
		return false, nil
	case domain.IsKind(err, domain.ErrorAmbiguousResult):
		return true, nil
	default:
		return false, err
	}
}
